package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vango-dev/livesync/internal/config"
	"github.com/vango-dev/livesync/pkg/client"
	"github.com/vango-dev/livesync/pkg/metrics"
)

type connectOptions struct {
	configPath  string
	url         string
	location    string
	cookie      string
	pageUID     string
	rootUID     string
	metricsAddr string
	logLevel    string
	quiet       bool
}

func connectCmd() *cobra.Command {
	var opts connectOptions

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Mirror a live page headlessly",
		Long: `Connect to an authority and mirror its page.

The document body is adopted as the root node of the page, patches are
applied as they arrive, and the synced markup is printed after every
batch. Settings come from livesync.json or livesync.yaml in the current
directory unless --config is given; flags override the file.

Examples:
  livesync connect --url ws://localhost:3000/live --page p1 --root root
  livesync connect --config ./livesync.yaml --metrics :9100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runConnect(ctx, cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "Path to livesync.json or livesync.yaml")
	f.StringVarP(&opts.url, "url", "u", "", "Authority WebSocket URL (ws:// or wss://)")
	f.StringVarP(&opts.location, "location", "l", "", "URL of the displayed page")
	f.StringVar(&opts.cookie, "cookie", "", "Cookie header sent to the authority")
	f.StringVar(&opts.pageUID, "page", "", "UID of the initially rendered page")
	f.StringVar(&opts.rootUID, "root", "root", "UID of the root node")
	f.StringVar(&opts.metricsAddr, "metrics", "", "Serve Prometheus metrics on this address")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Do not print the tree after each batch")
	return cmd
}

func loadConfig(opts connectOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case opts.configPath != "":
		cfg, err = config.LoadFile(opts.configPath)
	case config.Exists("."):
		cfg, err = config.Load(".")
	default:
		cfg = config.New()
	}
	if err != nil {
		return nil, err
	}

	if opts.url != "" {
		cfg.Authority.URL = opts.url
	}
	if opts.location != "" {
		cfg.Authority.Location = opts.location
	}
	if opts.cookie != "" {
		cfg.Authority.Cookie = opts.cookie
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	return cfg, nil
}

func runConnect(ctx context.Context, out io.Writer, opts connectOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(
		metrics.WithNamespace(cfg.Metrics.Namespace),
		metrics.WithRegistry(registry),
	)
	if cfg.Metrics.Addr != "" {
		srv := metricsServer(cfg.Metrics.Addr, registry)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		info("metrics on http://%s/metrics", cfg.Metrics.Addr)
	}

	ccfg, err := cfg.Client(logger)
	if err != nil {
		return err
	}
	ccfg = ccfg.WithMetrics(m)

	host := &client.HeadlessHost{
		OnReload: func(path string) { warn("authority requested a full reload of %s", path) },
	}
	sess, err := client.New(ccfg, host)
	if err != nil {
		return err
	}
	defer sess.Close()

	// OnBatch runs on the session loop; printing reads the tree through Do,
	// so it happens on its own goroutine.
	batches := make(chan struct{}, 1)
	sess.OnBatch = func() {
		select {
		case batches <- struct{}{}:
		default:
		}
	}

	printBanner()
	info("session %s", sess.ID())
	info("authority %s", cfg.Authority.URL)
	fmt.Fprintln(os.Stderr)

	if err := sess.Start(ctx); err != nil {
		warn("initial connect failed, retrying: %v", err)
	}
	if opts.pageUID != "" {
		if err := sess.Mount(ctx, opts.pageUID, opts.rootUID); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			info("disconnecting")
			return nil
		case <-batches:
			if opts.quiet {
				continue
			}
			html, err := sess.HTML(ctx)
			if err != nil {
				continue
			}
			fmt.Fprintln(out, html)
		}
	}
}

func metricsServer(addr string, gatherer prometheus.Gatherer) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
