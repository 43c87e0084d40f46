package jsexec

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"

	"github.com/vango-dev/livesync/internal/errors"
	"github.com/vango-dev/livesync/internal/tracing"
	"github.com/vango-dev/livesync/pkg/protocol"
)

// Sender delivers an outbound frame to the authority.
type Sender interface {
	Send(f protocol.Frame)
}

// Metrics receives execution outcomes. pkg/metrics implements it.
type Metrics interface {
	Exec(outcome string)
}

// Options configures a Bridge.
type Options struct {
	Logger  *slog.Logger
	Metrics Metrics
	Tracer  *tracing.Tracer

	// Globals are set on the runtime before the first request.
	Globals map[string]any
}

// Bridge executes remote JavaScript for one session.
type Bridge struct {
	sender  Sender
	logger  *slog.Logger
	metrics Metrics
	tracer  *tracing.Tracer
	vm      *goja.Runtime

	mu          sync.Mutex
	queue       []job
	outstanding map[string]struct{}
	closed      bool

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	pending sync.WaitGroup
}

type job struct {
	ctx      context.Context
	req      *protocol.ExecuteJS
	received time.Time
}

// New creates a bridge and starts its worker goroutine.
func New(sender Sender, opts Options) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		sender:      sender,
		logger:      logger.With("component", "jsexec"),
		metrics:     opts.Metrics,
		tracer:      opts.Tracer,
		vm:          goja.New(),
		outstanding: make(map[string]struct{}),
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	b.installConsole()
	for name, v := range opts.Globals {
		if err := b.vm.Set(name, v); err != nil {
			b.logger.Warn("set global failed", "name", name, "error", err)
		}
	}
	go b.worker()
	return b
}

// Execute queues req. It returns ErrDuplicate without running anything if
// req's correlation UID is already outstanding.
func (b *Bridge) Execute(ctx context.Context, req *protocol.ExecuteJS) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if _, dup := b.outstanding[req.CorrelationUID]; dup {
		b.mu.Unlock()
		b.logger.Warn("duplicate correlation uid rejected", "correlation_uid", req.CorrelationUID)
		b.outcome("rejected")
		return ErrDuplicate
	}
	b.outstanding[req.CorrelationUID] = struct{}{}
	b.queue = append(b.queue, job{ctx: ctx, req: req, received: time.Now()})
	b.pending.Add(1)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
	return nil
}

// Outstanding returns the number of queued or running requests.
func (b *Bridge) Outstanding() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.outstanding)
}

// Wait blocks until every queued request has finished.
func (b *Bridge) Wait() { b.pending.Wait() }

// Close interrupts a running request, drops queued ones and stops the
// worker. It is safe to call more than once.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	dropped := len(b.queue)
	b.queue = nil
	b.outstanding = make(map[string]struct{})
	b.mu.Unlock()

	for i := 0; i < dropped; i++ {
		b.pending.Done()
	}
	close(b.done)
	b.vm.Interrupt(ErrClosed)
	<-b.stopped
}

func (b *Bridge) worker() {
	defer close(b.stopped)
	for {
		select {
		case <-b.done:
			return
		case <-b.wake:
		}
		for {
			j, ok := b.pop()
			if !ok {
				break
			}
			b.handle(j)
		}
	}
}

func (b *Bridge) pop() (job, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || len(b.queue) == 0 {
		return job{}, false
	}
	j := b.queue[0]
	b.queue = b.queue[1:]
	return j, true
}

// handle runs one request and sends feedback when due.
func (b *Bridge) handle(j job) {
	req := j.req
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("exec panic",
				"correlation_uid", req.CorrelationUID,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
		b.mu.Lock()
		delete(b.outstanding, req.CorrelationUID)
		b.mu.Unlock()
		b.pending.Done()
	}()

	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := b.tracer.StartExec(ctx, req.CorrelationUID, req.NeedsFeedback)
	value, err := b.run(ctx, req, j.received)
	tracing.End(span, err)

	switch {
	case stderrors.Is(err, ErrTimeout):
		b.outcome("timeout")
		b.logger.Warn("exec timed out",
			"correlation_uid", req.CorrelationUID,
			"timeout", req.Timeout)
		return
	case err != nil && !stderrors.Is(err, ErrExec):
		// Cancelled or closed: the race resolved without an answer.
		b.outcome("cancelled")
		b.logger.Debug("exec cancelled", "correlation_uid", req.CorrelationUID, "error", err)
		return
	case err != nil:
		b.outcome("error")
	default:
		b.outcome("ok")
	}

	if !req.NeedsFeedback {
		if err != nil {
			b.logger.Warn("exec failed", "correlation_uid", req.CorrelationUID, "error", err)
		}
		return
	}
	res := &protocol.ExecResult{Result: value, CorrelationUID: req.CorrelationUID}
	if err != nil {
		res.Result = nil
		res.Err = scriptMessage(err)
	}
	b.sender.Send(res.Frame())
}

// run executes the code and the optional result expression under the
// timeout race. The race starts at received, so time spent queued behind
// other requests counts against the timeout; a request whose time ran out
// in the queue is not run.
func (b *Bridge) run(ctx context.Context, req *protocol.ExecuteJS, received time.Time) (any, error) {
	b.vm.ClearInterrupt()
	// Close sets closed before interrupting, so a Close racing this
	// point either is seen here or interrupts the run below.
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	var timedOut atomic.Bool
	if req.Timeout > 0 {
		remaining := req.Timeout - time.Since(received)
		if remaining <= 0 {
			return nil, b.timeoutError(req)
		}
		timer := time.AfterFunc(remaining, func() {
			timedOut.Store(true)
			b.vm.Interrupt(ErrTimeout)
		})
		defer timer.Stop()
	}
	stopCtx := context.AfterFunc(ctx, func() { b.vm.Interrupt(ctx.Err()) })
	defer stopCtx()

	v, err := b.vm.RunString(req.Code)
	if err == nil && req.ResultExpr != "" {
		v, err = b.vm.RunString(wrapExpression(req.ResultExpr))
	}

	if timedOut.Load() {
		return nil, b.timeoutError(req)
	}
	var interrupted *goja.InterruptedError
	if stderrors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return nil, cause
		}
		return nil, ErrClosed
	}
	if err != nil {
		return nil, errors.New(errors.CodeExecFailed).
			With("correlation_uid", req.CorrelationUID).
			Wrap(err)
	}
	if req.ResultExpr == "" || v == nil {
		return nil, nil
	}
	return wireValue(v.Export()), nil
}

func (b *Bridge) timeoutError(req *protocol.ExecuteJS) error {
	return errors.New(errors.CodeExecTimeout).
		WithDetailf("no answer within %s", req.Timeout).
		With("correlation_uid", req.CorrelationUID)
}

func (b *Bridge) outcome(o string) {
	if b.metrics != nil {
		b.metrics.Exec(o)
	}
}

func wrapExpression(expression string) string {
	return fmt.Sprintf("(function(){ return (%s); })()", expression)
}

// scriptMessage returns the script-level message of an exec error, e.g.
// "ReferenceError: y is not defined".
func scriptMessage(err error) string {
	var ex *goja.Exception
	if stderrors.As(err, &ex) {
		if v := ex.Value(); v != nil {
			return v.String()
		}
	}
	var se *errors.SyncError
	if stderrors.As(err, &se) && se.Wrapped != nil {
		return se.Wrapped.Error()
	}
	return err.Error()
}

// installConsole bridges console.log/info/warn/error to the logger.
func (b *Bridge) installConsole() {
	console := b.vm.NewObject()
	levels := map[string]slog.Level{
		"log":   slog.LevelInfo,
		"info":  slog.LevelInfo,
		"debug": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for name, level := range levels {
		_ = console.Set(name, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				parts[i] = a.String()
			}
			b.logger.Log(context.Background(), level, strings.Join(parts, " "), "source", "console")
			return goja.Undefined()
		})
	}
	_ = b.vm.Set("console", console)
}
