// Package config provides configuration parsing for livesync clients.
//
// The configuration is stored in livesync.json (or livesync.yaml) next to
// where the client runs. This package handles loading, saving, validating
// and converting it to a client.Config.
//
// # Configuration File Structure
//
//	{
//	  "authority": {
//	    "url": "wss://app.example.com/live",
//	    "location": "https://app.example.com/dashboard",
//	    "cookie": "session=abc"
//	  },
//	  "connection": {
//	    "dialTimeout": "10s",
//	    "pingInterval": "30s"
//	  },
//	  "reconnect": {
//	    "initial": "250ms",
//	    "factor": 2,
//	    "attempts": 5
//	  },
//	  "render": {
//	    "frameInterval": "16ms"
//	  },
//	  "metrics": {
//	    "addr": ":9100"
//	  },
//	  "logLevel": "debug"
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ccfg, err := cfg.Client(slog.Default())
package config
