// Package config loads reactive.json, the configuration shared by the
// reactive CLI commands and the inspector.
//
// # Configuration File Structure
//
//	{
//	  "runtime": {
//	    "maxEffectReruns": 100,
//	    "disposePolicy": "log",
//	    "skipEqualWrites": false,
//	    "debug": false
//	  },
//	  "inspect": {
//	    "host": "localhost",
//	    "port": 7070,
//	    "tick": "1s",
//	    "eventBuffer": 256
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "namespace": "reactive"
//	  },
//	  "tracing": {
//	    "enabled": false,
//	    "tracerName": "reactive"
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  }
//	}
//
// Every field is optional; missing values take the defaults shown above.
//
// # Usage
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rt := reactive.NewRuntime(cfg.RuntimeOptions()...)
package config
