// Copyright 2020, Square, Inc.

// Package app provides app context and extensions: hooks and factories.
package app

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/square/jobctl/config"
	"github.com/square/jobctl/job-manager/sim"
	"github.com/square/jobctl/job-manager/store"
	"github.com/square/jobctl/util"
)

// Context represents the config, core service singletons, and 3rd-party extensions.
// There is one immutable context shared by many packages, created in Server.Boot,
// called api.appCtx.
type Context struct {
	// User-provided config from config file
	Config config.JobManager

	// Core service singletons, not user-extensible
	Store        store.Store
	Machine      *sim.Machine
	Registry     *prometheus.Registry
	ShutdownChan chan struct{}

	// 3rd-party extensions, all optional
	Hooks     Hooks
	Factories Factories
}

// Hooks allow users to modify system behavior at certain points. All hooks are
// optional; the defaults are sufficient to run the job manager.
type Hooks struct {
	// LoadConfig loads the job manager config. The default hook loads the config
	// file in env var JOB_MANAGER_CONFIG, if set, over the defaults.
	LoadConfig func(Context) (config.JobManager, error)

	// Auth authenticates every API request, except /metrics. The default is no auth.
	Auth func(*http.Request) (bool, error)

	// RunAPI runs the job manager API. It should block until the API is stopped
	// via a call to StopAPI. If this hook is provided, it is called instead of
	// api.Run, and StopAPI must be provided as well.
	RunAPI func() error

	// StopAPI stops running the job manager API. It's called when the server is
	// stopped, and it should cause RunAPI to return. If this hook is provided, it
	// is called instead of api.Stop, and RunAPI must be provided as well.
	StopAPI func() error
}

// Factories make objects at runtime. All factories are optional; the defaults
// are sufficient to run the job manager.
type Factories struct {
	MakeStore func(Context) (store.Store, error)
}

// Defaults returns a Context with default (built-in) hooks and factories.
func Defaults() Context {
	return Context{
		Hooks: Hooks{
			LoadConfig: LoadConfig,
		},
		Factories: Factories{
			MakeStore: MakeStore,
		},
	}
}

func LoadConfig(appCtx Context) (config.JobManager, error) {
	cfg := config.Defaults()
	cfgFile := os.Getenv("JOB_MANAGER_CONFIG")
	if cfgFile == "" {
		log.Info("JOB_MANAGER_CONFIG not set, using default config")
		return cfg, nil
	}
	if err := config.Load(cfgFile, &cfg); err != nil {
		return cfg, fmt.Errorf("error loading config file %s: %s", cfgFile, err)
	}
	return cfg, nil
}

// MakeStore makes the store in Config.Store.Type: memory or mysql.
func MakeStore(appCtx Context) (store.Store, error) {
	cfg := appCtx.Config.Store
	switch cfg.Type {
	case "", "memory":
		return store.NewMemory(), nil
	case "mysql":
		mycfg := cfg.MySQL
		if mycfg.DSN == "" {
			return nil, fmt.Errorf("store.mysql.dsn not set in config")
		}
		var tlsConfig *tls.Config
		var err error
		if mycfg.TLS.Enabled() {
			tlsConfig, err = util.NewTLSConfig(mycfg.TLS.CAFile, mycfg.TLS.CertFile, mycfg.TLS.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("error loading MySQL TLS config: %s", err)
			}
		}
		db, err := store.OpenMySQL(mycfg.DSN, tlsConfig, mycfg.MaxOpen, mycfg.MaxIdle)
		if err != nil {
			return nil, fmt.Errorf("error connecting to MySQL: %s", err)
		}
		s := store.NewMySQL(db)
		if mycfg.CreateSchema {
			if err := s.CreateSchema(context.Background()); err != nil {
				return nil, fmt.Errorf("error creating MySQL schema: %s", err)
			}
		}
		return s, nil
	}
	return nil, fmt.Errorf("invalid store.type: %s (valid: memory, mysql)", cfg.Type)
}
