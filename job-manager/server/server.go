// Copyright 2020, Square, Inc.

// Package server bootstraps and runs the Job Manager.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"

	"github.com/square/jobctl/config"
	"github.com/square/jobctl/job-manager/api"
	"github.com/square/jobctl/job-manager/app"
	"github.com/square/jobctl/job-manager/sim"
	"github.com/square/jobctl/metrics"
)

type Server struct {
	appCtx   app.Context
	api      *api.API
	advancer *sim.Advancer

	shutdownChan chan struct{}
	apiStopped   chan struct{}
	stopMux      sync.Mutex
	stopped      bool
}

func NewServer(appCtx app.Context) *Server {
	return &Server{
		appCtx:       appCtx,
		stopMux:      sync.Mutex{},
		apiStopped:   make(chan struct{}),
		shutdownChan: make(chan struct{}),
	}
}

// Run runs the Job Manager API in the foreground. It returns when the API stops
// running (either from an error, or after a call to Stop). If a custom RunAPI
// hook has been provided, it will be called to run the API instead of the default
// api.Run. Jobs progress in the background every Config.Sim.Tick milliseconds.
//
// If stopOnSignal = true, the server will listen for TERM and INT signals from the
// OS and call Stop to shut itself down when those signals are received. Else, the
// caller must call Stop to shut down the server.
func (s *Server) Run(stopOnSignal bool) error {
	if s.api == nil {
		panic("Server.Run called before Server.Boot")
	}
	if s.stopped {
		return fmt.Errorf("server stopped")
	}

	if stopOnSignal {
		go s.waitForShutdown()
	}

	if s.advancer != nil {
		go s.advancer.Run()
	}

	// Run the API - this will block until the API is stopped (or encounters
	// some fatal error).
	var err error
	if s.appCtx.Hooks.RunAPI != nil {
		err = s.appCtx.Hooks.RunAPI()
	} else {
		err = s.api.Run()
	}

	// If the server was stopped (as opposed to some error within the API), wait
	// to make sure it's done shutting down the API before returning.
	if s.stopped {
		<-s.apiStopped
		if err == http.ErrServerClosed {
			err = nil
		}
	}

	if err != nil {
		return fmt.Errorf("error from API: %s", err)
	}
	return nil
}

// Boot sets up the server. It must be called before calling Run.
func (s *Server) Boot() error {
	// Only run Boot once.
	if s.api != nil {
		return nil
	}

	// Either both or neither RunAPI and StopAPI hooks must be provided - can't
	// have just one.
	if (s.appCtx.Hooks.RunAPI == nil) != (s.appCtx.Hooks.StopAPI == nil) {
		return fmt.Errorf("Only one of RunAPI and StopAPI hooks provided - either both or neither must be provided.")
	}

	// Load config file
	cfg, err := s.appCtx.Hooks.LoadConfig(s.appCtx)
	if err != nil {
		return fmt.Errorf("error loading config: %s", err)
	}
	// Override with env vars, if set
	cfg.Server.Addr = config.Env("JOB_MANAGER_ADDR", cfg.Server.Addr)
	cfg.Store.Type = config.Env("JOB_MANAGER_STORE", cfg.Store.Type)
	cfg.Store.MySQL.DSN = config.Env("JOB_MANAGER_MYSQL_DSN", cfg.Store.MySQL.DSN)
	s.appCtx.Config = cfg
	logged := cfg
	logged.Store.MySQL.DSN = redactDSN(cfg.Store.MySQL.DSN)
	cfgstr, _ := json.MarshalIndent(logged, "", "  ")
	log.Printf("Config: %s", cfgstr)

	s.appCtx.ShutdownChan = s.shutdownChan

	// Job store
	s.appCtx.Store, err = s.appCtx.Factories.MakeStore(s.appCtx)
	if err != nil {
		return fmt.Errorf("error making job store: %s", err)
	}

	s.appCtx.Machine = sim.NewMachine(sim.Config{
		Step:         cfg.Sim.Step,
		CommitAt:     cfg.Sim.CommitAt,
		StartRunning: cfg.Sim.StartRunning,
	})
	if cfg.Sim.Tick > 0 {
		s.advancer = sim.NewAdvancer(s.appCtx.Store, s.appCtx.Machine, time.Duration(cfg.Sim.Tick)*time.Millisecond)
	}

	// Metrics served at /metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewJobCollector(s.appCtx.Store, 5*time.Second),
	)
	s.appCtx.Registry = reg

	s.api = api.NewAPI(s.appCtx)
	return nil
}

// Stop stops the server. New jobs are refused, jobs stop progressing, and then
// the API is stopped (using either the default api.Stop or the StopAPI hook if
// provided). Once Stop has been called, the server cannot be reused - future calls
// to Run will return an error.
func (s *Server) Stop() error {
	// Only stop once. We lock the whole Stop call, so that, if Stop is called
	// multiple times in quick succession, no calls will return before the server
	// has actually been shut down.
	s.stopMux.Lock()
	defer s.stopMux.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true

	log.Infof("Stopping Job Manager server")

	// The API begins refusing new jobs.
	close(s.shutdownChan)

	if s.advancer != nil {
		s.advancer.Stop()
	}

	var err error
	if s.appCtx.Hooks.StopAPI != nil {
		err = s.appCtx.Hooks.StopAPI()
	} else {
		err = s.api.Stop()
	}
	close(s.apiStopped) // indicate to Run that the API is done shutting down

	if err != nil {
		return fmt.Errorf("error stopping API: %s", err)
	}
	return nil
}

// API returns the Job Manager API created in Boot.
func (s *Server) API() *api.API {
	return s.api
}

// AppContext returns the app context, complete after Boot.
func (s *Server) AppContext() app.Context {
	return s.appCtx
}

// --------------------------------------------------------------------------

// Catch TERM and INT signals to gracefully shut down the Job Manager
func (s *Server) waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan

	err := s.Stop()
	if err != nil {
		log.Errorf("error shutting down server: %s", err)
	}
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "(invalid)"
	}
	if cfg.Passwd != "" {
		cfg.Passwd = "xxx"
	}
	return cfg.FormatDSN()
}
