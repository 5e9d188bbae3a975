// Copyright 2020, Square, Inc.

package config

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	DEFAULT_ADDR           = "127.0.0.1:32310"
	DEFAULT_STORE          = "memory"
	DEFAULT_TICK           = 1000 // ms
	DEFAULT_STEP           = 5    // percent per tick
	DEFAULT_WAIT_TIMEOUT   = 60   // seconds
	DEFAULT_POLL_INTERVAL  = 5    // seconds
	DEFAULT_MYSQL_MAX_OPEN = 10
	DEFAULT_MYSQL_MAX_IDLE = 2
)

///////////////////////////////////////////////////////////////////////////////
// High-Level Config Structs
///////////////////////////////////////////////////////////////////////////////

// The config used by the Job Manager. This is read from in job-manager/bin/main.go
type JobManager struct {
	// The config that the job manager web server will run with.
	Server Server `yaml:"server"`

	// Where jobs are stored.
	Store Store `yaml:"store"`

	// How jobs progress and respond to control actions.
	Sim Sim `yaml:"sim"`
}

///////////////////////////////////////////////////////////////////////////////
// Config Components
///////////////////////////////////////////////////////////////////////////////

// Configuration for a web server.
type Server struct {
	// The address the server will listen on (ex: "127.0.0.1:80").
	Addr string `yaml:"addr"`

	// The TLS config used by the server.
	TLS TLS `yaml:"tls"`
}

// Configuration for the job store.
type Store struct {
	// memory or mysql
	Type string `yaml:"type"`

	MySQL MySQL `yaml:"mysql"`
}

// Configuration for a MySQL database.
type MySQL struct {
	// The full Data Source Name (DSN) of the database (see
	// https://github.com/go-sql-driver/mysql#dsn-data-source-name).
	// "parseTime=true" is always set.
	DSN string `yaml:"dsn"`

	// The TLS config used to connect to the database.
	TLS TLS `yaml:"tls"`

	MaxOpen int `yaml:"max_open"`
	MaxIdle int `yaml:"max_idle"`

	// Create the jobs table on boot if it does not exist.
	CreateSchema bool `yaml:"create_schema"`
}

// Configuration for simulated jobs.
type Sim struct {
	// How often jobs progress, in milliseconds. Zero disables progress.
	Tick uint `yaml:"tick"`

	// Percent complete added each tick.
	Step int `yaml:"step"`

	// Suspend and kill commit jobs at least this percent complete. Zero disables.
	CommitAt int `yaml:"commit_at"`

	// New jobs start running instead of waiting for the first tick.
	StartRunning bool `yaml:"start_running"`
}

// Wait configures how long to wait for jobs, in seconds.
type Wait struct {
	Timeout      uint `yaml:"timeout"`
	PollInterval uint `yaml:"poll_interval"`
}

// TLS configuration.
type TLS struct {
	// The certificate file to use.
	CertFile string `yaml:"cert_file"`

	// The key file to use.
	KeyFile string `yaml:"key_file"`

	// The CA file to use.
	CAFile string `yaml:"ca_file"`
}

// Enabled returns true if the cert and key files are set.
func (t TLS) Enabled() bool {
	return t.CertFile != "" && t.KeyFile != ""
}

///////////////////////////////////////////////////////////////////////////////
// Loading Config
///////////////////////////////////////////////////////////////////////////////

// Defaults returns the default job manager config.
func Defaults() JobManager {
	return JobManager{
		Server: Server{
			Addr: DEFAULT_ADDR,
		},
		Store: Store{
			Type: DEFAULT_STORE,
			MySQL: MySQL{
				MaxOpen: DEFAULT_MYSQL_MAX_OPEN,
				MaxIdle: DEFAULT_MYSQL_MAX_IDLE,
			},
		},
		Sim: Sim{
			Tick: DEFAULT_TICK,
			Step: DEFAULT_STEP,
		},
	}
}

// DefaultWait returns the default wait: 60s timeout, 5s poll interval.
func DefaultWait() Wait {
	return Wait{
		Timeout:      DEFAULT_WAIT_TIMEOUT,
		PollInterval: DEFAULT_POLL_INTERVAL,
	}
}

// Load loads a configuration file into the struct pointed to by the
// configStruct argument. Values not in the file are not changed, so the
// struct can be initialized with defaults.
func Load(configFile string, configStruct interface{}) error {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, configStruct)
}

// LoadEnvFiles loads env vars from .env files, if they exist. Env vars already
// set are not changed. Missing files are ignored.
func LoadEnvFiles(files ...string) error {
	for _, file := range files {
		if _, err := os.Stat(file); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return err
		}
	}
	return nil
}

// Env returns the value of the env var, or def if not set.
func Env(varName, def string) string {
	if val := os.Getenv(varName); val != "" {
		return val
	}
	return def
}
