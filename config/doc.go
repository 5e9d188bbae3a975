/*
Copyright 2020, Square, Inc.

Package config provides the ability to load config files into predefined
structures. The Job Manager uses the JobManager struct in job-manager/bin/main.go.
jobctl has its own options (jobctl/config) but uses the Wait defaults from here.

Types of config structs provided by this package:

* JobManager: all of the config needed to run the job manager

* Server: the configuration for running a webserver (listen address and TLS)

* Store: where the job manager stores jobs (memory or MySQL)

* Sim: how simulated jobs progress and respond to control actions

* Wait: how long to wait for jobs to reach a status

* TLS: the cert, key, and CA files for a Go tls.Config

Config is loaded from a YAML file (Load), then overridden by env vars (Env).
Env vars can be set in .env files (LoadEnvFiles).
*/
package config
