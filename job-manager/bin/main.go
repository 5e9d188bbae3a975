// Copyright 2020, Square, Inc.

package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/square/jobctl/config"
	"github.com/square/jobctl/job-manager/app"
	"github.com/square/jobctl/job-manager/server"
)

func main() {
	if err := config.LoadEnvFiles(".env"); err != nil {
		log.Fatalf("Error loading .env: %s", err)
	}
	s := server.NewServer(app.Defaults())
	if err := s.Boot(); err != nil {
		log.Fatalf("Error starting Job Manager: %s", err)
	}
	err := s.Run(true)
	log.Fatalf("Job Manager stopped: %s", err)
}
