// Copyright 2020, Square, Inc.

// Package config handles config files, --config, and env vars at startup.
package config

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/alexflint/go-arg"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	jm "github.com/square/jobctl/config"
)

const (
	DEFAULT_CONFIG_FILES = "/etc/jobctl/jobctl.yaml,~/.jobctl.yaml"
	DEFAULT_ADDR         = "http://127.0.0.1:32310"
	DEFAULT_TIMEOUT      = 5000 // 5s
)

// Options represents typical command line options: --addr, --config, etc.
type Options struct {
	Addr     string `arg:"env" yaml:"addr" help:"job manager API address"`
	Config   string `arg:"env" help:"comma-separated list of config files"`
	Debug    bool   `help:"print debug info to stderr"`
	Help     bool   `arg:"-"`
	Ping     bool   `help:"ping the job manager API and exit"`
	Strict   bool   `arg:"env" yaml:"strict" help:"jobs that do not converge in time are failures"`
	Timeout  uint   `arg:"env" yaml:"timeout" help:"API request timeout (milliseconds)"`
	Wait     uint   `arg:"env" yaml:"wait" help:"max time to wait for jobs (seconds)"`
	Interval uint   `arg:"env" yaml:"interval" help:"time between status queries (seconds)"`
	Version  bool   `help:"print version and exit"`
	Verbose  bool   `arg:"-v" help:"more output"`
	Yes      bool   `arg:"-y" help:"do not ask for confirmation"`
	CAFile   string `arg:"--ca,env:CA_FILE" yaml:"ca_file" help:"CA file for TLS"`
	CertFile string `arg:"--cert,env:CERT_FILE" yaml:"cert_file" help:"client cert file for TLS"`
	KeyFile  string `arg:"--key,env:KEY_FILE" yaml:"key_file" help:"client key file for TLS"`
}

// Command represents a command (suspend, ls, etc.) and its values.
type Command struct {
	Cmd  string   `arg:"positional"`
	Args []string `arg:"positional"`
}

// CommandLine represents options (--addr, etc.) and commands (suspend, etc.).
// The caller is expected to copy and use the embedded structs separately, like:
//
//	var o config.Options = cmdLine.Options
//	var c config.Command = cmdLine.Command
//
// Some commands and options are mutually exclusive, like --ping and --version.
// Others can be used together, like --addr and --wait with any command.
type CommandLine struct {
	Options
	Command
}

// Defaults returns the built-in options, applied before config files.
func Defaults() Options {
	wait := jm.DefaultWait()
	return Options{
		Addr:     DEFAULT_ADDR,
		Timeout:  DEFAULT_TIMEOUT,
		Wait:     wait.Timeout,
		Interval: wait.PollInterval,
	}
}

// ParseCommandLine parses the command line args (without the program name) and
// env vars. Command line options override env vars. Default options are used
// unless overridden by env vars or command line options. Defaults are usually
// parsed from config files.
func ParseCommandLine(def Options, args []string) (CommandLine, error) {
	var c CommandLine
	c.Options = def
	p, err := arg.NewParser(arg.Config{Program: "jobctl"}, &c)
	if err != nil {
		return c, err
	}
	if err := p.Parse(args); err != nil {
		switch err {
		case arg.ErrHelp:
			c.Help = true
		case arg.ErrVersion:
			c.Version = true
		default:
			return c, err
		}
	}
	return c, nil
}

// ParseConfigFiles applies the comma-separated list of config files, in order,
// over def. Files that do not exist or are invalid are skipped.
func ParseConfigFiles(def Options, files string, debug bool) Options {
	for _, file := range strings.Split(files, ",") {
		file = strings.TrimSpace(file)
		if file == "" {
			continue
		}
		// If file starts with ~/, we need to expand this to the user home dir
		// because this is a shell expansion, not something Go knows about.
		if strings.HasPrefix(file, "~/") {
			usr, err := user.Current()
			if err != nil {
				continue
			}
			file = filepath.Join(usr.HomeDir, file[2:])
		}

		absfile, err := filepath.Abs(file)
		if err != nil {
			if debug {
				log.Debugf("filepath.Abs(%s) error: %s", file, err)
			}
			continue
		}

		bytes, err := os.ReadFile(absfile)
		if err != nil {
			if debug {
				log.Debugf("Cannot read config file %s: %s", file, err)
			}
			continue
		}

		var o Options
		if err := yaml.Unmarshal(bytes, &o); err != nil {
			if debug {
				log.Debugf("Invalid YAML in config file %s: %s", file, err)
			}
			continue
		}

		// Set options from this config file only if they're set
		if debug {
			log.Debugf("Applying config file %s (%s)", file, absfile)
		}
		if o.Addr != "" {
			def.Addr = o.Addr
		}
		if o.Timeout != 0 {
			def.Timeout = o.Timeout
		}
		if o.Wait != 0 {
			def.Wait = o.Wait
		}
		if o.Interval != 0 {
			def.Interval = o.Interval
		}
		if o.Strict {
			def.Strict = true
		}
		if o.CAFile != "" {
			def.CAFile = o.CAFile
		}
		if o.CertFile != "" {
			def.CertFile = o.CertFile
		}
		if o.KeyFile != "" {
			def.KeyFile = o.KeyFile
		}
	}
	return def
}
