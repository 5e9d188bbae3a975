// Copyright 2020, Square, Inc.

// Package app provides app-wide data structs and functions.
package app

import (
	"errors"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/square/jobctl/client"
	"github.com/square/jobctl/jobctl/config"
	"github.com/square/jobctl/util"
)

var (
	ErrHelp = errors.New("print help")
)

// Context represents how to run jobctl. A context is passed to jobctl.Run().
// A default context is created in main.go. Wrapper code can integrate with
// jobctl by passing a custom context to jobctl.Run(). Integration is done
// primarily with hooks and factories.
type Context struct {
	// Set in main.go or by wrapper
	In        io.Reader // where to read user input (default: stdin)
	Out       io.Writer // where to print output (default: stdout)
	Hooks     Hooks     // for integration with other code
	Factories Factories // for integration with other code

	// Set automatically in jobctl.Run()
	Options config.Options // command line options (--addr, etc.)
	Command config.Command // command and args, if any ("suspend <criterion>", etc.)
	Client  client.Client  // job manager client
	Nargs   int            // number of positional args including command
}

type Command interface {
	Prepare() error
	Run() error
	Cmd() string
	Help() string
}

type CommandFactory interface {
	Make(string, Context) (Command, error)
}

type HTTPClientFactory interface {
	Make(Context) (*http.Client, error)
}

type Factories struct {
	HTTPClient HTTPClientFactory
	Command    CommandFactory
}

type Hooks struct {
	AfterParseOptions func(*config.Options)
	CommandRunResult  func(interface{}, error)
}

// DefaultHTTPClientFactory makes an http.Client with Options.Timeout and, if
// Options.CertFile and KeyFile are set, TLS.
type DefaultHTTPClientFactory struct{}

func (f DefaultHTTPClientFactory) Make(ctx Context) (*http.Client, error) {
	o := ctx.Options
	c := &http.Client{
		Timeout: time.Duration(o.Timeout) * time.Millisecond,
	}
	if o.CertFile == "" && o.KeyFile == "" {
		return c, nil
	}
	tlsConfig, err := util.NewTLSConfig(o.CAFile, o.CertFile, o.KeyFile)
	if err != nil {
		return nil, err
	}
	c.Transport = &http.Transport{TLSClientConfig: tlsConfig}
	return c, nil
}

// MakeClient makes the default job manager client for the context.
func MakeClient(ctx Context) (client.Client, error) {
	f := ctx.Factories.HTTPClient
	if f == nil {
		f = DefaultHTTPClientFactory{}
	}
	httpClient, err := f.Make(ctx)
	if err != nil {
		return nil, err
	}
	return client.NewClient(httpClient, ctx.Options.Addr), nil
}

func Debug(fmt string, v ...interface{}) {
	log.Debugf(fmt, v...)
}
