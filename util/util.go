// Copyright 2020, Square, Inc.

// Package util provides helper functions shared by the job manager and jobctl.
package util

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"github.com/rs/xid"
)

// XID generates a globally unique, 20-character job id.
func XID() string {
	return xid.New().String()
}

// NewTLSConfig takes a cert, key, and ca file and creates a *tls.Config.
// The CA file is optional.
func NewTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("tls.LoadX509KeyPair: %s", err)
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
	}
	if caFile == "" {
		return tlsConfig, nil
	}
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("no certificates in %s", caFile)
	}
	tlsConfig.RootCAs = caCertPool
	tlsConfig.ClientCAs = caCertPool
	return tlsConfig, nil
}

// ParseKV parses "key=value" args into a map. Args without "=" are returned
// in order as the second value.
func ParseKV(args []string) (map[string]string, []string) {
	kv := map[string]string{}
	rest := []string{}
	for _, arg := range args {
		p := strings.SplitN(arg, "=", 2)
		if len(p) != 2 || p[0] == "" {
			rest = append(rest, arg)
			continue
		}
		kv[strings.TrimSpace(p[0])] = strings.TrimSpace(p[1])
	}
	return kv, rest
}
