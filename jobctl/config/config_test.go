// Copyright 2020, Square, Inc.

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-test/deep"

	"github.com/square/jobctl/jobctl/config"
)

func TestParseCommandLine(t *testing.T) {
	cmdLine, err := config.ParseCommandLine(config.Defaults(), []string{"--addr", "http://jm:80", "-y", "--strict", "kill", "client=c1", "agent=SQL"})
	if err != nil {
		t.Fatal(err)
	}
	expect := config.CommandLine{
		Options: config.Options{
			Addr:     "http://jm:80",
			Timeout:  config.DEFAULT_TIMEOUT,
			Wait:     60,
			Interval: 5,
			Strict:   true,
			Yes:      true,
		},
		Command: config.Command{
			Cmd:  "kill",
			Args: []string{"client=c1", "agent=SQL"},
		},
	}
	if diff := deep.Equal(cmdLine, expect); diff != nil {
		t.Error(diff)
	}

	cmdLine, err = config.ParseCommandLine(config.Options{}, []string{"--help"})
	if err != nil {
		t.Fatal(err)
	}
	if !cmdLine.Help {
		t.Error("Help = false, expected true")
	}

	if _, err := config.ParseCommandLine(config.Options{}, []string{"--wait", "soon"}); err == nil {
		t.Error("no error for invalid --wait")
	}
}

func TestParseConfigFiles(t *testing.T) {
	dir := t.TempDir()
	file1 := filepath.Join(dir, "jobctl.yaml")
	file2 := filepath.Join(dir, "user.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(file1, []byte("addr: http://jm1\nwait: 120\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(file2, []byte("addr: http://jm2\nstrict: true\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("addr: [\n"), 0644); err != nil {
		t.Fatal(err)
	}

	got := config.ParseConfigFiles(config.Defaults(), file1+","+bad+","+filepath.Join(dir, "missing.yaml")+","+file2, false)
	expect := config.Defaults()
	expect.Addr = "http://jm2"
	expect.Wait = 120
	expect.Strict = true
	if diff := deep.Equal(got, expect); diff != nil {
		t.Error(diff)
	}
}
