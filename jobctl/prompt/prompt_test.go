// Copyright 2020, Square, Inc.

package prompt_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/square/jobctl/jobctl/prompt"
)

func TestConfirmationPrompt(t *testing.T) {
	tests := []struct {
		input  string
		expect error
	}{
		{"yes\n", nil},
		{"  yes  \n", nil},
		{"yes", nil},
		{"y\n", prompt.ErrNack},
		{"\n", prompt.ErrNack},
		{"", prompt.ErrNack},
	}
	for _, tt := range tests {
		out := &bytes.Buffer{}
		p := prompt.NewConfirmationPrompt("Kill 3 jobs? Enter 'yes' to confirm: ", "yes", strings.NewReader(tt.input), out)
		if err := p.Prompt(); err != tt.expect {
			t.Errorf("input %q: got err %v, expected %v", tt.input, err, tt.expect)
		}
		if out.String() != "Kill 3 jobs? Enter 'yes' to confirm: " {
			t.Errorf("prompt = %q", out.String())
		}
	}
}
