// Copyright 2020, Square, Inc.

// Package prompt provides user input handling.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrNack = errors.New("negative ack")
)

type Prompter interface {
	Prompt() error
}

// ConfirmationPrompt prints a prompt and returns nil only if the user enters
// the confirmation word, else ErrNack.
type ConfirmationPrompt struct {
	prompt string
	word   string
	in     io.Reader
	out    io.Writer
}

func NewConfirmationPrompt(prompt, word string, in io.Reader, out io.Writer) *ConfirmationPrompt {
	p := &ConfirmationPrompt{
		prompt: prompt,
		word:   word,
		in:     in,
		out:    out,
	}
	return p
}

func (p *ConfirmationPrompt) Prompt() error {
	fmt.Fprint(p.out, p.prompt)
	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	if strings.TrimSpace(line) != p.word {
		return ErrNack
	}
	return nil
}
