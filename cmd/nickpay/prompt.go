package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// prompter reads answers from stdin. Passwords are read without echo when
// stdin is a terminal.
type prompter struct {
	stdin  io.Reader
	reader *bufio.Reader
	out    io.Writer
}

func newPrompter(stdin io.Reader, out io.Writer) *prompter {
	return &prompter{stdin: stdin, reader: bufio.NewReader(stdin), out: out}
}

func (p *prompter) line(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)

	s, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || s == "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func (p *prompter) password() (string, error) {
	if f, ok := p.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(p.out, "Password: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}

	return p.line("Password")
}

// valueOr returns v, or prompts for it when empty.
func (p *prompter) valueOr(v, label string) (string, error) {
	if v != "" {
		return v, nil
	}
	return p.line(label)
}
