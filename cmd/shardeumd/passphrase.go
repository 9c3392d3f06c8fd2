package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// passphraseSource resolves the node keystore passphrase. The environment
// variable wins when present, even if empty, since generated keystores carry an
// empty passphrase. Without it the operator is prompted when stdin is a
// terminal; an unattended daemon falls back to the empty passphrase.
type passphraseSource struct {
	envVar       string
	lookupEnv    func(string) (string, bool)
	fd           int
	isTerminal   func(int) bool
	readPassword func(int) ([]byte, error)
	prompt       io.Writer
}

func newPassphraseSource(envVar string) passphraseSource {
	return passphraseSource{
		envVar:       envVar,
		lookupEnv:    os.LookupEnv,
		fd:           int(os.Stdin.Fd()),
		isTerminal:   term.IsTerminal,
		readPassword: term.ReadPassword,
		prompt:       os.Stderr,
	}
}

func (s passphraseSource) Get() (string, error) {
	if value, ok := s.lookupEnv(s.envVar); ok {
		return value, nil
	}
	if !s.isTerminal(s.fd) {
		return "", nil
	}
	fmt.Fprint(s.prompt, "Enter node keystore passphrase: ")
	raw, err := s.readPassword(s.fd)
	fmt.Fprintln(s.prompt)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return string(raw), nil
}
