// internal/cli/prompt.go
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// readLine prints prompt to stderr and reads one trimmed line from in.
func readLine(in *bufio.Reader, prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readSecret reads a value without echo when stdin is a terminal, and a
// plain line otherwise so secrets can be piped in.
func readSecret(in *bufio.Reader, prompt string) (string, error) {
	if !isTerminal(os.Stdin) {
		return readLine(in, prompt)
	}

	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

// confirm asks a yes/no question, defaulting to no.
func confirm(in *bufio.Reader, question string) bool {
	answer, err := readLine(in, question+" [y/N]: ")
	if err != nil {
		return false
	}
	return strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes")
}
