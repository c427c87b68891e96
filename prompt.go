package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// interactive reports whether stdin is a terminal. Confirmation prompts
// only make sense when someone is there to answer them.
func interactive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// askYesNo prints a [y/N] prompt and reads one line from r. Anything but an
// explicit yes counts as no.
func askYesNo(r io.Reader, w io.Writer, prompt string) (bool, error) {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// newConfirmer builds the confirmation gate for uploads. With assumeYes the
// gate always passes. Non-interactive runs without --yes always refuse:
// a public upload must never slip through unattended.
func newConfirmer(assumeYes bool) func(string) (bool, error) {
	if assumeYes {
		return func(string) (bool, error) { return true, nil }
	}

	if !interactive() {
		return func(string) (bool, error) {
			fmt.Fprintln(os.Stderr, "Refusing without confirmation (no terminal). Pass --yes to proceed.")
			return false, nil
		}
	}

	return func(prompt string) (bool, error) {
		return askYesNo(os.Stdin, os.Stderr, prompt)
	}
}
