// Package interactive provides interactive prompts for user confirmation.
package interactive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Decision is the user's answer to an update offer.
type Decision int

const (
	DecisionUpdate Decision = iota // Apply the update now
	DecisionLater                  // Keep the pending update and ask again later
	DecisionCancel                 // Discard the pending update
)

func (d Decision) String() string {
	switch d {
	case DecisionUpdate:
		return "update"
	case DecisionLater:
		return "later"
	case DecisionCancel:
		return "cancel"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Prompter handles interactive prompts.
type Prompter struct {
	in      io.Reader
	out     io.Writer
	scanner *bufio.Scanner
}

// NewPrompter creates a prompter with stdin/stdout.
func NewPrompter() *Prompter {
	return NewPrompterWithIO(os.Stdin, os.Stdout)
}

// NewPrompterWithIO creates a prompter with custom input/output (for testing).
func NewPrompterWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:      in,
		out:     out,
		scanner: bufio.NewScanner(in),
	}
}

// IsTerminal checks if stdin is a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// readAnswer displays a question and returns the lowercased answer.
// ok is false when input is exhausted.
func (p *Prompter) readAnswer(choices, format string, args ...interface{}) (answer string, ok bool) {
	_, _ = fmt.Fprintf(p.out, format, args...)
	_, _ = fmt.Fprintf(p.out, " [%s] ", choices)

	if !p.scanner.Scan() {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(p.scanner.Text())), true
}

// PromptUpdate shows the offered version and changelog and asks whether to
// update now, later, or never. End of input counts as later, so nothing is
// lost when there is no one to answer.
func (p *Prompter) PromptUpdate(current, version, changelog string) Decision {
	_, _ = fmt.Fprintf(p.out, "\nA new version is available: %s (installed: %s)\n", version, current)
	if changelog = strings.TrimSpace(changelog); changelog != "" {
		_, _ = fmt.Fprintln(p.out, "\nWhat's new:")
		for _, line := range strings.Split(changelog, "\n") {
			_, _ = fmt.Fprintf(p.out, "  %s\n", line)
		}
	}

	for {
		answer, ok := p.readAnswer("u/l/c", "\nUpdate now, later, or cancel?")
		if !ok {
			return DecisionLater
		}
		switch answer {
		case "u", "update", "y", "yes":
			return DecisionUpdate
		case "l", "later", "":
			return DecisionLater
		case "c", "cancel", "n", "no":
			return DecisionCancel
		default:
			_, _ = fmt.Fprintln(p.out, "Invalid response, please answer u, l or c.")
		}
	}
}

// Confirm asks a yes/no question. Anything but yes is no.
func (p *Prompter) Confirm(format string, args ...interface{}) bool {
	answer, ok := p.readAnswer("y/n", format, args...)
	if !ok {
		return false
	}
	return answer == "y" || answer == "yes"
}
