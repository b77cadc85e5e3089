// Package importer drives the interactive import and snowball workflows:
// it queries external sources, filters already-known and already-rejected
// candidates, prompts the curator, and merges accepted candidates into the
// store.
package importer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrAborted is returned when the curator ends the session, e.g. by
// closing the input stream.
var ErrAborted = errors.New("aborted")

// Choice is a curator decision about a candidate.
type Choice int

const (
	// ChoiceYes imports the candidate.
	ChoiceYes Choice = iota
	// ChoiceNo rejects the candidate durably.
	ChoiceNo
	// ChoiceAbstract requests the candidate's abstract before deciding.
	ChoiceAbstract
)

// Console bundles curator interaction: prompts read from in, messages
// written to out, warnings to errOut. Tests substitute in-memory buffers.
type Console struct {
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer
}

// NewConsole returns a console reading prompts from in and writing to out
// and errOut.
func NewConsole(in io.Reader, out, errOut io.Writer) *Console {
	return &Console{
		in:     bufio.NewReader(in),
		out:    out,
		errOut: errOut,
	}
}

// Printf writes a plain message.
func (c *Console) Printf(format string, args ...any) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

// Infof writes an informational message.
func (c *Console) Infof(format string, args ...any) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

// Successf writes a message about a completed mutation.
func (c *Console) Successf(format string, args ...any) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

// Warnf writes a warning to the error stream.
func (c *Console) Warnf(format string, args ...any) {
	fmt.Fprintf(c.errOut, "WARNING: "+format+"\n", args...)
}

// PromptChoice asks the curator to decide about the displayed candidate and
// loops until the answer is understood. The abstract option is only offered
// when withAbstract is set. A closed input stream yields ErrAborted.
func (c *Console) PromptChoice(withAbstract bool) (Choice, error) {
	prompt := "Import? [y/N]"
	if withAbstract {
		prompt += ", Show abstract? [a]"
	}
	prompt += ": "

	for {
		fmt.Fprint(c.out, prompt)

		line, err := c.in.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				return ChoiceNo, ErrAborted
			}
			return ChoiceNo, fmt.Errorf("reading input: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return ChoiceYes, nil
		case "", "n", "no":
			return ChoiceNo, nil
		case "a":
			if withAbstract {
				return ChoiceAbstract, nil
			}
		}
	}
}
