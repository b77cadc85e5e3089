package importer

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func newTestConsole(input string) (*Console, *bytes.Buffer) {
	var out bytes.Buffer
	return NewConsole(strings.NewReader(input), &out, &out), &out
}

func TestPromptChoice(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		withAbstract bool
		want         Choice
	}{
		{"yes", "y\n", false, ChoiceYes},
		{"yes word", "YES\n", false, ChoiceYes},
		{"no", "n\n", false, ChoiceNo},
		{"empty defaults to no", "\n", false, ChoiceNo},
		{"abstract", "a\n", true, ChoiceAbstract},
		{"garbage then yes", "maybe\ny\n", false, ChoiceYes},
		{"abstract unavailable loops", "a\nn\n", false, ChoiceNo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			console, _ := newTestConsole(tt.input)
			choice, err := console.PromptChoice(tt.withAbstract)
			if err != nil {
				t.Fatalf("PromptChoice returned error: %v", err)
			}
			if choice != tt.want {
				t.Errorf("PromptChoice = %v, want %v", choice, tt.want)
			}
		})
	}
}

func TestPromptChoiceAborted(t *testing.T) {
	console, _ := newTestConsole("")
	_, err := console.PromptChoice(false)
	if !errors.Is(err, ErrAborted) {
		t.Errorf("PromptChoice on closed input = %v, want ErrAborted", err)
	}
}

func TestPromptChoiceMentionsAbstract(t *testing.T) {
	console, out := newTestConsole("y\n")
	if _, err := console.PromptChoice(true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Show abstract? [a]") {
		t.Errorf("abstract option not offered: %q", out.String())
	}

	console, out = newTestConsole("y\n")
	if _, err := console.PromptChoice(false); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out.String(), "abstract") {
		t.Errorf("abstract option offered without data: %q", out.String())
	}
}
