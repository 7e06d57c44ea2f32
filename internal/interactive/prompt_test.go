package interactive

import (
	"bytes"
	"strings"
	"testing"
)

func TestPromptUpdate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Decision
	}{
		{"update", "u\n", DecisionUpdate},
		{"yes", "yes\n", DecisionUpdate},
		{"later", "l\n", DecisionLater},
		{"empty line", "\n", DecisionLater},
		{"cancel", "c\n", DecisionCancel},
		{"no", "N\n", DecisionCancel},
		{"end of input", "", DecisionLater},
		{"invalid then update", "maybe\nu\n", DecisionUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := &bytes.Buffer{}
			p := NewPrompterWithIO(strings.NewReader(tt.input), output)

			got := p.PromptUpdate("0.0.7", "0.0.8", "Fixed login\nNew background")
			if got != tt.want {
				t.Errorf("PromptUpdate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPromptUpdateShowsChangelog(t *testing.T) {
	output := &bytes.Buffer{}
	p := NewPrompterWithIO(strings.NewReader("l\n"), output)

	p.PromptUpdate("0.0.7", "0.0.8", "Fixed login\nNew background")

	out := output.String()
	for _, want := range []string{"0.0.8", "0.0.7", "  Fixed login", "  New background", "[u/l/c]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPromptUpdateInvalidResponse(t *testing.T) {
	output := &bytes.Buffer{}
	p := NewPrompterWithIO(strings.NewReader("x\nc\n"), output)

	if got := p.PromptUpdate("0.0.7", "0.0.8", ""); got != DecisionCancel {
		t.Errorf("PromptUpdate() = %v, want cancel", got)
	}
	if !strings.Contains(output.String(), "Invalid response") {
		t.Errorf("expected 'Invalid response' message in output")
	}
	if strings.Contains(output.String(), "What's new") {
		t.Errorf("empty changelog should not be printed")
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"whatever\n", false},
		{"", false},
	}

	for _, tt := range tests {
		p := NewPrompterWithIO(strings.NewReader(tt.input), &bytes.Buffer{})
		if got := p.Confirm("Restore %d files?", 3); got != tt.want {
			t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestDecisionString(t *testing.T) {
	if DecisionUpdate.String() != "update" || DecisionLater.String() != "later" || DecisionCancel.String() != "cancel" {
		t.Error("unexpected Decision strings")
	}
}
