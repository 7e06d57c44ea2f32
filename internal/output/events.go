package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/plxgio/sakura-launcher/internal/types"
	"github.com/plxgio/sakura-launcher/internal/update"
)

const barWidth = 30

// EventPrinter renders update events as terminal lines. Progress redraws a
// single line in place when the output is interactive.
type EventPrinter struct {
	w           io.Writer
	interactive bool
	inProgress  bool
}

// NewEventPrinter creates a printer. Set interactive when w is a terminal.
func NewEventPrinter(w io.Writer, interactive bool) *EventPrinter {
	return &EventPrinter{w: w, interactive: interactive}
}

// Notify implements update.Observer.
func (p *EventPrinter) Notify(e update.Event) {
	p.Print(e)
}

// Print renders one event.
func (p *EventPrinter) Print(e update.Event) {
	switch e.Kind {
	case types.EventProgress:
		p.progress(e.Percent)
	case types.EventStatus:
		p.line("  %s", e.Status)
	case types.EventUpdateAvailable:
		p.line("New version available: %s", e.Version)
	case types.EventFinished:
		mark := "ok"
		if !e.Success {
			mark = "FAILED"
		}
		p.line("[%s] %s", mark, e.Message)
	case types.EventStage:
		// stages are visible through status lines
	}
}

func (p *EventPrinter) progress(percent int) {
	if !p.interactive {
		// one line per quarter keeps logs readable
		if percent%25 == 0 {
			_, _ = fmt.Fprintf(p.w, "  %3d%%\n", percent)
		}
		return
	}

	filled := percent * barWidth / 100
	_, _ = fmt.Fprintf(p.w, "\r  [%s%s] %3d%%", strings.Repeat("#", filled), strings.Repeat(" ", barWidth-filled), percent)
	p.inProgress = percent < 100
	if !p.inProgress {
		_, _ = fmt.Fprintln(p.w)
	}
}

func (p *EventPrinter) line(format string, args ...interface{}) {
	if p.inProgress {
		_, _ = fmt.Fprintln(p.w)
		p.inProgress = false
	}
	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}
