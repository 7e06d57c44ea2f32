package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/plxgio/sakura-launcher/internal/types"
	"github.com/plxgio/sakura-launcher/internal/update"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"yml", FormatYAML, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func sampleStatus() StatusReport {
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return StatusReport{
		Version:     "1.2.0",
		InstallDir:  "/opt/sakura",
		ManifestURL: "https://example.com/updates/launcher_version.json",
		LastCheck:   &last,
		Pending: &PendingInfo{
			Version:     "1.3.0",
			Changelog:   "Faster downloads\n\nNew logo",
			DownloadURL: "https://example.com/updates/launcher_update.zip",
			FetchedAt:   last,
		},
		Backup: &BackupInfo{
			ID:              "abc",
			CreatedAt:       last,
			LauncherVersion: "1.1.0",
			Files:           []string{"launcher", "assets/logo.png"},
			Size:            2048,
		},
	}
}

func TestWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf, FormatJSON).Write(sampleStatus()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"version": "1.2.0"`, `"install_dir": "/opt/sakura"`, `"size": 2048`} {
		if !strings.Contains(out, want) {
			t.Errorf("JSON output missing %s:\n%s", want, out)
		}
	}
}

func TestWriterYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf, FormatYAML).Write(sampleStatus()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"version: 1.2.0", "install_dir: /opt/sakura", "pending:", "  version: 1.3.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("YAML output missing %q:\n%s", want, out)
		}
	}
}

func TestStatusReportText(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf, FormatText).Write(sampleStatus()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Version:      1.2.0",
		"Install dir:  /opt/sakura",
		"Pending update: 1.3.0",
		"  Faster downloads",
		"  New logo",
		"Backup: 2 files, 2.0 kB",
		"from 1.1.0",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestStatusReportTextEmpty(t *testing.T) {
	out := StatusReport{Version: "1.0.0"}.String()
	for _, want := range []string{"Last check:   never", "Pending update: none", "Backup: none"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestCheckReportString(t *testing.T) {
	tests := []struct {
		name   string
		report CheckReport
		want   string
	}{
		{"skipped", CheckReport{CurrentVersion: "1.0", Skipped: true}, "skipping"},
		{"available", CheckReport{CurrentVersion: "1.0", RemoteVersion: "1.1", Available: true}, "Update available: 1.0 -> 1.1"},
		{"current", CheckReport{CurrentVersion: "1.1", RemoteVersion: "1.1"}, "Up to date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.report.String(); !strings.Contains(got, tt.want) {
				t.Errorf("String() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestEventPrinterNonInteractive(t *testing.T) {
	var buf bytes.Buffer
	p := NewEventPrinter(&buf, false)

	p.Notify(update.Event{Kind: types.EventStatus, Status: "Downloading update..."})
	for _, pct := range []int{10, 25, 40, 50, 100} {
		p.Notify(update.Event{Kind: types.EventProgress, Percent: pct})
	}
	p.Notify(update.Event{Kind: types.EventStage, Stage: types.StageExtracting})
	p.Notify(update.Event{Kind: types.EventFinished, Success: true, Message: "1.3.0"})

	want := "  Downloading update...\n   25%\n   50%\n  100%\n[ok] 1.3.0\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestEventPrinterInteractive(t *testing.T) {
	var buf bytes.Buffer
	p := NewEventPrinter(&buf, true)

	p.Print(update.Event{Kind: types.EventProgress, Percent: 50})
	p.Print(update.Event{Kind: types.EventFinished, Success: false, Message: "boom"})

	out := buf.String()
	if !strings.HasPrefix(out, "\r  [###############               ]  50%") {
		t.Errorf("progress line = %q", out)
	}
	if !strings.HasSuffix(out, "\n[FAILED] boom\n") {
		t.Errorf("finished line should start on a fresh line, got %q", out)
	}
}
