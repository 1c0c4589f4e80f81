package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrinter(t *testing.T) {
	var out, errOut bytes.Buffer
	p := &Printer{Out: &out, Err: &errOut, Styles: NewStyles(DefaultTheme)}

	p.Success("saved %s", "model.nmb")
	p.Info("%d samples", 12)
	p.Warning("skipped %d files", 2)
	p.Error("boom")
	p.Verbosef("hidden")

	if !strings.Contains(out.String(), "saved model.nmb") {
		t.Errorf("stdout missing success line: %q", out.String())
	}
	if !strings.Contains(out.String(), "12 samples") {
		t.Errorf("stdout missing info line: %q", out.String())
	}
	if !strings.Contains(errOut.String(), "skipped 2 files") {
		t.Errorf("stderr missing warning: %q", errOut.String())
	}
	if !strings.Contains(errOut.String(), "Error: boom") {
		t.Errorf("stderr missing error: %q", errOut.String())
	}
	if strings.Contains(errOut.String(), "hidden") {
		t.Error("verbose line printed while Verbose is false")
	}

	p.Verbose = true
	p.Verbosef("shown")
	if !strings.Contains(errOut.String(), "[verbose] shown") {
		t.Errorf("verbose line missing: %q", errOut.String())
	}
}
