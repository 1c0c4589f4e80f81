package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type prediction struct {
	File  string  `json:"file"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func TestOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	in := prediction{File: "clip.wav", Label: "siren", Score: 0.9}
	if err := Output(in, Options{Format: FormatJSON, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	var got prediction
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if got != in {
		t.Errorf("decoded %+v, want %+v", got, in)
	}
	if !strings.Contains(buf.String(), "\n  \"label\"") {
		t.Errorf("json not indented: %s", buf.String())
	}
}

func TestOutput_YAML(t *testing.T) {
	for _, f := range []Format{FormatYAML, ""} {
		var buf bytes.Buffer
		if err := Output(prediction{File: "clip.wav", Label: "siren"}, Options{Format: f, Writer: &buf}); err != nil {
			t.Fatal(err)
		}
		// goccy/go-yaml falls back to json tags.
		if !strings.Contains(buf.String(), "label: siren") {
			t.Errorf("format %q: got %s", f, buf.String())
		}
	}
}

func TestOutput_Table(t *testing.T) {
	var buf bytes.Buffer
	rows := Rows{
		Columns: []string{"file", "label"},
		Data:    [][]string{{"a.wav", "dog_bark"}, {"long-name.wav", "siren"}},
	}
	if err := Output(rows, Options{Format: FormatTable, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.HasPrefix(lines[0], "FILE") || !strings.Contains(lines[0], "LABEL") {
		t.Errorf("header = %q", lines[0])
	}
	// Columns are aligned.
	if strings.Index(lines[1], "dog_bark") != strings.Index(lines[2], "siren") {
		t.Errorf("columns not aligned:\n%s", buf.String())
	}
}

func TestOutput_TableFallback(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(map[string]int{"samples": 8}, Options{Format: FormatTable, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "samples: 8") {
		t.Errorf("fallback = %q, want yaml", buf.String())
	}
}

func TestOutput_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	if err := Output(map[string]int{"files": 3}, Options{Format: FormatJSON, File: path}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"files": 3`) {
		t.Errorf("file = %s", data)
	}
}

func TestOutput_UnknownFormat(t *testing.T) {
	if err := Output(1, Options{Format: "xml", Writer: &bytes.Buffer{}}); err == nil {
		t.Error("Output(xml) = nil error")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatYAML, false},
		{"yaml", FormatYAML, false},
		{" JSON ", FormatJSON, false},
		{"table", FormatTable, false},
		{"raw", "", true},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.nmb")
	for _, content := range []string{"first", "second"} {
		if err := WriteFile(path, []byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "second" {
		t.Fatalf("ReadFile = %q, %v", data, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temporary files left: %v", entries)
	}
	if err := WriteFile("", nil); err == nil {
		t.Error("WriteFile(\"\") = nil error")
	}
	if err := WriteFile(filepath.Join(dir, "missing", "x.nmb"), nil); err == nil {
		t.Error("WriteFile into missing dir = nil error")
	}
}
