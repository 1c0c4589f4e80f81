package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-yaml"
)

// Format selects how Output renders a result.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// ParseFormat maps a --format value to a Format. Empty means YAML.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case "":
		return FormatYAML, nil
	case FormatYAML, FormatJSON, FormatTable:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want yaml, json or table)", s)
}

// Table is a result with a row rendering.
type Table interface {
	Header() []string
	Rows() [][]string
}

// Rows is a literal Table.
type Rows struct {
	Columns []string
	Data    [][]string
}

func (r Rows) Header() []string { return r.Columns }
func (r Rows) Rows() [][]string { return r.Data }

// Options says where and how Output writes.
type Options struct {
	Format Format
	// Writer receives the output. When nil, File is created, or stdout is
	// used when File is empty too.
	Writer io.Writer
	File   string
}

// Output renders v.
func Output(v any, opts Options) error {
	w := opts.Writer
	if w == nil {
		if opts.File == "" {
			w = os.Stdout
		} else {
			f, err := os.Create(opts.File)
			if err != nil {
				return fmt.Errorf("create %s: %w", opts.File, err)
			}
			defer f.Close()
			w = f
		}
	}

	switch opts.Format {
	case FormatYAML, "":
		return writeYAML(w, v)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatTable:
		if t, ok := v.(Table); ok {
			return writeTable(w, t)
		}
		return writeYAML(w, v)
	}
	return fmt.Errorf("unknown format %q", opts.Format)
}

func writeYAML(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// writeTable prints an upper-case header row, then one line per row.
func writeTable(w io.Writer, t Table) error {
	tw := NewTabWriter(w)
	if h := t.Header(); len(h) > 0 {
		fmt.Fprintln(tw, strings.ToUpper(strings.Join(h, "\t")))
	}
	for _, row := range t.Rows() {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// NewTabWriter returns the column writer tables are printed with.
func NewTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// WriteFile writes data to path through a temporary file in the same
// directory, so an interrupted write never leaves half a bundle behind.
func WriteFile(path string, data []byte) error {
	if path == "" {
		return fmt.Errorf("write file: empty path")
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer os.Remove(f.Name())
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(f.Name(), 0o644)
	}
	if err == nil {
		err = os.Rename(f.Name(), path)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
