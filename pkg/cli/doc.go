// Package cli renders command results and status lines for noisemap.
//
// Results go to stdout (or --output) as YAML, JSON or an aligned table:
//
//	err := cli.Output(report, cli.Options{Format: cli.FormatTable, Writer: os.Stdout})
//
// A value that implements Table renders as rows; anything else falls back
// to YAML when a table is asked for. Status lines come from a Printer and
// are styled with lipgloss, which drops the styling when the destination
// is not a terminal.
package cli
