package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	domain "github.com/bryanwahyu/drishti/internal/domain/audit"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft, WidthMax: 60})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

const (
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
	ansiReset = "\033[0m"
)

// renderReport formats a finished session for the terminal.
func renderReport(st *domain.State, colorize bool) string {
	var b strings.Builder

	status := string(st.FinalReportStatus)
	if colorize {
		switch st.FinalReportStatus {
		case domain.StatusPass:
			status = ansiGreen + status + ansiReset
		case domain.StatusFail:
			status = ansiRed + status + ansiReset
		}
	}
	fmt.Fprintf(&b, "Session: %s\n", st.SessionID)
	fmt.Fprintf(&b, "Video:   %s (%s)\n", st.VideoID, st.VideoURL)
	fmt.Fprintf(&b, "Status:  %s\n\n", status)

	if len(st.ComplianceResults) > 0 {
		rows := make([][]string, 0, len(st.ComplianceResults))
		for _, issue := range st.ComplianceResults {
			rows = append(rows, []string{
				issue.Category,
				string(issue.Severity),
				deref(issue.TimeStamp),
				confidence(issue.ConfidenceScore),
				issue.Description,
			})
		}
		b.WriteString(renderTable(
			[]string{"Category", "Severity", "Timestamp", "Confidence", "Description"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		))
		b.WriteString("\n\n")
	} else {
		b.WriteString("No violations detected.\n\n")
	}

	b.WriteString("Summary:\n")
	b.WriteString(st.FinalReport)
	b.WriteString("\n")

	if len(st.Errors) > 0 {
		b.WriteString("\nErrors:\n")
		for _, e := range st.Errors {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func confidence(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *f)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
