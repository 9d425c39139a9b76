package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/paw/internal/report"
	"github.com/psantana5/paw/pkg/watch"
)

type outputFormatKind string

const (
	formatTable outputFormatKind = "table"
	formatJSON  outputFormatKind = "json"
	formatYAML  outputFormatKind = "yaml"
)

func parseFormat(s string) (outputFormatKind, error) {
	switch f := outputFormatKind(strings.ToLower(s)); f {
	case formatTable, formatJSON, formatYAML:
		return f, nil
	case "":
		return formatTable, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
	}
}

// runResult is what `paw run` reports once the command has exited
type runResult struct {
	Profile string          `json:"profile,omitempty" yaml:"profile,omitempty"`
	Summary *report.Summary `json:"summary" yaml:"summary"`
	Recent  []watch.Sample  `json:"recent_samples" yaml:"recent_samples"`
	Stdout  string          `json:"stdout,omitempty" yaml:"stdout,omitempty"`
}

func writeResult(w io.Writer, format outputFormatKind, res *runResult) error {
	switch format {
	case formatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(res)

	case formatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(res); err != nil {
			return err
		}
		return encoder.Close()

	default:
		return writeResultTable(w, res)
	}
}

func writeResultTable(w io.Writer, res *runResult) error {
	s := res.Summary

	if len(res.Recent) > 0 {
		table := tablewriter.NewWriter(w)
		table.Header("Uptime", "RSS", "VMS", "CPU")
		for _, sample := range res.Recent {
			rss, vms := "n/a", "n/a"
			if sample.Memory != nil {
				rss = formatBytes(sample.Memory.RSS)
				vms = formatBytes(sample.Memory.VMS)
			}
			table.Append(
				formatUptime(sample.Uptime),
				rss,
				vms,
				formatCPU(sample.CPU),
			)
		}
		if err := table.Render(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	command := strings.TrimSpace(s.Command + " " + strings.Join(s.Args, " "))
	exit := "none"
	if s.ExitCode != nil {
		exit = fmt.Sprintf("%d", *s.ExitCode)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Field", "Value")
	rows := [][]string{
		{"Watch ID", s.WatchID},
		{"Command", command},
		{"PID", fmt.Sprintf("%d", s.PID)},
		{"Duration", s.Duration().Round(time.Millisecond).String()},
		{"Samples", fmt.Sprintf("%d", s.Samples)},
		{"Peak RSS", formatBytes(s.PeakRSS)},
		{"Peak VMS", formatBytes(s.PeakVMS)},
		{"Mean CPU", fmt.Sprintf("%.1f%%", s.MeanCPU)},
		{"Max CPU", fmt.Sprintf("%.1f%%", s.MaxCPU)},
		{"Exit code", exit},
	}
	if res.Profile != "" {
		rows = append([][]string{{"Profile", res.Profile}}, rows...)
	}
	if s.Signal != "" {
		rows = append(rows, []string{"Signal", s.Signal})
	}
	rows = append(rows, []string{"Reason", string(s.Reason)})
	if s.CPUGaps > 0 || s.MemoryGaps > 0 {
		rows = append(rows, []string{"Unavailable", fmt.Sprintf("cpu %d, memory %d", s.CPUGaps, s.MemoryGaps)})
	}
	for _, row := range rows {
		table.Append(row[0], row[1])
	}
	return table.Render()
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

func formatCPU(cpu *float64) string {
	if cpu == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", *cpu)
}

func formatUptime(ms uint64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}
