package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"avrocompat/internal/compat"
	"avrocompat/internal/schema/types"
	"avrocompat/internal/service"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"
)

type outputFormat string

const (
	formatText outputFormat = "text"
	formatJSON outputFormat = "json"
	formatYAML outputFormat = "yaml"
)

func parseFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case formatText, formatJSON, formatYAML:
		return f, nil
	case "":
		return formatText, nil
	default:
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown output format %q (want text, json or yaml)", s))
	}
}

func writeCheckReport(w io.Writer, format outputFormat, report service.CheckReport) error {
	switch format {
	case formatJSON:
		return writeJSON(w, report)
	case formatYAML:
		return writeYAML(w, report)
	}

	how := "read"
	if report.Check == types.MutualRead {
		how = "mutually read"
	}
	if report.Compatible {
		_, err := fmt.Fprintf(w, "Result: Source schema CAN be %s with target schema\n", how)
		return err
	}
	if _, err := fmt.Fprintf(w, "Result:\nSource schema CANNOT be %s with target schema.\n\nReason(s):\n", how); err != nil {
		return err
	}
	return writeFindings(w, report.Findings)
}

func writeLevelReport(w io.Writer, format outputFormat, report service.LevelReport) error {
	switch format {
	case formatJSON:
		return writeJSON(w, report)
	case formatYAML:
		return writeYAML(w, report)
	}

	if report.Compatible {
		_, err := fmt.Fprintf(w, "Result: Schema is %s compatible (%d version(s) checked)\n", report.Level, report.Checked)
		return err
	}
	if _, err := fmt.Fprintf(w, "Result:\nSchema is NOT %s compatible (%d version(s) checked).\n\nReason(s):\n", report.Level, report.Checked); err != nil {
		return err
	}
	return writeFindings(w, report.Findings)
}

func writeFindings(w io.Writer, findings []compat.Report) error {
	for _, f := range findings {
		if _, err := fmt.Fprintf(w, "- Type: %s\n  Location: %s\n  Source: %s\n  Target: %s\n",
			f.Category, f.Location, orNone(f.Writer), orNone(f.Reader)); err != nil {
			return err
		}
	}
	return nil
}

func orNone(fragment *string) string {
	if fragment == nil {
		return "(none)"
	}
	return *fragment
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
