package cli

import (
	"context"
	"strings"
	"time"

	"avrocompat/internal/service"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
)

type levelOptions struct {
	Schema       string
	Previous     []string
	Level        string
	ShortCircuit bool
	Output       string
	Timeout      time.Duration
}

func newLevelCommand() *cobra.Command {
	opts := levelOptions{}
	cmd := &cobra.Command{
		Use:   "level",
		Short: "Check a schema against earlier versions under a compatibility level",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLevel(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.Schema, "schema", "s", "", "Candidate schema file")
	cmd.Flags().StringSliceVarP(&opts.Previous, "previous", "p", nil, "Earlier schema files, oldest first")
	cmd.Flags().StringVarP(&opts.Level, "level", "l", "BACKWARD", "Compatibility level")
	cmd.Flags().BoolVar(&opts.ShortCircuit, "short-circuit", false, "Stop at the first incompatibility")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format: text, json or yaml")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "Time limit for the check")
	return cmd
}

func runLevel(ctx context.Context, cmd *cobra.Command, opts levelOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(opts.Schema) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid command line arguments: --schema is required")
	}
	format, err := parseFormat(resolveString(cmd, opts.Output, "output", "output"))
	if err != nil {
		return err
	}

	candidate, err := readSchemaFile(opts.Schema)
	if err != nil {
		return err
	}
	previous := make([]string, len(opts.Previous))
	for i, path := range opts.Previous {
		if previous[i], err = readSchemaFile(path); err != nil {
			return err
		}
	}

	svc := service.NewService(1, resolveDuration(cmd, opts.Timeout, "timeout", "timeout"))
	resp, err := svc.CheckLevel(ctx, service.LevelRequest{
		Schema:       candidate,
		Previous:     previous,
		Level:        opts.Level,
		ShortCircuit: opts.ShortCircuit,
	})
	if err != nil {
		return err
	}

	report := resp.Report()
	if err := writeLevelReport(cmd.OutOrStdout(), format, report); err != nil {
		return err
	}
	if !report.Compatible {
		return errIncompatible
	}
	return nil
}
