package cli

import (
	"context"
	"os"
	"strings"
	"time"

	"avrocompat/internal/natsrpc"
	"avrocompat/internal/service"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errIncompatible = errbuilder.New().
	WithCode(errbuilder.CodeFailedPrecondition).
	WithMsg("schemas are incompatible")

type checkOptions struct {
	Source       string
	Target       string
	Mutual       bool
	ShortCircuit bool
	Output       string
	NATSURL      string
	NATSSubject  string
	Timeout      time.Duration
}

func newCheckCommand() *cobra.Command {
	opts := checkOptions{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether data written with the source schema can be read with the target schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.Source, "source", "s", "", "Source (writer) schema file")
	cmd.Flags().StringVarP(&opts.Target, "target", "t", "", "Target (reader) schema file")
	cmd.Flags().BoolVarP(&opts.Mutual, "mutual", "m", false, "Check for mutual compatibility instead of source readable by target")
	cmd.Flags().BoolVar(&opts.ShortCircuit, "short-circuit", false, "Stop at the first incompatibility")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format: text, json or yaml")
	cmd.Flags().StringVar(&opts.NATSURL, "nats-url", "", "Send the check to a remote service over NATS")
	cmd.Flags().StringVar(&opts.NATSSubject, "nats-subject", natsrpc.DefaultPrefix, "NATS subject prefix")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "Time limit for the check")
	return cmd
}

func runCheck(ctx context.Context, cmd *cobra.Command, opts checkOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(opts.Source) == "" || strings.TrimSpace(opts.Target) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid command line arguments: --source and --target are required")
	}
	format, err := parseFormat(resolveString(cmd, opts.Output, "output", "output"))
	if err != nil {
		return err
	}

	source, err := readSchemaFile(opts.Source)
	if err != nil {
		return err
	}
	target, err := readSchemaFile(opts.Target)
	if err != nil {
		return err
	}

	req := service.CheckRequest{
		Writer:       source,
		Reader:       target,
		Mutual:       opts.Mutual,
		ShortCircuit: opts.ShortCircuit,
	}
	timeout := resolveDuration(cmd, opts.Timeout, "timeout", "timeout")

	var report service.CheckReport
	if url := resolveString(cmd, opts.NATSURL, "nats_url", "nats-url"); url != "" {
		report, err = checkRemote(ctx, url, resolveString(cmd, opts.NATSSubject, "nats_subject", "nats-subject"), timeout, req)
	} else {
		var resp service.CheckResponse
		resp, err = service.NewService(1, timeout).Check(ctx, req)
		report = resp.Report()
	}
	if err != nil {
		return err
	}

	log.Debug().
		Str("source", opts.Source).
		Str("target", opts.Target).
		Bool("compatible", report.Compatible).
		Msg("check finished")

	if err := writeCheckReport(cmd.OutOrStdout(), format, report); err != nil {
		return err
	}
	if !report.Compatible {
		return errIncompatible
	}
	return nil
}

func checkRemote(ctx context.Context, url, subject string, timeout time.Duration, req service.CheckRequest) (service.CheckReport, error) {
	nc, err := nats.Connect(url, nats.Name("avrocompat cli"), nats.Timeout(5*time.Second))
	if err != nil {
		return service.CheckReport{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("connect to NATS at " + url).
			WithCause(err)
	}
	defer nc.Close()

	return natsrpc.NewClient(nc, subject, timeout).Check(ctx, req)
}

func readSchemaFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("cannot read input file " + path).
			WithCause(err)
	}
	return string(data), nil
}

// resolveString prefers an explicitly set flag, then config or environment, then
// the flag default
func resolveString(cmd *cobra.Command, value string, key string, flagName string) string {
	if flagChanged(cmd, flagName) {
		return value
	}
	if v := viper.GetString(key); v != "" {
		return v
	}
	return value
}

func resolveDuration(cmd *cobra.Command, value time.Duration, key string, flagName string) time.Duration {
	if flagChanged(cmd, flagName) {
		return value
	}
	if v := viper.GetDuration(key); v > 0 {
		return v
	}
	return value
}

func resolveInt(cmd *cobra.Command, value int, key string, flagName string) int {
	if flagChanged(cmd, flagName) {
		return value
	}
	if v := viper.GetInt(key); v > 0 {
		return v
	}
	return value
}

func resolveBool(cmd *cobra.Command, value bool, key string, flagName string) bool {
	if flagChanged(cmd, flagName) {
		return value
	}
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	return value
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil || strings.TrimSpace(name) == "" {
		return false
	}
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag.Changed
	}
	if flag := cmd.PersistentFlags().Lookup(name); flag != nil {
		return flag.Changed
	}
	return false
}
