// Package cli implements the rrule command tree.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyp0633/librrule/internal/config"
	"github.com/cyp0633/librrule/rrule"
)

var version = "dev"

var (
	ruleText    string
	dtstartText string
	tzName      string
	configPath  string
	verbose     bool
	jsonOutput  bool
)

// Resolved by the root pre-run hook.
var (
	cfg    = config.Default()
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	loc    = time.UTC
)

var rootCmd = &cobra.Command{
	Use:   "rrule",
	Short: "Expand and inspect RFC 5545 recurrence rules",
	Long: `rrule parses RFC 5545 recurrence text (DTSTART, RRULE, EXRULE, RDATE
and EXDATE lines) and answers questions about its occurrences.

The rule is given with --rule; use --rule - to read it from stdin.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ruleText, "rule", "r", "", "recurrence text, or - for stdin")
	flags.StringVar(&dtstartText, "dtstart", "", "start used when the text has no DTSTART line")
	flags.StringVar(&tzName, "tz", "", "zone for floating times (default from config, else UTC)")
	flags.StringVar(&configPath, "config", "", "path to config.toml (default $"+config.EnvPath+" or the user config dir)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
	flags.BoolVar(&jsonOutput, "json", false, "print results as JSON")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded
	if jsonOutput {
		cfg.JSON = true
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	if tzName != "" {
		cfg.Timezone = tzName
	}
	loc, err = cfg.Location()
	if err != nil {
		return err
	}
	logger.Debug("configured", "timezone", loc.String(), "limit", cfg.Limit, "preset", cfg.Engine.Preset)
	return nil
}

// loadRecurrence parses --rule with the configured zone and start.
func loadRecurrence(cmd *cobra.Command) (rrule.Recurrence, error) {
	text := ruleText
	if text == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading rule from stdin: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("no rule given: use --rule")
	}

	opts := []rrule.ParseOption{rrule.WithLocation(loc), rrule.WithUnfold()}
	if dtstartText != "" {
		start, err := parseTime(dtstartText)
		if err != nil {
			return nil, fmt.Errorf("--dtstart: %w", err)
		}
		opts = append(opts, rrule.WithDtstart(start))
	}

	rec, err := rrule.Parse(text, opts...)
	if err != nil {
		return nil, err
	}
	logger.Debug("parsed recurrence", "text", rec.String(), "bounded", rec.Bounded())
	return rec, nil
}

// parseTime accepts RFC 3339 as well as RFC 5545 DATE and DATE-TIME forms.
// Values without an offset are read in the configured zone.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	return rrule.ParseDateTime(s, loc)
}

func printTimes(cmd *cobra.Command, times []time.Time) error {
	if cfg.JSON {
		out := make([]string, len(times))
		for i, t := range times {
			out[i] = t.Format(time.RFC3339)
		}
		return printJSON(cmd, out)
	}
	for _, t := range times {
		fmt.Fprintln(cmd.OutOrStdout(), t.Format(time.RFC3339))
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
