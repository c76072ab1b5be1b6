package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/samber/mo"
	"github.com/spf13/cobra"

	"github.com/cyp0633/librrule/rrule"
)

var (
	allLimit  int
	inclusive bool
)

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "List the occurrences of a rule",
	Long: `Lists every occurrence of a bounded rule. Unbounded rules stop after
--limit occurrences, or after the configured limit when --limit is 0.`,
	Args: cobra.NoArgs,
	RunE: runAll,
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count the occurrences of a bounded rule",
	Args:  cobra.NoArgs,
	RunE:  runCount,
}

var betweenCmd = &cobra.Command{
	Use:   "between START END",
	Short: "List the occurrences between two times",
	Args:  cobra.ExactArgs(2),
	RunE:  runBetween,
}

var afterCmd = &cobra.Command{
	Use:   "after TIME",
	Short: "Print the first occurrence after a time",
	Args:  cobra.ExactArgs(1),
	RunE:  runAfter,
}

var beforeCmd = &cobra.Command{
	Use:   "before TIME",
	Short: "Print the last occurrence before a time",
	Args:  cobra.ExactArgs(1),
	RunE:  runBefore,
}

func init() {
	allCmd.Flags().IntVarP(&allLimit, "limit", "n", 0, "maximum number of occurrences (0 uses the configured limit)")
	for _, cmd := range []*cobra.Command{betweenCmd, afterCmd, beforeCmd} {
		cmd.Flags().BoolVar(&inclusive, "inc", false, "include occurrences equal to the bounds")
	}
	rootCmd.AddCommand(allCmd, countCmd, betweenCmd, afterCmd, beforeCmd)
}

func runAll(cmd *cobra.Command, _ []string) error {
	rec, err := loadRecurrence(cmd)
	if err != nil {
		return err
	}

	limit := allLimit
	if limit <= 0 && !rec.Bounded() {
		limit = cfg.Limit
		logger.Info("unbounded rule, applying limit", "limit", limit)
	}
	times, err := rec.All(limit)
	if err != nil {
		return err
	}
	return printTimes(cmd, times)
}

func runCount(cmd *cobra.Command, _ []string) error {
	rec, err := loadRecurrence(cmd)
	if err != nil {
		return err
	}
	n, err := rec.Count()
	if errors.Is(err, rrule.ErrUnboundedCount) {
		return errors.New("cannot count an unbounded rule: add COUNT or UNTIL")
	}
	if err != nil {
		return err
	}
	if cfg.JSON {
		return printJSON(cmd, map[string]int{"count": n})
	}
	fmt.Fprintln(cmd.OutOrStdout(), n)
	return nil
}

func runBetween(cmd *cobra.Command, args []string) error {
	rec, err := loadRecurrence(cmd)
	if err != nil {
		return err
	}
	start, err := parseTime(args[0])
	if err != nil {
		return fmt.Errorf("START: %w", err)
	}
	end, err := parseTime(args[1])
	if err != nil {
		return fmt.Errorf("END: %w", err)
	}
	return printTimes(cmd, rec.Between(start, end, inclusive))
}

func runAfter(cmd *cobra.Command, args []string) error {
	return runNeighbor(cmd, args[0], func(rec rrule.Recurrence, t time.Time) mo.Option[time.Time] {
		return rec.After(t, inclusive)
	})
}

func runBefore(cmd *cobra.Command, args []string) error {
	return runNeighbor(cmd, args[0], func(rec rrule.Recurrence, t time.Time) mo.Option[time.Time] {
		return rec.Before(t, inclusive)
	})
}

// runNeighbor prints the single occurrence chosen by find, or nothing
// (null with --json) when there is none.
func runNeighbor(cmd *cobra.Command, arg string, find func(rrule.Recurrence, time.Time) mo.Option[time.Time]) error {
	rec, err := loadRecurrence(cmd)
	if err != nil {
		return err
	}
	t, err := parseTime(arg)
	if err != nil {
		return fmt.Errorf("TIME: %w", err)
	}

	found, ok := find(rec, t).Get()
	if !ok {
		logger.Debug("no occurrence found", "time", t)
		if cfg.JSON {
			return printJSON(cmd, nil)
		}
		return nil
	}
	if cfg.JSON {
		return printJSON(cmd, found.Format(time.RFC3339))
	}
	fmt.Fprintln(cmd.OutOrStdout(), found.Format(time.RFC3339))
	return nil
}
