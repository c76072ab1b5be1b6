package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/emersion/go-ical"
	"github.com/spf13/cobra"

	"github.com/cyp0633/librrule/recurrence"
)

var (
	icsFrom   string
	icsTo     string
	icsUID    string
	icsExport string
)

var icsCmd = &cobra.Command{
	Use:   "ics FILE",
	Short: "Expand the recurring events of an iCalendar file",
	Long: `Expands every VEVENT and VTODO series in FILE between --from and --to,
applying RDATE, EXDATE, EXRULE and RECURRENCE-ID overrides. --from defaults
to now and --to to one year after --from.

With --export PATH the occurrences of one series (pick it with --uid when
the file holds several) are written as a new calendar, one VEVENT each;
use - for stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runICS,
}

func init() {
	icsCmd.Flags().StringVar(&icsFrom, "from", "", "start of the range")
	icsCmd.Flags().StringVar(&icsTo, "to", "", "end of the range")
	icsCmd.Flags().StringVar(&icsUID, "uid", "", "only expand the series with this UID")
	icsCmd.Flags().StringVar(&icsExport, "export", "", "write the occurrences as .ics to PATH")
	rootCmd.AddCommand(icsCmd)
}

type icsOccurrence struct {
	UID         string    `json:"uid"`
	Summary     string    `json:"summary,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	IsException bool      `json:"exception,omitempty"`
}

func runICS(cmd *cobra.Command, args []string) error {
	from, to, err := icsRange()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	cal, err := ical.NewDecoder(f).Decode()
	if err != nil {
		return fmt.Errorf("decoding %s: %w", args[0], err)
	}

	engineConfig, err := cfg.EngineConfig()
	if err != nil {
		return err
	}
	engine := recurrence.NewEngine(recurrence.WithConfig(engineConfig), recurrence.WithLogger(logger))
	defer engine.Close()

	opts := recurrence.DefaultExpansionOptions
	opts.MaxTimeSpan = 0

	var (
		rows      []icsOccurrence
		exported  []recurrence.Series
		occsByUID = map[string][]recurrence.TimeOccurrence{}
	)
	for _, series := range recurrence.SeriesFromCalendar(cal) {
		if icsUID != "" && series.UID != icsUID {
			continue
		}
		if series.Master == nil {
			logger.Warn("skipping overrides without a master component", "uid", series.UID)
			continue
		}
		occs, err := engine.ExpandComponents(series.Master, series.Overrides, from, to, opts)
		if err != nil {
			return fmt.Errorf("expanding %s: %w", series.UID, err)
		}
		logger.Debug("expanded series", "uid", series.UID, "occurrences", len(occs))

		summary, _ := series.Master.Props.Text(ical.PropSummary)
		for _, occ := range occs {
			rows = append(rows, icsOccurrence{
				UID:         series.UID,
				Summary:     summary,
				Start:       occ.Start,
				End:         occ.End,
				IsException: occ.IsException,
			})
		}
		exported = append(exported, series)
		occsByUID[series.UID] = occs
	}

	if icsExport != "" {
		if len(exported) != 1 {
			return fmt.Errorf("--export needs exactly one series, found %d: use --uid", len(exported))
		}
		return exportSeries(cmd, exported[0].Master, occsByUID[exported[0].UID])
	}

	if cfg.JSON {
		if rows == nil {
			rows = []icsOccurrence{}
		}
		return printJSON(cmd, rows)
	}
	for _, row := range rows {
		line := fmt.Sprintf("%s\t%s\t%s", row.Start.Format(time.RFC3339), row.End.Format(time.RFC3339), row.Summary)
		if row.IsException {
			line += "\t(moved)"
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}

func icsRange() (time.Time, time.Time, error) {
	from := time.Now().In(loc).Truncate(time.Second)
	if icsFrom != "" {
		t, err := parseTime(icsFrom)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--from: %w", err)
		}
		from = t
	}
	to := from.AddDate(1, 0, 0)
	if icsTo != "" {
		t, err := parseTime(icsTo)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--to: %w", err)
		}
		to = t
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("--to is before --from")
	}
	return from, to, nil
}

func exportSeries(cmd *cobra.Command, master *ical.Component, occs []recurrence.TimeOccurrence) error {
	var w io.Writer = cmd.OutOrStdout()
	if icsExport != "-" {
		f, err := os.Create(icsExport)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := recurrence.ExportOccurrences(w, master, occs); err != nil {
		return err
	}
	logger.Info("exported occurrences", "count", len(occs), "path", icsExport)
	return nil
}
