package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cyp0633/librrule/rrule"
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Describe a rule in English",
	Long: `Prints an English summary of each rule followed by the normalized
RFC 5545 text. Sets list one summary per RRULE and EXRULE.`,
	Args: cobra.NoArgs,
	RunE: runDescribe,
}

func init() {
	rootCmd.AddCommand(describeCmd)
}

type description struct {
	Text []string `json:"text"`
	Rule string   `json:"rule"`
}

func runDescribe(cmd *cobra.Command, _ []string) error {
	rec, err := loadRecurrence(cmd)
	if err != nil {
		return err
	}

	d := description{Rule: rec.String()}
	switch r := rec.(type) {
	case *rrule.Rule:
		d.Text = append(d.Text, r.Text())
	case *rrule.Set:
		for _, rule := range r.RRules() {
			d.Text = append(d.Text, rule.Text())
		}
		for _, rule := range r.ExRules() {
			d.Text = append(d.Text, "except "+rule.Text())
		}
	}

	if cfg.JSON {
		return printJSON(cmd, d)
	}
	for _, line := range d.Text {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	fmt.Fprintln(cmd.OutOrStdout(), d.Rule)
	return nil
}
