package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cyp0633/librrule/rrule"
	"github.com/cyp0633/librrule/xcal"
)

var xcalDecode string

var xcalCmd = &cobra.Command{
	Use:   "xcal",
	Short: "Convert between rule text and xCal XML",
	Long: `Without --decode, writes the rule given with --rule as an RFC 6321
xCal document. With --decode FILE, reads an xCal document and prints its
rule as RFC 5545 text.`,
	Args: cobra.NoArgs,
	RunE: runXCal,
}

func init() {
	xcalCmd.Flags().StringVar(&xcalDecode, "decode", "", "xCal file to convert to rule text")
	rootCmd.AddCommand(xcalCmd)
}

func runXCal(cmd *cobra.Command, _ []string) error {
	if xcalDecode != "" {
		data, err := os.ReadFile(xcalDecode)
		if err != nil {
			return err
		}
		r, err := xcal.Unmarshal(data)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), r.String())
		return nil
	}

	rec, err := loadRecurrence(cmd)
	if err != nil {
		return err
	}
	r, ok := rec.(*rrule.Rule)
	if !ok {
		return errors.New("xCal output needs a single RRULE")
	}
	data, err := xcal.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding xCal: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}
