package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/petrijr/packflow/internal/fixtures"
)

// FixtureReport is the result of validate-fixtures.
type FixtureReport struct {
	File      string `json:"file"`
	Valid     bool   `json:"valid"`
	Instances int    `json:"instances"`
}

// NewValidateFixturesCommand creates the validate-fixtures command.
func NewValidateFixturesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-fixtures [file]",
		Short: "Validate a seed fixture file without loading it",
		Long: `Check a seed YAML file against the fixture schema and for cross-reference
errors (unknown SKUs, unreleased or doubly allocated cells, duplicate ids).
Without a file the built-in demo plant is checked.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			report := FixtureReport{File: "(built-in)"}
			data := fixtures.Default()
			if len(args) == 1 {
				report.File = args[0]
				var err error
				if data, err = os.ReadFile(args[0]); err != nil {
					return err
				}
			}

			seed, err := fixtures.Parse(data)
			if err != nil {
				return err
			}
			instances, err := seed.Instances(time.Now())
			if err != nil {
				return err
			}
			report.Valid = true
			report.Instances = len(instances)

			return writeResult(cmd, rootOpts, report, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "✓ %s is valid (%d instances)\n", report.File, report.Instances)
				return err
			})
		},
	}

	return cmd
}
