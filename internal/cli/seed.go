package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/petrijr/packflow/internal/config"
	"github.com/petrijr/packflow/internal/fixtures"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load seed fixtures into the configured store",
		Long: `Load seed fixtures into the configured store.

Without --file the built-in demo plant is loaded. Instances that already
exist are skipped, so seeding twice is harmless.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			data := fixtures.Default()
			if file != "" {
				if data, err = os.ReadFile(file); err != nil {
					return err
				}
			}
			seed, err := fixtures.Parse(data)
			if err != nil {
				return err
			}

			b, err := config.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			summary, err := fixtures.Load(cmd.Context(), b.Persistence, seed, time.Now())
			if err != nil {
				return err
			}
			return writeResult(cmd, rootOpts, summary, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "seeded %d instance(s), skipped %d existing\n", len(summary.Created), len(summary.Skipped))
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "seed YAML file (default: built-in demo plant)")

	return cmd
}
