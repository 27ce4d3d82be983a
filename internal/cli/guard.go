package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/petrijr/packflow/internal/dispatch"
	"github.com/petrijr/packflow/pkg/api"
)

// NewGuardCommand creates the guard command.
func NewGuardCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		role  string
		focus string
	)

	cmd := &cobra.Command{
		Use:   "guard <stage>",
		Short: "Show which actions of a stage a role may perform",
		Long: `Evaluate the guard of one stage (S1 to S5) for a role against the
current store and list every action of the stage with the reason it is
blocked, if any. --focus selects the receipt evaluated by S3.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, ok := dispatch.ParseStage(args[0])
			if !ok {
				return fmt.Errorf("unknown stage %q: must be one of S1, S2, S3, S4, S5", args[0])
			}
			r := api.Role(strings.ToUpper(strings.TrimSpace(role)))
			if !r.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			b, eng, err := openEngine(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			report, err := dispatch.EvaluateStage(cmd.Context(), eng, stage, r, focus)
			if err != nil {
				return err
			}
			return writeResult(cmd, rootOpts, report, func(w io.Writer) error {
				return writeStageReport(w, report)
			})
		},
	}

	cmd.Flags().StringVarP(&role, "role", "r", string(api.RoleSystemAdmin), "acting role")
	cmd.Flags().StringVar(&focus, "focus", "", "receipt id in focus (S3 only)")

	return cmd
}

func writeStageReport(w io.Writer, report dispatch.StageReport) error {
	fmt.Fprintf(w, "%s as %s\n", report.Stage, report.Role)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, a := range report.Actions {
		if a.State.Enabled {
			fmt.Fprintf(tw, "  %s\tallowed\t\n", a.Action)
			continue
		}
		fmt.Fprintf(tw, "  %s\tblocked\t%s\n", a.Action, a.State.Reason)
	}
	return tw.Flush()
}
