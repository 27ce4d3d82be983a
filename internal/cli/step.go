package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/petrijr/packflow/internal/httpapi"
	"github.com/petrijr/packflow/internal/wizard"
)

// NewStepCommand creates the step command.
func NewStepCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "step <instance-id>",
		Short:        "Show the wizard step of an instance",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			b, eng, err := openEngine(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			inst, err := eng.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			view := httpapi.WizardView{
				InstanceID: inst.Meta().InstanceID,
				FlowID:     inst.Flow(),
				State:      inst.StateName(),
				Step:       wizard.Resolve(inst),
			}
			return writeResult(cmd, rootOpts, view, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s (%s) %s: %s\n", view.InstanceID, view.FlowID.Name(), view.State, view.Step)
				return err
			})
		},
	}

	return cmd
}
