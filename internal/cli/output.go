package cli

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/petrijr/packflow/pkg/api"
)

// writeResult prints data in the selected format. JSON output uses the same
// envelope as the HTTP API; text output is produced by text.
func writeResult(cmd *cobra.Command, opts *RootOptions, data any, text func(w io.Writer) error) error {
	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(api.Respond(data))
	}
	return text(w)
}
