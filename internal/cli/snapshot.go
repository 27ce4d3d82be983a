package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/petrijr/packflow/internal/config"
	"github.com/petrijr/packflow/internal/snapshot"
)

type snapshotOptions struct {
	dir       string
	bucket    string
	prefix    string
	region    string
	endpoint  string
	pathStyle bool
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	so := &snapshotOptions{}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export every instance and its history",
		Long: `Export every instance of the configured store, with its history, as one
JSON document. The document goes to S3 when a bucket is configured
(snapshot.bucket or --bucket) and to a local directory otherwise.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			so.merge(cmd, cfg.Snapshot)

			var sink snapshot.Sink
			if so.bucket != "" {
				sink, err = snapshot.NewS3Sink(cmd.Context(), snapshot.S3Config{
					Bucket:    so.bucket,
					Prefix:    so.prefix,
					Region:    so.region,
					Endpoint:  so.endpoint,
					PathStyle: so.pathStyle,
				})
				if err != nil {
					return err
				}
			} else {
				sink = snapshot.FileSink{Dir: so.dir}
			}

			b, err := config.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			loc, snap, err := snapshot.Export(cmd.Context(), b.Persistence, sink, time.Now())
			if err != nil {
				return err
			}
			result := map[string]any{
				"location":     loc,
				"instances":    len(snap.Instances),
				"storeVersion": snap.StoreVersion.Version,
			}
			return writeResult(cmd, rootOpts, result, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "wrote %d instance(s) at store version %d to %s\n",
					len(snap.Instances), snap.StoreVersion.Version, loc)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&so.dir, "dir", "", "target directory (overrides snapshot.dir)")
	cmd.Flags().StringVar(&so.bucket, "bucket", "", "target S3 bucket (overrides snapshot.bucket)")
	cmd.Flags().StringVar(&so.prefix, "prefix", "", "S3 key prefix (overrides snapshot.prefix)")
	cmd.Flags().StringVar(&so.region, "region", "", "S3 region (overrides snapshot.region)")
	cmd.Flags().StringVar(&so.endpoint, "endpoint", "", "S3-compatible endpoint URL")
	cmd.Flags().BoolVar(&so.pathStyle, "path-style", false, "use path-style S3 addressing")

	return cmd
}

// merge fills options the user did not set from the config file.
func (so *snapshotOptions) merge(cmd *cobra.Command, sc config.SnapshotConfig) {
	if !cmd.Flags().Changed("dir") {
		so.dir = sc.Dir
	}
	if !cmd.Flags().Changed("bucket") {
		so.bucket = sc.Bucket
	}
	if !cmd.Flags().Changed("prefix") {
		so.prefix = sc.Prefix
	}
	if !cmd.Flags().Changed("region") {
		so.region = sc.Region
	}
}
