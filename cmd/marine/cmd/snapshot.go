package cmd

import (
	"fmt"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ssargent/marinedb/pkg/marine"
	"github.com/ssargent/marinedb/pkg/snapshot"
)

func newSnapshotCmd(a *app) *cobra.Command {
	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or restore the whole pool",
	}

	var to string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write a snapshot of every region",
		Long: `Write a snapshot of the pool to a directory or S3 prefix.

Examples:
  marine snapshot export --to ./backups
  marine snapshot export --to s3://reef-backups/marinedb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			location := to
			if location == "" {
				location = a.defaultSnapshotLocation()
			}
			sink, err := a.container.GetSinkOpener()(cmd.Context(), location, a.s3Options())
			if err != nil {
				return err
			}
			return a.withRegistry(func(reg *marine.Registry) error {
				meta, err := snapshot.Export(cmd.Context(), reg.Manager, sink)
				if err != nil {
					return err
				}
				cmd.Printf("Exported %d entries to %s\n", meta.Entries, strings.TrimSuffix(location, "/")+"/"+meta.Name)
				return nil
			})
		},
	}
	exportCmd.Flags().StringVar(&to, "to", "", "Destination directory, file:// or s3://bucket/prefix (default snapshot.location)")

	var from string
	restoreCmd := &cobra.Command{
		Use:   "restore",
		Short: "Load a snapshot into an empty pool",
		Long: `Load a snapshot into the configured pool, which must be empty. --from
names either a location, in which case the newest snapshot there is used, or a
single .snap file or object.

Examples:
  marine snapshot restore --from ./backups
  marine snapshot restore --from s3://reef-backups/marinedb/2Hk....snap --driver pebble`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			location, name := splitSnapshotRef(from)
			if location == "" {
				location = a.defaultSnapshotLocation()
			}
			sink, err := a.container.GetSinkOpener()(cmd.Context(), location, a.s3Options())
			if err != nil {
				return err
			}

			p, err := a.openPool()
			if err != nil {
				return err
			}
			meta, err := snapshot.Restore(cmd.Context(), sink, name, p)
			if cerr := p.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}
			cmd.Printf("Restored %d entries from %s\n", meta.Entries, meta.Name)
			return nil
		},
	}
	restoreCmd.Flags().StringVar(&from, "from", "", "Snapshot location or .snap file (default snapshot.location)")

	snapshotCmd.AddCommand(exportCmd, restoreCmd)
	return snapshotCmd
}

// splitSnapshotRef separates a trailing .snap name from its location.
func splitSnapshotRef(ref string) (location, name string) {
	if !strings.HasSuffix(ref, snapshot.Extension) {
		return ref, ""
	}
	dir, file := path.Split(ref)
	return strings.TrimSuffix(dir, "/"), file
}

// defaultSnapshotLocation falls back to snapshot.location, then to the
// configured bucket.
func (a *app) defaultSnapshotLocation() string {
	if a.cfg.Snapshot.Location != "" {
		return a.cfg.Snapshot.Location
	}
	if a.cfg.Snapshot.S3.Bucket != "" {
		return "s3://" + a.cfg.Snapshot.S3.Bucket
	}
	return ""
}

func (a *app) s3Options() snapshot.S3Options {
	s3 := a.cfg.Snapshot.S3
	return snapshot.S3Options{
		Region:    s3.Region,
		Endpoint:  s3.Endpoint,
		PathStyle: s3.PathStyle,
	}
}
