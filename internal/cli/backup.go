package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// BackupOptions holds flags for the backup command.
type BackupOptions struct {
	*RootOptions
	Show bool
}

// NewBackupCommand creates the backup command.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BackupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Save a store snapshot now",
		Long: `Export the store and save it as today's snapshot in the configured backup
target (AZURE_STORAGE_ACCOUNT or BACKUP_DIR). Older snapshots beyond
BACKUP_RETENTION are pruned.

With --show, print the totals of the latest snapshot instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackup(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.Show, "show", false, "show the latest snapshot instead of saving one")
	return cmd
}

func runBackup(ctx context.Context, opts *BackupOptions, w io.Writer) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.backup == nil {
		return errors.New("no backup target configured: set AZURE_STORAGE_ACCOUNT or BACKUP_DIR")
	}

	if opts.Show {
		snap, err := a.backup.Latest(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Latest snapshot: %d posts, %d comments, %d mentions, %d side effects\n",
			len(snap.Posts), len(snap.Comments), len(snap.Mentions), len(snap.SideEffects))
		return nil
	}

	snap, err := a.store.Export(ctx)
	if err != nil {
		return err
	}
	name, err := a.backup.Save(ctx, snap)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Saved %s (%d posts, %d comments)\n", name, len(snap.Posts), len(snap.Comments))
	return nil
}
