package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"restaurant-ops-api/internal/app"
	"restaurant-ops-api/internal/model"
)

// NewBackupCommand creates the backup command group.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage store backups",
	}

	cmd.AddCommand(
		newBackupListCommand(rootOpts),
		newBackupCreateCommand(rootOpts),
		newBackupExportCommand(rootOpts),
		newBackupImportCommand(rootOpts),
		newBackupRestoreCommand(rootOpts),
		newBackupDeleteCommand(rootOpts),
	)
	return cmd
}

func newBackupListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List retained backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				backups := a.Backups.ListBackups()

				var b strings.Builder
				if len(backups) == 0 {
					b.WriteString("no backups")
				}
				for i, meta := range backups {
					if i > 0 {
						b.WriteByte('\n')
					}
					b.WriteString(describe(meta))
				}
				return rootOpts.formatter(cmd).Success(backups, b.String())
			})
		},
	}
}

func newBackupCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a manual backup of every table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				f := rootOpts.formatter(cmd)
				meta, err := a.Backups.CreateBackup(ctx, model.BackupManual)
				if err != nil {
					return f.Error(err)
				}
				return f.Success(meta, "created "+describe(meta))
			})
		},
	}
}

func newBackupExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a backup blob to a file or stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				f := rootOpts.formatter(cmd)
				blob, err := a.Backups.ExportBackup(ctx, args[0])
				if err != nil {
					return f.Error(err)
				}

				if output == "" || output == "-" {
					_, err := cmd.OutOrStdout().Write(blob)
					return err
				}
				if err := os.WriteFile(output, blob, 0o600); err != nil {
					return f.Error(fmt.Errorf("failed to write %s: %w", output, err))
				}
				return f.Success(map[string]interface{}{
					"id":   args[0],
					"file": output,
					"size": len(blob),
				}, fmt.Sprintf("exported %s to %s (%d bytes)", args[0], output, len(blob)))
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newBackupImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Register an exported blob as a new manual backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := os.ReadFile(args[0])
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "failed to read backup file", Err: err}
			}

			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				f := rootOpts.formatter(cmd)
				meta, err := a.Backups.ImportBackup(ctx, blob)
				if err != nil {
					return f.Error(err)
				}
				return f.Success(meta, "imported "+describe(meta))
			})
		},
	}
}

func newBackupRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Verify a backup and overwrite the store tables with it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				f := rootOpts.formatter(cmd)
				if err := a.Backups.RestoreBackup(ctx, args[0]); err != nil {
					return f.Error(err)
				}
				return f.Success(map[string]string{"status": "restored", "backup_id": args[0]}, "restored "+args[0])
			})
		},
	}
}

func newBackupDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a backup blob and its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				f := rootOpts.formatter(cmd)
				if err := a.Backups.DeleteBackup(ctx, args[0]); err != nil {
					return f.Error(err)
				}
				return f.Success(map[string]string{"status": "deleted", "backup_id": args[0]}, "deleted "+args[0])
			})
		},
	}
}

func describe(meta model.BackupMetadata) string {
	return fmt.Sprintf("%s  %s  %-9s  %d bytes  %d tables",
		meta.ID, meta.Timestamp.Local().Format(time.DateTime), meta.Kind, meta.Size, len(meta.Tables))
}
