package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"hubkeep/src/backup"
	"hubkeep/src/lockfile"
)

func newBackupCmd(stdout, stderr io.Writer) *cobra.Command {
	var doVerify, doCleanup bool
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a backup archive (or verify / clean up the catalog)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if doVerify && doCleanup {
				return fmt.Errorf("--verify and --cleanup are mutually exclusive")
			}
			meta, _, err := loadHub(cmd)
			if err != nil {
				return err
			}
			lock, err := lockfile.Acquire(meta.BackupRoot())
			if err != nil {
				return err
			}
			defer lock.Release()

			switch {
			case doVerify:
				return runVerify(stdout, meta.BackupRoot())
			case doCleanup:
				if getSafetyOptions(cmd).DryRun {
					fmt.Fprintf(stdout, "Would prune %s to %d archives and sweep stale state\n", meta.BackupRoot(), meta.RetentionCount())
					return nil
				}
				ret := backup.NewRetention(meta)
				return ret.Maintain(time.Now())
			default:
				if getSafetyOptions(cmd).DryRun {
					fmt.Fprintf(stdout, "Would back up %s into %s\n", meta.DataRoot(), meta.BackupRoot())
					return nil
				}
				path, err := backup.NewBuilder(meta).Run()
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Created %s\n", path)
				return nil
			}
		},
	}
	cmd.Flags().BoolVar(&doVerify, "verify", false, "Verify archive integrity; quarantine corrupt archives")
	cmd.Flags().BoolVar(&doCleanup, "cleanup", false, "Prune old archives, trim the backup log, sweep stale staging dirs")
	return cmd
}

func runVerify(stdout io.Writer, backupRoot string) error {
	report, err := backup.NewVerifier(backupRoot).Run()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ARCHIVE\tSTATUS\tDETAIL")
	for _, r := range report.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.Status, r.Detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "verified %d archives: %d failed, %d quarantined\n",
		report.Total, report.Failed, report.Quarantined)
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d archives failed verification", report.Failed, report.Total)
	}
	return nil
}
