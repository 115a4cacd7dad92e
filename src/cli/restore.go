package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hubkeep/src/containerapi"
	"hubkeep/src/lockfile"
	"hubkeep/src/restore"
	"hubkeep/src/safety"
)

func newRestoreCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <archive-path>",
		Short: "Restore the hub from a backup archive",
		Long: "Restore validates the archive, snapshots the current data root, stops\n" +
			"all containers, replaces the data root, and restarts services with\n" +
			"critical ones first. The previous data root is kept with a .old suffix.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archivePath := args[0]
			meta, reg, err := loadHub(cmd)
			if err != nil {
				return err
			}
			opts := getSafetyOptions(cmd)
			if opts.DryRun {
				fmt.Fprintf(stdout, "Would restore %s over %s\n", archivePath, meta.DataRoot())
				return nil
			}
			question := fmt.Sprintf("Restore %s over %s? All containers will be stopped", archivePath, meta.DataRoot())
			ok, err := safety.Confirm(opts, os.Stdin, stdout, question)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("restore cancelled")
			}

			lock, err := lockfile.Acquire(meta.BackupRoot())
			if err != nil {
				return err
			}
			defer lock.Release()

			rt, err := containerapi.ConnectLocal()
			if err != nil {
				return err
			}
			orch := restore.New(rt, reg, meta)
			orch.ProgressOut = stderr
			report, runErr := orch.Run(archivePath)
			renderRestoreReport(stdout, report)
			return runErr
		},
	}
	return cmd
}

func renderRestoreReport(w io.Writer, report *restore.Report) {
	fmt.Fprintf(w, "restore finished in state %s\n", report.State)
	if report.SafetySnapshot != "" {
		fmt.Fprintf(w, "safety snapshot of previous data root: %s\n", report.SafetySnapshot)
	}
	if report.OldDataRoot != "" {
		fmt.Fprintf(w, "previous data root kept at: %s\n", report.OldDataRoot)
	}
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	if len(report.StopFailures) > 0 {
		fmt.Fprintf(w, "containers that failed to stop: %v\n", report.StopFailures)
	}
	if len(report.StartFailures) > 0 {
		fmt.Fprintf(w, "containers that failed to start: %v\n", report.StartFailures)
	}
	if len(report.Health) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SERVICE\tADDR\tSTATUS")
		for _, h := range report.Health {
			status := "reachable"
			if !h.Reachable {
				status = "still starting"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", h.Service, h.Addr, status)
		}
		tw.Flush()
	}
}
