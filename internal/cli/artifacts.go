package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/microkit-tools/sdfgen/internal/artifact"
)

// ArtifactsResult is the success payload of the artifacts command.
type ArtifactsResult struct {
	Count     int               `json:"count"`
	Artifacts []artifact.Record `json:"artifacts"`
}

// NewArtifactsCommand creates the artifacts command.
func NewArtifactsCommand(rootOpts *RootOptions) *cobra.Command {
	var sessionID, subsystem string

	cmd := &cobra.Command{
		Use:   "artifacts <output-dir>",
		Short: "List artifacts recorded by previous builds",
		Long: `Artifacts lists the files recorded in the artifact index of an
output directory, optionally filtered by session or subsystem.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArtifacts(rootOpts, args[0], sessionID, subsystem, cmd)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "filter by session id")
	cmd.Flags().StringVar(&subsystem, "subsystem", "", "filter by subsystem")

	return cmd
}

func runArtifacts(opts *RootOptions, dir, sessionID, subsystem string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	indexPath := filepath.Join(dir, "artifacts.db")
	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no artifact index at %s", indexPath), nil)
		return NewExitError(ExitCommandError, "artifact index not found")
	}

	ix, err := artifact.Open(indexPath)
	if err != nil {
		_ = formatter.Error(ErrCodeIndexFailed, fmt.Sprintf("opening artifact index: %v", err), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	defer ix.Close()

	records, err := ix.ListArtifacts(context.Background(), artifact.Filter{
		SessionID: sessionID,
		Subsystem: subsystem,
	})
	if err != nil {
		_ = formatter.Error(ErrCodeIndexFailed, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	result := ArtifactsResult{Count: len(records), Artifacts: records}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	if len(records) == 0 {
		fmt.Fprintln(formatter.Writer, "No artifacts recorded")
		return nil
	}
	for _, r := range records {
		fmt.Fprintf(formatter.Writer, "%-10s %-40s %8d  %s\n", r.Subsystem, r.Name, r.Size, r.SHA256[:12])
	}
	fmt.Fprintf(formatter.Writer, "%d artifact(s)\n", len(records))
	return nil
}
