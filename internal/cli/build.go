package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/microkit-tools/sdfgen/internal/artifact"
	"github.com/microkit-tools/sdfgen/internal/sdf"
)

// BuildResult is the success payload of the build command.
type BuildResult struct {
	System     string `json:"system"`      // path of the rendered .system file
	SessionID  string `json:"session_id"`  // artifact index session
	PDs        int    `json:"pds"`         // top-level protection domains
	MRs        int    `json:"mrs"`         // memory regions
	Channels   int    `json:"channels"`    // channels
	Subsystems int    `json:"subsystems"`  // connected subsystems
	OutputDir  string `json:"output_dir"`  // blob output directory
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "build <config.cue>",
		Short: "Build a system description from a config",
		Long: `Build loads a CUE system config, assembles the resource graph,
connects every declared subsystem, serialises the configuration blobs
and writes the Microkit .system file. Every emitted file is recorded
in the artifact index under the output directory.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(rootOpts, args[0], outputDir, cmd)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "out", "output directory")

	return cmd
}

func runBuild(opts *RootOptions, configPath, outputDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return outputBuildError(formatter, err)
	}
	formatter.VerboseLog("Loaded config %q: %d pds, %d subsystems", cfg.Name, len(cfg.PDs), len(cfg.Subsystems))

	asm, err := Assemble(cfg)
	if err != nil {
		return outputBuildError(formatter, err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("creating output directory: %v", err), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	ix, err := artifact.Open(filepath.Join(outputDir, "artifacts.db"))
	if err != nil {
		_ = formatter.Error(ErrCodeIndexFailed, fmt.Sprintf("opening artifact index: %v", err), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	defer ix.Close()

	ctx := context.Background()
	sess, err := ix.BeginSession(ctx, cfg.Name, cfg.Arch)
	if err != nil {
		_ = formatter.Error(ErrCodeIndexFailed, fmt.Sprintf("beginning session: %v", err), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	formatter.VerboseLog("Session %s", sess.ID)

	for i, sub := range asm.Subsystems {
		sub.SetRecorder(sess)
		if err := sub.Connect(); err != nil {
			return outputBuildError(formatter, err)
		}
		formatter.VerboseLog("Connected subsystem %d/%d", i+1, len(asm.Subsystems))
	}

	for _, sub := range asm.Subsystems {
		if err := sub.SerialiseConfig(outputDir); err != nil {
			return outputBuildError(formatter, err)
		}
	}

	rendered, err := asm.SDF.Render()
	if err != nil {
		return outputBuildError(formatter, err)
	}
	systemPath := filepath.Join(outputDir, asm.Name+".system")
	if err := os.WriteFile(systemPath, rendered, 0o644); err != nil {
		_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing system file: %v", err), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	if err := sess.RecordSystem(asm.Name+".system", systemPath, rendered); err != nil {
		_ = formatter.Error(ErrCodeIndexFailed, fmt.Sprintf("recording system file: %v", err), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	result := BuildResult{
		System:     systemPath,
		SessionID:  sess.ID,
		PDs:        len(asm.SDF.PDs()),
		MRs:        len(asm.SDF.MRs()),
		Channels:   len(asm.SDF.Channels()),
		Subsystems: len(asm.Subsystems),
		OutputDir:  outputDir,
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Built %s\n", systemPath)
	fmt.Fprintf(formatter.Writer, "  %d pds, %d mrs, %d channels, %d subsystems\n",
		result.PDs, result.MRs, result.Channels, result.Subsystems)
	return nil
}

// outputBuildError reports a load or assembly error. Builder errors
// surface their typed code; load errors their E-code.
func outputBuildError(formatter *OutputFormatter, err error) error {
	code := ErrCodeGeneric

	var loadErr *LoadError
	var buildErr *sdf.BuildError
	switch {
	case errors.As(err, &loadErr):
		code = loadErr.Code
	case errors.As(err, &buildErr):
		code = string(buildErr.Code)
	}

	_ = formatter.Error(code, err.Error(), nil)
	return NewExitError(ExitFailure, err.Error())
}
