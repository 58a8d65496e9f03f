package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool   `json:"valid"`
	Name       string `json:"name,omitempty"`
	PDs        int    `json:"pds,omitempty"`
	Subsystems int    `json:"subsystems,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.cue>",
		Short: "Validate a system config without emitting output",
		Long: `Validate loads a CUE system config and assembles the resource graph
without connecting subsystems or writing any files. Catches config
errors, name collisions and invalid addresses before a build.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, configPath string, cmd *cobra.Command) error {
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
	formatter.VerboseLog("Loaded config %q", cfg.Name)

	asm, err := Assemble(cfg)
	if err != nil {
		return outputBuildError(formatter, err)
	}

	result := ValidationResult{
		Valid:      true,
		Name:       asm.Name,
		PDs:        len(asm.SDF.PDs()),
		Subsystems: len(asm.Subsystems),
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Config valid: %d pds, %d subsystems\n", result.PDs, result.Subsystems)
	return nil
}
