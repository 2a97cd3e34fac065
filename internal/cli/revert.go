package cli

import (
	"fmt"

	"matchpoint/internal/common"

	"github.com/spf13/cobra"
)

var revertCmd = &cobra.Command{
	Use:   "revert [job-key]",
	Short: "Revert the resume to its original text",
	Long: `Restore the resume text captured before the first applied suggestion and
drop all session working state for the job seeker. The job's match state falls
back to the stored baseline.

Fails when no suggestion has ever been applied, since no original text has
been captured yet.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		if revertConfig.OutputFormat == "" {
			revertConfig.OutputFormat = cfg.App.DefaultFormat
		}
		return common.ValidateOutputFormat(revertConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runRevert,
}

var (
	revertConfig    common.CommandConfig
	revertJobSeeker string
)

func init() {
	revertCmd.Flags().StringVarP(&revertConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	revertCmd.Flags().StringVar(&revertConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")
	revertCmd.Flags().StringVar(&revertJobSeeker, "job-seeker", "", "Job seeker identity the resume belongs to")
	_ = revertCmd.MarkFlagRequired("job-seeker")
}

func runRevert(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	stk, cleanup, err := buildStack(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize analysis stack: %w", err)
	}
	defer cleanup()

	logger.Info("Reverting resume",
		"job_seeker_id", revertJobSeeker,
		"job_key", args[0])

	state, err := stk.Engine.Revert(cmd.Context(), revertJobSeeker, args[0])
	if err != nil {
		return fmt.Errorf("failed to revert resume: %w", err)
	}

	logger.Info("Resume reverted",
		"job_key", state.JobKey,
		"match_percentage", state.MatchPercentage)

	return common.NewOutputHandler(logger).HandleOutput(state, revertConfig)
}
