package cli

import (
	"fmt"
	"strconv"

	"matchpoint/internal/common"
	"matchpoint/internal/engine"

	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply [job-key] [suggestion-number]",
	Short: "Apply one improvement suggestion for a job",
	Long: `Apply a single improvement suggestion to the active resume for one job.
The analysis service rewrites the resume text, rescores the match, and returns
the remaining suggestions. Suggestion numbers are 1-based and refer to the
job's current effective suggestion list (see the effective state output).

The first apply captures the original resume text so revert can restore it.`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		if applyConfig.OutputFormat == "" {
			applyConfig.OutputFormat = cfg.App.DefaultFormat
		}
		return common.ValidateOutputFormat(applyConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runApply,
}

var (
	applyConfig    common.CommandConfig
	applyJobSeeker string
)

func init() {
	applyCmd.Flags().StringVarP(&applyConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	applyCmd.Flags().StringVar(&applyConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")
	applyCmd.Flags().StringVar(&applyJobSeeker, "job-seeker", "", "Job seeker identity the resume belongs to")
	_ = applyCmd.MarkFlagRequired("job-seeker")
}

func runApply(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	number, err := strconv.Atoi(args[1])
	if err != nil || number < 1 {
		return fmt.Errorf("suggestion number must be a positive integer, got %q", args[1])
	}

	stk, cleanup, err := buildStack(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize analysis stack: %w", err)
	}
	defer cleanup()

	logger.Info("Applying suggestion",
		"job_seeker_id", applyJobSeeker,
		"job_key", args[0],
		"suggestion_number", number)

	state, err := stk.Engine.Apply(cmd.Context(), engine.ApplyInput{
		JobSeekerID:     applyJobSeeker,
		JobKey:          args[0],
		SuggestionIndex: number - 1,
	})
	if err != nil {
		return fmt.Errorf("failed to apply suggestion: %w", err)
	}

	logger.Info("Suggestion applied",
		"job_key", state.JobKey,
		"match_percentage", state.MatchPercentage,
		"can_download", state.CanDownload)

	return common.NewOutputHandler(logger).HandleOutput(state, applyConfig)
}
