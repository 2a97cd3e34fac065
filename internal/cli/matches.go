package cli

import (
	"fmt"

	"matchpoint/internal/common"

	"github.com/spf13/cobra"
)

var matchesCmd = &cobra.Command{
	Use:   "matches",
	Short: "List job matches for the active resume",
	Long: `Re-run the match analysis for the job seeker's active resume and list one
page of scored job matches. The analysis service recomputes the page from the
stored resume, so results reflect the current job catalog.`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		if matchesConfig.OutputFormat == "" {
			matchesConfig.OutputFormat = cfg.App.DefaultFormat
		}
		return common.ValidateOutputFormat(matchesConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runMatches,
}

var (
	matchesConfig    common.CommandConfig
	matchesJobSeeker string
	matchesPage      int
	matchesSize      int
)

func init() {
	matchesCmd.Flags().StringVarP(&matchesConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	matchesCmd.Flags().StringVar(&matchesConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")
	matchesCmd.Flags().StringVar(&matchesJobSeeker, "job-seeker", "", "Job seeker identity to list matches for")
	matchesCmd.Flags().IntVar(&matchesPage, "page", 0, "Zero-based page number")
	matchesCmd.Flags().IntVar(&matchesSize, "size", 20, "Page size")
	_ = matchesCmd.MarkFlagRequired("job-seeker")
}

func runMatches(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	stk, cleanup, err := buildStack(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize analysis stack: %w", err)
	}
	defer cleanup()

	logger.Info("Fetching job matches",
		"job_seeker_id", matchesJobSeeker,
		"page", matchesPage,
		"size", matchesSize)

	page, err := stk.Engine.Matches(cmd.Context(), matchesJobSeeker, matchesPage, matchesSize)
	if err != nil {
		return fmt.Errorf("failed to fetch job matches: %w", err)
	}

	return common.NewOutputHandler(logger).HandleOutput(page, matchesConfig)
}
