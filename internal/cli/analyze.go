package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"matchpoint/internal/common"
	"matchpoint/internal/types"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [resume-file]",
	Short: "Analyze a resume against the job catalog",
	Long: `Upload a resume to the analysis service and store the resulting baseline
snapshot: extracted skills plus a scored match for every relevant job posting.

The snapshot replaces any previously active resume for the job seeker and
becomes the baseline that apply and revert operate on.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		// Apply default format if not specified
		if analyzeConfig.OutputFormat == "" {
			analyzeConfig.OutputFormat = cfg.App.DefaultFormat
		}
		// Validate format against supported formats
		return common.ValidateOutputFormat(analyzeConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runAnalyze,
}

var (
	analyzeConfig    common.CommandConfig
	analyzeJobSeeker string
)

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	analyzeCmd.Flags().StringVar(&analyzeConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")
	analyzeCmd.Flags().StringVar(&analyzeJobSeeker, "job-seeker", "", "Job seeker identity the snapshot belongs to")
	_ = analyzeCmd.MarkFlagRequired("job-seeker")

	// Add completion for format flag
	_ = analyzeCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return common.GetSupportedFormats(cfg.App.SupportedFormats), cobra.ShellCompDirectiveNoFileComp
	})
}

// analyzeInput carries the resume upload for the analysis operation.
type analyzeInput struct {
	FileName string
	Content  string
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	stk, cleanup, err := buildStack(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize analysis stack: %w", err)
	}
	defer cleanup()

	fileName := filepath.Base(args[0])

	createInput := func(contents []string) (analyzeInput, error) {
		if len(contents) != 1 {
			return analyzeInput{}, fmt.Errorf("expected 1 file path, got %d", len(contents))
		}
		return analyzeInput{FileName: fileName, Content: contents[0]}, nil
	}

	logDetails := func(input analyzeInput, cfg common.CommandConfig) {
		logger.Info("Starting resume analysis",
			"job_seeker_id", analyzeJobSeeker,
			"resume_file", input.FileName,
			"resume_chars", len(input.Content),
			"output_format", cfg.OutputFormat)
	}

	analyzeOperation := func(ctx context.Context, input analyzeInput) (*types.ResumeSnapshot, error) {
		return stk.Engine.Analyze(ctx, analyzeJobSeeker, input.FileName, strings.NewReader(input.Content))
	}

	err = common.RunFileCommand(
		cmd.Context(),
		logger,
		analyzeConfig,
		args,
		createInput,
		analyzeOperation,
		logDetails,
	)

	if err != nil {
		return fmt.Errorf("failed to analyze resume: %w", err)
	}
	logger.Info("Resume analysis completed successfully")
	return nil
}
