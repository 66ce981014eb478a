package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"veritas/internal/config"
	"veritas/internal/llm"
	"veritas/internal/pipeline"
	"veritas/internal/server"
)

var (
	// Global flags
	cfgPath   string
	verbose   bool
	papersDir string
	csvDir    string
	outDir    string
	rq        string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "veritas",
	Short: "veritas - verified-evidence research paper pipeline",
	Long: `veritas turns a directory of source documents and a research question into
a verified evidence table and a graded paper draft.

Every quote in the evidence table is verified verbatim against source text
before anything downstream may cite it; unverifiable claims are dropped, not
repaired. Prose generation is confined to that verified evidence pack.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if papersDir != "" {
			cfg.Paths.PapersDir = papersDir
		}
		if outDir != "" {
			cfg.Paths.OutDir = outDir
		}

		zapCfg := zap.NewProductionConfig()
		if cfg.Logging.Format == "console" {
			zapCfg = zap.NewDevelopmentConfig()
		}
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "veritas.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&papersDir, "papers", "", "source documents directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&outDir, "out", "", "output directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&csvDir, "csvs", "", "evidence CSV directory (default: <out>/csvs)")
	rootCmd.PersistentFlags().StringVar(&rq, "rq", "", "research question")

	rootCmd.AddCommand(extractCmd, mergeCmd, cleanCmd, ideasCmd, summarizeCmd, citeCmd, paperCmd, runCmd, serveCmd)
}

// buildCaller assembles the shared model caller: provider client wrapped
// with global pacing and the retry policy.
func buildCaller(ctx context.Context) (*llm.Caller, error) {
	var client llm.Client
	switch cfg.LLM.Provider {
	case "gemini":
		c, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			Timeout: cfg.CallTimeout(),
		})
		if err != nil {
			return nil, err
		}
		client = c
	case "openai", "":
		client = llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.CallTimeout(),
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}

	pacer := llm.NewPacer(cfg.PacingInterval())
	return llm.NewCaller(client, pacer, llm.DefaultRetryPolicy(), logger), nil
}

func buildRunner(ctx context.Context) (*pipeline.Runner, error) {
	caller, err := buildCaller(ctx)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(cfg, caller, logger), nil
}

func requireRQ() error {
	if rq == "" {
		return fmt.Errorf("--rq is required")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := buildCaller(cmd.Context())
		if err != nil {
			return err
		}
		return server.New(cfg, caller, logger).Run()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
