package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"veritas/internal/citation"
	"veritas/internal/document"
	"veritas/internal/evidence"
	"veritas/internal/ideas"
	"veritas/internal/review"
)

var (
	noDedupe      bool
	inputCSV      string
	outputCSV     string
	summaryQuotes int
)

func init() {
	mergeCmd.Flags().BoolVar(&noDedupe, "no-dedupe", false, "keep duplicate quotes across documents")
	extractCmd.Flags().BoolVar(&noDedupe, "no-dedupe", false, "keep duplicate quotes across documents")
	runCmd.Flags().BoolVar(&noDedupe, "no-dedupe", false, "keep duplicate quotes across documents")
	ideasCmd.Flags().StringVar(&inputCSV, "input", "", "evidence CSV to annotate (required)")
	ideasCmd.Flags().StringVar(&outputCSV, "output", "", "output CSV (default: <input>_with_ideas.csv)")
	summarizeCmd.Flags().IntVar(&summaryQuotes, "max-quotes", 0, "max evidence rows in the summary prompt (default 30)")
}

func csvOutDir() string {
	if csvDir != "" {
		return csvDir
	}
	return filepath.Join(cfg.Paths.OutDir, "csvs")
}

// extractCmd runs documents → verified, merged, annotated evidence CSVs.
var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract verified quotes from documents into evidence CSVs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRQ(); err != nil {
			return err
		}
		cfg.Extraction.NoDedupe = noDedupe
		runner, err := buildRunner(cmd.Context())
		if err != nil {
			return err
		}
		art, err := runner.RunQuotes(cmd.Context(), rq, cfg.Paths.PapersDir, csvOutDir(), nil)
		if err != nil {
			return err
		}
		fmt.Printf("evidence written: %s (%d records)\n", art.FinalCSV, len(art.Records))
		return nil
	},
}

// mergeCmd merges evidence CSVs without touching any model.
var mergeCmd = &cobra.Command{
	Use:   "merge [csv-dir]",
	Short: "Merge evidence CSVs in a directory, deduplicating quotes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := filepath.Join(args[0], "all_quotes.csv")
		records, err := evidence.MergeCSVDir(args[0], out, evidence.MergeOptions{NoDedupe: noDedupe}, logger)
		if err != nil {
			return err
		}
		fmt.Printf("merged: %s (%d records)\n", out, len(records))
		return nil
	},
}

// ideasCmd annotates an existing evidence CSV with synthesized ideas.
var ideasCmd = &cobra.Command{
	Use:   "ideas",
	Short: "Add a synthesized one-sentence idea per quote to an evidence CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		if inputCSV == "" {
			return fmt.Errorf("--input is required")
		}
		records, err := evidence.ReadCSV(inputCSV)
		if err != nil {
			return err
		}

		cache, err := ideas.OpenCache(filepath.Join(cfg.Paths.CacheDir, "synthesis.json"))
		if err != nil {
			return err
		}
		caller, err := buildCaller(cmd.Context())
		if err != nil {
			return err
		}
		synth := ideas.NewSynthesizer(caller, cache, cfg.Ideas.Concurrency, logger)
		records = synth.Annotate(cmd.Context(), records, rq)

		out := outputCSV
		if out == "" {
			ext := filepath.Ext(inputCSV)
			out = inputCSV[:len(inputCSV)-len(ext)] + "_with_ideas" + ext
		}
		if err := evidence.WriteCSV(out, records, true); err != nil {
			return err
		}
		fmt.Printf("ideas written: %s (%d records)\n", out, len(records))
		return nil
	},
}

// summarizeCmd prints a one-paragraph executive summary of an evidence CSV.
var summarizeCmd = &cobra.Command{
	Use:   "summarize [evidence-csv]",
	Short: "Write a one-paragraph summary of an evidence CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRQ(); err != nil {
			return err
		}
		records, err := evidence.ReadCSV(args[0])
		if err != nil {
			return err
		}
		caller, err := buildCaller(cmd.Context())
		if err != nil {
			return err
		}
		summary, err := review.NewSummarizer(caller, summaryQuotes, logger).Summarize(cmd.Context(), records, rq)
		if err != nil {
			return err
		}
		fmt.Println(summary)
		return nil
	},
}

// cleanCmd re-verifies existing evidence CSVs against the source documents.
var cleanCmd = &cobra.Command{
	Use:   "clean [csv-dir]",
	Short: "Re-verify evidence CSVs in place, dropping quotes no longer found on their page",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := csvOutDir()
		if len(args) == 1 {
			dir = args[0]
		}
		docs, err := document.LoadDir(cfg.Paths.PapersDir)
		if err != nil {
			return err
		}
		return evidence.CleanCSVDir(dir, docs, logger)
	},
}

// citeCmd builds the citations map for a documents directory.
var citeCmd = &cobra.Command{
	Use:   "cite",
	Short: "Infer citations for each source document",
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := document.LoadDir(cfg.Paths.PapersDir)
		if err != nil {
			return err
		}
		caller, err := buildCaller(cmd.Context())
		if err != nil {
			return err
		}
		set := citation.NewBuilder(caller, cfg.Paper.Concurrency, logger).Build(cmd.Context(), docs)

		out := filepath.Join(cfg.Paths.OutDir, "citations.json")
		if err := set.Save(out); err != nil {
			return err
		}
		fmt.Printf("citations written: %s (%d documents)\n", out, len(set))
		return nil
	},
}

// paperCmd generates a graded paper from an existing evidence CSV.
var paperCmd = &cobra.Command{
	Use:   "paper [evidence-csv]",
	Short: "Generate a graded paper draft from an evidence CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRQ(); err != nil {
			return err
		}
		records, err := evidence.ReadCSV(args[0])
		if err != nil {
			return err
		}
		runner, err := buildRunner(cmd.Context())
		if err != nil {
			return err
		}
		art, err := runner.RunPaper(cmd.Context(), rq, cfg.Paper.Topic, cfg.Paths.PapersDir, cfg.Paths.OutDir, records, nil)
		if err != nil {
			return err
		}
		fmt.Printf("paper written: %s (score %d)\n", art.PaperMD, art.Verdict.Score)
		return nil
	},
}

// runCmd chains extraction and paper generation end to end.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: extract evidence, then generate the paper",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRQ(); err != nil {
			return err
		}
		cfg.Extraction.NoDedupe = noDedupe
		runner, err := buildRunner(cmd.Context())
		if err != nil {
			return err
		}

		progress := func(stage string, pct int) {
			logger.Info("stage", zap.String("stage", stage), zap.Int("pct", pct))
		}
		quotes, err := runner.RunQuotes(cmd.Context(), rq, cfg.Paths.PapersDir, csvOutDir(), progress)
		if err != nil {
			return err
		}
		art, err := runner.RunPaper(cmd.Context(), rq, cfg.Paper.Topic, cfg.Paths.PapersDir, cfg.Paths.OutDir, quotes.Records, progress)
		if err != nil {
			return err
		}
		fmt.Printf("paper written: %s (score %d, %d evidence records)\n", art.PaperMD, art.Verdict.Score, len(quotes.Records))
		return nil
	},
}
