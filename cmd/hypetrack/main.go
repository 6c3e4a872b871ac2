package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TobiSchelling/hypetrack/internal/aggregate"
	"github.com/TobiSchelling/hypetrack/internal/classify"
	"github.com/TobiSchelling/hypetrack/internal/collect"
	"github.com/TobiSchelling/hypetrack/internal/config"
	"github.com/TobiSchelling/hypetrack/internal/database"
	"github.com/TobiSchelling/hypetrack/internal/dataset"
	"github.com/TobiSchelling/hypetrack/internal/filter"
	"github.com/TobiSchelling/hypetrack/internal/language"
	"github.com/TobiSchelling/hypetrack/internal/logging"
	"github.com/TobiSchelling/hypetrack/internal/pipeline"
	"github.com/TobiSchelling/hypetrack/internal/sample"
	"github.com/TobiSchelling/hypetrack/internal/sentiment"
	"github.com/TobiSchelling/hypetrack/internal/server"
	"github.com/TobiSchelling/hypetrack/internal/validate"
	"github.com/TobiSchelling/hypetrack/internal/youtube"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     = zap.NewNop()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "hypetrack",
	Short:   "Pre-release sentiment of trailer comments",
	Long:    "hypetrack collects pre-release trailer comments per season, classifies their sentiment, aggregates it per season and validates the classifier against a hand-labeled sample.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		logger, err = logging.New(cfg.Logging.Level, verbose)
		if err != nil {
			return fmt.Errorf("configuring logging: %w", err)
		}
		zap.RedirectStdLog(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("hypetrack", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/hypetrack/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure seasons, the YouTube API key and the classifier.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show collection and artifact status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Data directory: %s\n\n", cfg.GetDataDir())
		fmt.Println("Seasons:")
		for _, s := range cfg.Seasons {
			marker, err := db.GetCollection(s.ID)
			if err != nil {
				return err
			}
			switch {
			case marker == nil:
				fmt.Printf("  %s  not collected (release %s)\n", s.ID, s.ReleaseDate)
			default:
				fmt.Printf("  %s  %-8s %5d accepted of %d read\n", s.ID, marker.Status, marker.RecordCount, marker.TotalRead)
			}
		}

		fmt.Println("\nTotals:")
		fmt.Printf("  Complete seasons: %d\n", stats.CompleteSeasons)
		fmt.Printf("  Partial seasons: %d\n", stats.PartialSeasons)
		fmt.Printf("  Accepted comments: %d\n", stats.AcceptedRecords)
		fmt.Printf("  Artifacts written: %d\n", stats.Artifacts)
		fmt.Printf("  Pipeline runs: %d\n", stats.Runs)
		if stats.LastAccuracy != nil {
			fmt.Printf("  Last validation accuracy: %.3f\n", *stats.LastAccuracy)
		}
		return nil
	},
}

// --- collect command ---

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect and filter pre-release comments for every season",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Println("Collecting comments...")
		collector := collect.NewCollector(cfg, db, newSource(), newFilter(), logger)
		result := collector.Collect(cmd.Context())

		fmt.Println("\nCollection complete:")
		for _, s := range result.Seasons {
			switch {
			case s.Skipped:
				fmt.Printf("  %s: skipped (%s)\n", s.Season, s.SkipReason)
			case s.Err != nil && !s.Partial:
				fmt.Printf("  %s: failed: %v\n", s.Season, s.Err)
			default:
				suffix := ""
				if s.Partial {
					suffix = " [partial, will retry]"
				}
				fmt.Printf("  %s: %d accepted of %d read%s\n", s.Season, s.Accepted, s.Read, suffix)
			}
		}
		fmt.Printf("\nNew comments accepted: %d\n", result.NewlyAccepted)
		return nil
	},
}

// --- classify command ---

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify accepted comments and write season stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		svc, err := openClassifier(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		result, err := classify.NewOrchestrator(cfg, db, svc, logger).Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Classified %d comments (%d dropped) -> %s\n", result.Classified(), result.Dropped(), result.Artifact.Path)

		agg, err := aggregate.Run(cfg, db, logger)
		if err != nil {
			return err
		}
		printSeasonStats(agg)
		return nil
	},
}

func printSeasonStats(r *aggregate.Result) {
	counts := make(map[string]int)
	for _, c := range r.Counts {
		counts[c.Season+"/"+string(c.Label)] = c.Count
	}
	fmt.Println("\nSeason sentiment:")
	for _, s := range r.Stats {
		fmt.Printf("  %-4s %-9s %6.2f%%  (%d)\n", s.Season, s.Label, s.Percentage, counts[s.Season+"/"+s.Label])
	}
}

// --- sample command ---

var sampleSize int

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Draw a random sample of accepted comments for manual labeling",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("size") {
			cfg.Sampling.Size = sampleSize
		}

		result, err := sample.NewSampler(cfg, nil, logger).Create(cmd.Context())
		if errors.Is(err, sample.ErrOutputExists) {
			fmt.Printf("A labeling sample already exists at %s.\n", cfg.Paths().LabelingSample)
			fmt.Println("Rename or delete it to draw a new one; nothing was written.")
			return nil
		}
		if errors.Is(err, sample.ErrNoRecords) {
			fmt.Println("No accepted comments found. Run 'hypetrack collect' first; nothing was written.")
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Printf("Sampled %d of %d accepted comments -> %s\n\n", result.Sampled, result.PoolSize, result.Path)
		fmt.Println("Next steps:")
		fmt.Println("  1. Open the file and delete rows that are spam or not about the show.")
		fmt.Println("  2. Fill ground_truth_label with POSITIVE or NEGATIVE for every remaining row.")
		fmt.Printf("  3. Save it as %s and run 'hypetrack validate'.\n", cfg.Paths().LabeledInput)
		return nil
	},
}

func init() {
	sampleCmd.Flags().IntVarP(&sampleSize, "size", "n", sample.DefaultSize, "Number of comments to sample")
}

// --- validate command ---

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Score the classifier against the hand-labeled sample",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		svc, err := openClassifier(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		report, err := validate.NewValidator(cfg, db, svc, logger).Run(cmd.Context())
		if errors.Is(err, validate.ErrLabeledSampleMissing) {
			fmt.Printf("No labeled sample found at %s.\n", cfg.Paths().LabeledInput)
			fmt.Println("Run 'hypetrack sample', label the file and save it there first.")
			return nil
		}
		if err != nil {
			return err
		}

		d := report.Dropped
		fmt.Printf("Scored %d of %d labeled rows (dropped: %d missing text, %d missing label, %d unknown label, %d unclassified)\n\n",
			report.Rows, report.Input, d.MissingText, d.MissingLabel, d.UnknownLabel, d.Unclassified)
		printMetrics(report.Metrics)
		return nil
	},
}

// --- metrics command ---

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show classifier metrics from the last validation",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := validate.LoadMetrics(cfg.Paths().ValidationPredictions)
		if errors.Is(err, dataset.ErrArtifactMissing) {
			fmt.Println("No validation results yet. Run 'hypetrack validate' first.")
			return nil
		}
		if err != nil {
			return err
		}
		printMetrics(*m)
		return nil
	},
}

func printMetrics(m validate.Metrics) {
	fmt.Printf("Accuracy: %.3f over %d rows\n\n", m.Accuracy, m.Support)

	fmt.Printf("  %-10s %9s %9s %9s %9s\n", "", "precision", "recall", "f1", "support")
	for _, c := range m.Classes {
		fmt.Printf("  %-10s %9.3f %9.3f %9.3f %9d\n", c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	fmt.Printf("  %-10s %9.3f %9.3f %9.3f %9d\n", "macro", m.MacroAvg.Precision, m.MacroAvg.Recall, m.MacroAvg.F1, m.Support)
	fmt.Printf("  %-10s %9.3f %9.3f %9.3f %9d\n", "weighted", m.WeightedAvg.Precision, m.WeightedAvg.Recall, m.WeightedAvg.F1, m.Support)

	axis := make([]string, len(sentiment.Labels))
	for i, l := range sentiment.Labels {
		axis[i] = string(l)
	}
	cm := m.Confusion.WithAxis(axis)
	fmt.Println("\nConfusion matrix (rows: ground truth, columns: predicted):")
	fmt.Printf("  %-10s %s\n", "", strings.Join(padAll(cm.Labels, 9), " "))
	for i, row := range cm.Matrix {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprintf("%9d", v)
		}
		fmt.Printf("  %-10s %s\n", cm.Labels[i], strings.Join(cells, " "))
	}
}

func padAll(ss []string, width int) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%*s", width, s)
	}
	return out
}

// --- run command ---

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: collect -> classify -> aggregate -> validate",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var result *pipeline.Result
		if dryRun {
			result = pipeline.New(cfg, db, newSource(), newFilter(), nil, logger).DryRun()
		} else {
			svc, err := openClassifier(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()
			result = pipeline.New(cfg, db, newSource(), newFilter(), svc, logger).Run(cmd.Context())
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/4: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if !dryRun {
			fmt.Printf("\nPipeline run %s complete. Run 'hypetrack serve' to query the results.\n", result.RunID)
			if result.Failed() {
				return fmt.Errorf("one or more steps failed")
			}
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.New(cfg, db, logger).ListenAndServe(cmd.Context(), port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

// --- helpers ---

func openDB() (*database.DB, error) {
	return database.Open(cfg.Paths().Database, database.WithLogger(logger))
}

func newSource() collect.Source {
	return youtube.NewClient(cfg.Source.YouTube, logger)
}

func newFilter() *filter.Filter {
	return filter.New(language.NewLingua(), cfg.Filter.MinTokens, cfg.Filter.Language)
}

func openClassifier(ctx context.Context) (*sentiment.Service, error) {
	svc := sentiment.New(cfg.Classifier, logger)
	if err := svc.Open(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}
