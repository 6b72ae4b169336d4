package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/tuneiq/internal/collect"
	"github.com/TobiSchelling/tuneiq/internal/config"
	"github.com/TobiSchelling/tuneiq/internal/database"
	"github.com/TobiSchelling/tuneiq/internal/pipeline"
	"github.com/TobiSchelling/tuneiq/internal/predict"
	"github.com/TobiSchelling/tuneiq/internal/records"
	"github.com/TobiSchelling/tuneiq/internal/report"
	"github.com/TobiSchelling/tuneiq/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	envFile    string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "tuneiq",
	Short:   "Royalty underpayment and economic impact estimates",
	Long:    "TuneIQ compares reported streaming revenue with published per-stream rates, flags underpaid territories and estimates an artist's economic impact.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if strings.EqualFold(cfg.Logging.Level, "debug") {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "File with API credentials")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("tuneiq", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/tuneiq/",
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
		fmt.Println("Edit it to set the artist, royalty rates, platform credentials and the prediction model.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
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

		fmt.Printf("Artist: %s\n", cfg.Artist)
		fmt.Printf("Database: %s\n\n", db.Path())

		fmt.Println("Sources:")
		src := cfg.Sources
		printSource("Spotify", src.Spotify.Enabled)
		printSource("YouTube", src.YouTube.Enabled)
		printSource("Apple Music", src.AppleMusic.Enabled)
		printSource("Charts", src.Charts.Enabled)

		fmt.Println("\nModel:")
		m := cfg.Model
		p := predict.NewPredictor(predict.Open(m.Kind, m.Path, m.URL, cfg.ModelTimeout()))
		if p.Available() {
			fmt.Printf("  %s: ready\n", m.Kind)
		} else {
			fmt.Printf("  %s: unavailable (%v)\n", m.Kind, p.LoadErr())
		}

		fmt.Println("\nRuns:")
		fmt.Printf("  Total: %d\n", stats.Runs)
		fmt.Printf("  Artists: %d\n", stats.Artists)
		fmt.Printf("  Stored records: %d\n", stats.StoredRecords)
		fmt.Printf("  Underpaid territories: %d\n", stats.UnderpaidRows)
		fmt.Printf("  Revenue lost: %s\n", report.FormatCurrency(stats.TotalLostNGN))
		fmt.Printf("  With prediction: %d\n", stats.RunsWithPredict)

		last, err := db.GetLastRun()
		if err != nil {
			return fmt.Errorf("getting last run: %w", err)
		}
		if last != nil {
			fmt.Printf("\nLast run: %s (%s, %s)\n", last.ID, last.Artist, database.FormatPeriodDisplay(last.PeriodID))
		}
		return nil
	},
}

func printSource(name string, enabled bool) {
	state := "disabled (sample data)"
	if enabled {
		state = "enabled"
	}
	fmt.Printf("  %s: %s\n", name, state)
}

// --- collect command ---

var collectArtist string

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect streaming data from configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		artist := collectArtist
		if artist == "" {
			artist = cfg.Artist
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		fmt.Printf("Collecting streaming data for %s...\n", artist)
		result, err := collect.NewCollector(cfg).Collect(ctx, artist)
		if err != nil {
			return err
		}

		fmt.Println("\nCollection complete:")
		fmt.Printf("  Records: %d\n", len(result.Records))
		fmt.Printf("  Streams: %s\n", report.FormatNumber(records.TotalStreams(result.Records)))
		fmt.Printf("  Countries: %d\n", len(records.Countries(result.Records)))

		if len(result.Sources) > 0 {
			fmt.Println("\nRecords by source:")
			// Sort sources by count descending
			type kv struct {
				key string
				val int
			}
			var sorted []kv
			for k, v := range result.Sources {
				sorted = append(sorted, kv{k, v})
			}
			sort.Slice(sorted, func(i, j int) bool {
				if sorted[i].val != sorted[j].val {
					return sorted[i].val > sorted[j].val
				}
				return sorted[i].key < sorted[j].key
			})
			for _, s := range sorted {
				fmt.Printf("  %s: %d\n", s.key, s.val)
			}
		}
		if len(result.Replaced) > 0 {
			fmt.Printf("\nLive data replaced sample rows for: %v\n", result.Replaced)
		}
		if len(result.Signals) > 0 {
			fmt.Printf("Chart rows kept for prediction only: %d\n", len(result.Signals))
		}
		return nil
	},
}

func init() {
	collectCmd.Flags().StringVarP(&collectArtist, "artist", "a", "", "Artist to collect (default from config)")
}

// --- run command ---

var (
	dryRun    bool
	runArtist string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: collect -> estimate -> detect -> impact -> predict -> report -> save",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		pipe := pipeline.New(cfg, db)

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun(runArtist)
		} else {
			result = pipe.Run(ctx, runArtist)
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, pipeline.StepCount, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if !dryRun && result.RunID != "" {
			fmt.Printf("\nPipeline complete! Run 'tuneiq serve' to view run %s.\n", result.RunID)
		}
		if result.RunID == "" && !dryRun {
			return fmt.Errorf("run for %s did not complete", result.Artist)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
	runCmd.Flags().StringVarP(&runArtist, "artist", "a", "", "Artist to analyze (default from config)")
}

// --- analyze command ---

var (
	analyzeInput     string
	analyzeThreshold float64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a CSV of stream records without collecting or saving",
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		if analyzeInput == "" {
			data = collect.EmbeddedCSV()
		} else {
			b, err := os.ReadFile(analyzeInput)
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
			data = b
		}
		recs, err := records.ReadCSV(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("parsing input: %w", err)
		}

		params := cfg.RoyaltyParams()
		if cmd.Flags().Changed("threshold") {
			params.Threshold = analyzeThreshold
		}

		a := pipeline.Analyze(params, recs)
		if a.DetectErr != nil {
			return a.DetectErr
		}

		fmt.Printf("%d records, %s streams, threshold %s\n\n",
			len(a.Records), report.FormatNumber(records.TotalStreams(a.Records)), report.FormatPct(params.Threshold))

		if len(a.Underpayment) == 0 {
			fmt.Println("No underpaid territories.")
		} else {
			fmt.Printf("%-24s %8s %16s %16s %16s %12s\n", "Country", "Under", "Expected", "Actual", "Lost", "Streams")
			for _, u := range a.Underpayment {
				fmt.Printf("%-24s %8s %16s %16s %16s %12s\n",
					records.DisplayCountry(u.Country), report.FormatPct(u.UnderpaymentPct),
					report.FormatAmount(params.Currency, u.ExpectedRevenueNGN),
					report.FormatAmount(params.Currency, u.ActualRevenueNGN),
					report.FormatAmount(params.Currency, u.LostRevenueNGN),
					report.FormatNumber(u.Streams))
			}
		}

		fmt.Println("\nEconomic impact:")
		fmt.Printf("  Direct:          %s\n", report.FormatAmount(params.Currency, a.Impact.DirectRevenueNGN))
		fmt.Printf("  Indirect:        %s\n", report.FormatAmount(params.Currency, a.Impact.IndirectRevenueNGN))
		fmt.Printf("  Cultural export: %s\n", report.FormatAmount(params.Currency, a.Impact.CulturalExportValueNGN))
		fmt.Printf("  Total:           %s\n", report.FormatAmount(params.Currency, a.Impact.TotalEconomicImpactNGN))

		m := cfg.Model
		pred := predict.NewPredictor(predict.Open(m.Kind, m.Path, m.URL, cfg.ModelTimeout())).Predict(cmd.Context(), a.Records)
		fmt.Println("\nPrediction:")
		if pred.Degraded() {
			fmt.Printf("  Unavailable: %s\n", pred.Err)
		} else {
			fmt.Printf("  GDP contribution: %s\n", report.FormatCurrencyPtr(pred.PredictedGDP))
			fmt.Printf("  Jobs created:     %s\n", report.FormatNumberPtr(pred.PredictedJobs))
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeInput, "input", "i", "", "CSV file of stream records (default: bundled sample)")
	analyzeCmd.Flags().Float64VarP(&analyzeThreshold, "threshold", "t", 0, "Underpayment threshold in [0, 1) (default from config)")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
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
		return server.Serve(db, pipeline.New(cfg, db), port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(cfg.DBPath())
}
