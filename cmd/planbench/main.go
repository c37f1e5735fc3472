// Package main provides the entry point for the planbench CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/TFMV/planbench/cmd/planbench/config"
	"github.com/TFMV/planbench/pkg/benchmark"
	"github.com/TFMV/planbench/pkg/catalog"
	"github.com/TFMV/planbench/pkg/errors"
	"github.com/TFMV/planbench/pkg/history"
	"github.com/TFMV/planbench/pkg/infrastructure/metrics"
	"github.com/TFMV/planbench/pkg/models"
	"github.com/TFMV/planbench/pkg/report"
	"github.com/TFMV/planbench/pkg/repositories/mongo"
	"github.com/TFMV/planbench/pkg/repositories/postgres"
)

var (
	// Version information (set by build flags)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "planbench",
	Short: "Compare PostgreSQL and MongoDB query plans",
	Long: `planbench runs a catalog of equivalent queries against PostgreSQL and MongoDB,
captures each engine's explain output, and reduces both to comparable metrics.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run [query...]",
	Short: "Explain catalog queries on both engines and compare them",
	Long: `Explain catalog queries on both engines and compare them.

With no query names the whole catalog is run. Unknown names are skipped.

Example:
  planbench run
  planbench run business_by_city --format json --no-timestamp
  PG_HOST=localhost MONGO_HOST=localhost planbench run --history`,
	RunE: runBenchmark,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog queries",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, q := range catalog.Default().All() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", q.Name, q.Description)
		}
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [query]",
	Short: "Show recent comparison records",
	Args:  cobra.MaximumNArgs(1),
	RunE:  showHistory,
}

// binding ties a config key to its flag and the environment variables
// honored besides PLANBENCH_<KEY>.
type binding struct {
	key    string
	flag   string
	legacy string
}

var runBindings = []binding{
	{"postgres.host", "pg-host", "PG_HOST"},
	{"postgres.port", "pg-port", "PG_PORT"},
	{"postgres.user", "pg-user", "PG_USER"},
	{"postgres.password", "pg-password", "PG_PASSWORD"},
	{"postgres.database", "pg-db", "PG_DB"},
	{"mongo.host", "mongo-host", "MONGO_HOST"},
	{"mongo.port", "mongo-port", "MONGO_PORT"},
	{"mongo.user", "mongo-user", "MONGO_USER"},
	{"mongo.password", "mongo-password", "MONGO_PASSWORD"},
	{"mongo.database", "mongo-db", ""},
	{"output.results_dir", "results-dir", ""},
	{"output.relational_file", "pg-output", ""},
	{"output.document_file", "mongo-output", ""},
	{"output.format", "format", ""},
	{"history.enabled", "history", ""},
	{"metrics.textfile", "metrics-textfile", ""},
	{"query_timeout", "query-timeout", ""},
}

var persistentBindings = []binding{
	{"config", "config", ""},
	{"log_level", "log-level", ""},
	{"log_format", "log-format", ""},
	{"history.path", "history-path", ""},
}

func init() {
	rootCmd.AddCommand(runCmd, listCmd, historyCmd)

	def := config.DefaultConfig()

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "config file path (yaml, json or toml)")
	pf.String("log-level", def.LogLevel, "log level (debug, info, warn, error)")
	pf.String("log-format", def.LogFormat, `log format ("auto", "console", "json")`)
	pf.String("history-path", def.History.Path, "DuckDB history database path")

	// Run flags
	f := runCmd.Flags()
	f.StringSlice("queries", nil, "comma-separated query names (default: all)")
	f.String("results-dir", def.Output.ResultsDir, "directory for explain artifacts")
	f.String("pg-output", def.Output.RelationalFile, "PostgreSQL artifact filename")
	f.String("mongo-output", def.Output.DocumentFile, "MongoDB artifact filename")
	f.Bool("no-timestamp", false, "write plain filenames instead of timestamped and latest_ copies")
	f.String("format", def.Output.Format, "summary format ("+strings.Join(report.Formats, ", ")+")")
	f.Bool("history", def.History.Enabled, "append comparison records to the DuckDB history")
	f.String("metrics-textfile", "", "write Prometheus metrics to this textfile after the run")
	f.Duration("query-timeout", def.QueryTimeout, "timeout for each explain call")
	f.String("pg-host", def.Postgres.Host, "PostgreSQL host")
	f.Int("pg-port", def.Postgres.Port, "PostgreSQL port")
	f.String("pg-user", def.Postgres.User, "PostgreSQL user")
	f.String("pg-password", def.Postgres.Password, "PostgreSQL password")
	f.String("pg-db", def.Postgres.Database, "PostgreSQL database")
	f.String("mongo-host", def.Mongo.Host, "MongoDB host")
	f.Int("mongo-port", def.Mongo.Port, "MongoDB port")
	f.String("mongo-user", def.Mongo.User, "MongoDB user")
	f.String("mongo-password", def.Mongo.Password, "MongoDB password")
	f.String("mongo-db", def.Mongo.Database, "MongoDB database")

	// History flags
	historyCmd.Flags().Int("limit", history.DefaultLimit, "maximum records to show")
	historyCmd.Flags().String("format", def.Output.Format, "output format ("+strings.Join(report.Formats, ", ")+")")

	// Bind flags and environment to viper
	bind(pf, persistentBindings)
	bind(f, runBindings)
	viper.SetEnvPrefix("PLANBENCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.SetDefault("output.timestamped", def.Output.Timestamped)
	viper.SetDefault("postgres.max_conns", def.Postgres.MaxConns)
	viper.SetDefault("postgres.connect_timeout", def.Postgres.ConnectTimeout)
	viper.SetDefault("mongo.connect_timeout", def.Mongo.ConnectTimeout)

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("planbench\n")
			fmt.Printf("Version:    %s\n", version)
			fmt.Printf("Commit:     %s\n", commit)
			fmt.Printf("Build Date: %s\n", buildDate)
		},
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func bind(flags *pflag.FlagSet, bindings []binding) {
	for _, b := range bindings {
		if err := viper.BindPFlag(b.key, flags.Lookup(b.flag)); err != nil {
			panic(fmt.Errorf("failed to bind flag %s: %w", b.flag, err))
		}
		envs := []string{b.key, "PLANBENCH_" + strings.ToUpper(strings.ReplaceAll(b.key, ".", "_"))}
		if b.legacy != "" {
			envs = append(envs, b.legacy)
		}
		if err := viper.BindEnv(envs...); err != nil {
			panic(fmt.Errorf("failed to bind env for %s: %w", b.key, err))
		}
	}
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogging(cfg.LogLevel, cfg.LogFormat)
	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Msg("Starting planbench")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := postgres.New(ctx, postgres.Config{
		DSN:            cfg.Postgres.DSN(),
		MaxConns:       cfg.Postgres.MaxConns,
		ConnectTimeout: cfg.Postgres.ConnectTimeout,
	}, logger)
	if err != nil {
		logger.Error().Err(err).Str("code", errors.GetCode(err)).Msg("Failed to connect to PostgreSQL")
		return err
	}
	defer pg.Close()

	mg, err := mongo.New(ctx, mongo.Config{
		URI:            cfg.Mongo.URI(),
		Database:       cfg.Mongo.Database,
		ConnectTimeout: cfg.Mongo.ConnectTimeout,
	}, logger)
	if err != nil {
		logger.Error().Err(err).Str("code", errors.GetCode(err)).Msg("Failed to connect to MongoDB")
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mg.Close(closeCtx); err != nil {
			logger.Warn().Err(err).Msg("Error disconnecting from MongoDB")
		}
	}()

	var collector metrics.Collector = metrics.NewNoOpCollector()
	var prom *metrics.PrometheusCollector
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheusCollector()
		collector = prom
	}

	runner := benchmark.NewRunner(pg, mg, catalog.Default(), logger,
		benchmark.WithMetrics(collector),
		benchmark.WithQueryTimeout(cfg.QueryTimeout),
	)

	names, _ := cmd.Flags().GetStringSlice("queries")
	names = append(names, args...)

	result, runErr := runner.Run(ctx, names)
	if result == nil {
		logger.Error().Err(runErr).Str("code", errors.GetCode(runErr)).Msg("Benchmark aborted")
		return runErr
	}
	if runErr != nil {
		logger.Warn().
			Err(runErr).
			Int("records", len(result.Records)).
			Msg("Benchmark interrupted, reporting partial results")
	}

	if prom != nil {
		if err := prom.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Error().Err(err).Str("path", cfg.Metrics.Textfile).Msg("Failed to write metrics textfile")
			return errors.Wrap(err, errors.CodePersistFailed, "write metrics textfile")
		}
	}

	persistCtx, cancel := persistContext(ctx)
	defer cancel()
	if err := reportResult(persistCtx, cfg, result, cmd.OutOrStdout(), logger); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}

	logger.Info().
		Str("run_id", result.RunID).
		Int("records", len(result.Records)).
		Strs("skipped", result.Skipped).
		Strs("failures", result.Failures).
		Dur("total_time", result.TotalTime).
		Msg("Benchmark complete")
	return nil
}

// persistContext returns ctx, or a short-lived replacement when ctx was
// cancelled, so partial results can still be saved after an interrupt.
func persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// reportResult prints the summary and persists artifacts and history.
func reportResult(ctx context.Context, cfg *config.Config, result *benchmark.Result, w io.Writer, logger zerolog.Logger) error {
	if len(result.Records) == 0 {
		logger.Info().Str("run_id", result.RunID).Msg("no benchmark results to report")
		return nil
	}

	if err := report.Output(result.Records, cfg.Output.Format, w); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	writer := report.NewArtifactWriter(cfg.Output.ResultsDir, cfg.Output.Timestamped, logger)
	writer.RelationalFile = cfg.Output.RelationalFile
	writer.DocumentFile = cfg.Output.DocumentFile
	paths, err := writer.Write(result.Artifacts)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to write explain artifacts")
		return err
	}
	logger.Info().Strs("paths", paths).Msg("Results saved")

	if cfg.History.Enabled {
		if err := appendHistory(ctx, cfg.History.Path, result, logger); err != nil {
			logger.Error().Err(err).Str("path", cfg.History.Path).Msg("Failed to append history")
			return err
		}
	}
	return nil
}

func appendHistory(ctx context.Context, path string, result *benchmark.Result, logger zerolog.Logger) error {
	store, err := history.Open(ctx, path, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Append(ctx, result.RunID, result.StartTime, result.Records)
}

func showHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := setupLogging(cfg.LogLevel, cfg.LogFormat)

	format, _ := cmd.Flags().GetString("format")
	limit, _ := cmd.Flags().GetInt("limit")
	var query string
	if len(args) == 1 {
		query = args[0]
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := history.Open(ctx, cfg.History.Path, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(ctx, query, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		logger.Info().Str("query", query).Msg("no history recorded")
		return nil
	}
	return writeHistory(entries, format, cmd.OutOrStdout())
}

// writeHistory prints entries grouped by run, newest run first.
func writeHistory(entries []history.Entry, format string, w io.Writer) error {
	var (
		runID   string
		records []models.ComparisonRecord
	)
	flush := func() error {
		if len(records) == 0 {
			return nil
		}
		if _, err := fmt.Fprintf(w, "\nRun %s\n", runID); err != nil {
			return err
		}
		err := report.Output(records, format, w)
		records = records[:0]
		return err
	}

	for _, e := range entries {
		if e.RunID != runID {
			if err := flush(); err != nil {
				return err
			}
			runID = e.RunID
		}
		records = append(records, e.ComparisonRecord)
	}
	return flush()
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	// Load config file if specified
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidConfig, "failed to read config file")
		}
	}

	// Build configuration
	cfg := &config.Config{
		Postgres: config.PostgresConfig{
			Host:           viper.GetString("postgres.host"),
			Port:           viper.GetInt("postgres.port"),
			User:           viper.GetString("postgres.user"),
			Password:       viper.GetString("postgres.password"),
			Database:       viper.GetString("postgres.database"),
			MaxConns:       viper.GetInt32("postgres.max_conns"),
			ConnectTimeout: viper.GetDuration("postgres.connect_timeout"),
		},
		Mongo: config.MongoConfig{
			Host:           viper.GetString("mongo.host"),
			Port:           viper.GetInt("mongo.port"),
			User:           viper.GetString("mongo.user"),
			Password:       viper.GetString("mongo.password"),
			Database:       viper.GetString("mongo.database"),
			ConnectTimeout: viper.GetDuration("mongo.connect_timeout"),
		},
		Output: config.OutputConfig{
			ResultsDir:     viper.GetString("output.results_dir"),
			RelationalFile: viper.GetString("output.relational_file"),
			DocumentFile:   viper.GetString("output.document_file"),
			Timestamped:    viper.GetBool("output.timestamped"),
			Format:         viper.GetString("output.format"),
		},
		History: config.HistoryConfig{
			Enabled: viper.GetBool("history.enabled"),
			Path:    viper.GetString("history.path"),
		},
		Metrics: config.MetricsConfig{
			Textfile: viper.GetString("metrics.textfile"),
		},
		QueryTimeout: viper.GetDuration("query_timeout"),
		LogLevel:     viper.GetString("log_level"),
		LogFormat:    viper.GetString("log_format"),
	}
	cfg.Metrics.Enabled = viper.GetBool("metrics.enabled") || cfg.Metrics.Textfile != ""

	if f := cmd.Flags().Lookup("no-timestamp"); f != nil && f.Changed {
		noTimestamp, _ := cmd.Flags().GetBool("no-timestamp")
		cfg.Output.Timestamped = !noTimestamp
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setupLogging(level, format string) zerolog.Logger {
	// Configure zerolog
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	// Set log level
	var logLevel zerolog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = zerolog.DebugLevel
		// Enable caller info for debug level
		zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
			short := file
			for i := len(file) - 1; i > 0; i-- {
				if file[i] == '/' {
					short = file[i+1:]
					break
				}
			}
			return fmt.Sprintf("%s:%d", short, line)
		}
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	// Logs go to stderr; stdout carries the summary.
	var out io.Writer = os.Stderr
	if format == "console" || format == "auto" && isatty.IsTerminal(os.Stderr.Fd()) {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).
		Level(logLevel).
		With().
		Timestamp().
		Str("service", "planbench")

	if logLevel == zerolog.DebugLevel {
		logger = logger.Caller()
	}

	return logger.Logger()
}
