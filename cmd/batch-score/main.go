// cmd/batch-score/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"inclusion-scoring/internal/batch"
	"inclusion-scoring/internal/common/aws"
	"inclusion-scoring/internal/common/config"
	"inclusion-scoring/internal/common/database"
	"inclusion-scoring/internal/common/logger"
	"inclusion-scoring/internal/modelregistry"
	"inclusion-scoring/internal/predictor"
	"inclusion-scoring/internal/store"
)

// flags holds the command line overrides of the batch config section.
type flags struct {
	configPath   string
	input        string
	output       string
	modelPath    string
	modelFormat  string
	modelName    string
	modelVersion string
	labelColumns []string
	target       string
	outputColumn string
	index        bool
	verbose      bool
}

var opts flags

var rootCmd = &cobra.Command{
	Use:   "batch-score",
	Short: "Score a CSV file with a registered model",
	Long: `Reads the input CSV, drops the label columns, predicts one label per row
and writes the input columns plus the scored label column to the output CSV.

The model is taken from --model when given, otherwise it is resolved by name
through the configured model registry.`,
	SilenceUsage: true,
	RunE:         runBatchScore,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "config file (default: configs/config.yaml)")
	f.StringVarP(&opts.input, "input", "i", "", "input CSV path")
	f.StringVarP(&opts.output, "output", "o", "", "output CSV path")
	f.StringVar(&opts.modelPath, "model", "", "model artifact path, bypasses the registry")
	f.StringVar(&opts.modelFormat, "format", "", "model artifact format")
	f.StringVar(&opts.modelName, "model-name", "", "registry model name")
	f.StringVar(&opts.modelVersion, "model-version", "", "registry model version (default: latest)")
	f.StringSliceVar(&opts.labelColumns, "label-columns", nil, "columns excluded from the features")
	f.StringVar(&opts.target, "target", "", "ground-truth column used for the accuracy summary")
	f.StringVar(&opts.outputColumn, "output-column", "", "name of the appended prediction column")
	f.BoolVar(&opts.index, "index", false, "index the run summary in Elasticsearch")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging, includes a feature preview")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// applyFlags overlays the flags that were set on the batch config.
func applyFlags(cmd *cobra.Command, cfg *config.Config, o flags) {
	set := func(name string) bool { return cmd.Flags().Changed(name) }

	if set("input") {
		cfg.Batch.InputPath = o.input
	}
	if set("output") {
		cfg.Batch.OutputPath = o.output
	}
	if set("model") {
		cfg.Batch.ModelPath = o.modelPath
	}
	if set("format") {
		cfg.Batch.ModelFormat = o.modelFormat
	}
	if set("model-name") {
		cfg.Model.Name = o.modelName
	}
	if set("model-version") {
		cfg.Model.Version = o.modelVersion
	}
	if set("label-columns") {
		cfg.Batch.LabelColumns = o.labelColumns
	}
	if set("target") {
		cfg.Batch.TargetColumn = o.target
	}
	if set("output-column") {
		cfg.Batch.OutputColumn = o.outputColumn
	}
	if set("index") {
		cfg.Batch.IndexResults = o.index
	}
	if set("verbose") && o.verbose {
		cfg.Logging.Level = "debug"
	}
}

// modelSpec returns the explicit artifact from the batch config, or resolves
// cfg.Model through the registry.
func modelSpec(ctx context.Context, cfg *config.Config, db modelregistry.Querier) (predictor.Spec, error) {
	if cfg.Batch.ModelPath != "" {
		return predictor.Spec{
			Name:   cfg.Model.Name,
			Format: cfg.Batch.ModelFormat,
			Path:   cfg.Batch.ModelPath,
		}, nil
	}
	resolver, err := modelregistry.New(cfg.Model.Registry, db)
	if err != nil {
		return predictor.Spec{}, err
	}
	entry, err := resolver.Resolve(ctx, cfg.Model.Name, cfg.Model.Version)
	if err != nil {
		return predictor.Spec{}, err
	}
	return modelregistry.Spec(entry), nil
}

func runBatchScore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	applyFlags(cmd, cfg, opts)

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, "stderr")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runnerOpts []batch.Option
	var db modelregistry.Querier

	if cfg.Database.Postgres.Enabled {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("postgres schema migration failed: %w", err)
		}
		db = pg.DB
		runnerOpts = append(runnerOpts, batch.WithAudit(store.NewPostgresAudit(pg.DB)))
	}

	if cfg.Batch.IndexResults && cfg.Database.Elasticsearch.Enabled {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		runnerOpts = append(runnerOpts, batch.WithIndexer(store.NewESIndexer(es.Client, es.Index)))
	}

	region := cfg.Notifications.AWS.Region
	if cfg.Notifications.SNS.Enabled {
		client, err := aws.NewSNSClient(ctx, region)
		if err != nil {
			return err
		}
		runnerOpts = append(runnerOpts, batch.WithNotifier(batch.NewSNSNotifier(client, cfg.Notifications.SNS.TopicARN)))
	}
	if cfg.Notifications.SES.Enabled {
		client, err := aws.NewSESClient(ctx, region)
		if err != nil {
			return err
		}
		runnerOpts = append(runnerOpts, batch.WithNotifier(
			batch.NewSESNotifier(client, cfg.Notifications.SES.FromEmail, cfg.Notifications.SES.Recipients)))
	}

	spec, err := modelSpec(ctx, cfg, db)
	if err != nil {
		return err
	}

	runner := batch.NewRunner(predictor.NewFileLoader(), log, runnerOpts...)
	summary, err := runner.Run(ctx, batch.Job{
		InputPath:    cfg.Batch.InputPath,
		OutputPath:   cfg.Batch.OutputPath,
		Model:        spec,
		LabelColumns: cfg.Batch.LabelColumns,
		TargetColumn: cfg.Batch.TargetColumn,
		OutputColumn: cfg.Batch.OutputColumn,
	})
	if err != nil {
		zapLog.Error("batch run failed", zap.Error(err))
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
