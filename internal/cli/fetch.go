package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/glorpus-work/fetchmirror/internal/logger"
	"github.com/glorpus-work/fetchmirror/pkg/auth"
	"github.com/glorpus-work/fetchmirror/pkg/cache"
	"github.com/glorpus-work/fetchmirror/pkg/config"
	"github.com/glorpus-work/fetchmirror/pkg/download"
	"github.com/glorpus-work/fetchmirror/pkg/index"
	"github.com/glorpus-work/fetchmirror/pkg/manifest"
	"github.com/glorpus-work/fetchmirror/pkg/metrics"
	"github.com/glorpus-work/fetchmirror/pkg/model"
	"github.com/glorpus-work/fetchmirror/pkg/orchestrator"
	"github.com/glorpus-work/fetchmirror/pkg/scheduler"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type fetchFlags struct {
	minBatch       int
	maxBatch       int
	minDelay       float64
	maxDelay       float64
	maxConcurrent  int
	contentKind    string
	httpMethod     string
	stalenessIndex string
	seed           uint64
	rateLimit      float64
	timeout        float64
	dryRun         bool
	metricsFile    string
}

// NewFetchCmd creates the fetch command.
func NewFetchCmd() *cobra.Command {
	return newFetchCmd(&fetchFlags{})
}

func newFetchCmd(flags *fetchFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch MANIFEST",
		Short: "Bring the mirror up to date with a manifest",
		Long: `Read a tab-separated manifest of (locator, destination) pairs, skip
artifacts that are already valid and current, and fetch the rest in
randomized, paced batches. Per-task failures are reported in the summary
and do not change the exit status.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, args[0], flags, flags.dryRun)
		},
	}

	defaults := config.DefaultConfig()
	cmd.Flags().IntVar(&flags.minBatch, "min-batch-size", defaults.Fetch.MinBatchSize, "Minimum number of tasks per batch")
	cmd.Flags().IntVar(&flags.maxBatch, "max-batch-size", defaults.Fetch.MaxBatchSize, "Maximum number of tasks per batch")
	cmd.Flags().Float64Var(&flags.minDelay, "min-delay", defaults.Fetch.MinDelay.Seconds(), "Minimum pause between batches in seconds")
	cmd.Flags().Float64Var(&flags.maxDelay, "max-delay", defaults.Fetch.MaxDelay.Seconds(), "Maximum pause between batches in seconds")
	cmd.Flags().IntVar(&flags.maxConcurrent, "max-concurrent", defaults.Fetch.MaxConcurrent, "Maximum number of in-flight fetches")
	cmd.Flags().StringVar(&flags.contentKind, "content-kind", defaults.Fetch.ContentKind, "Expected content kind (structured, geometry)")
	cmd.Flags().StringVar(&flags.httpMethod, "http-method", defaults.Fetch.HTTPMethod, "HTTP method used to fetch resources (GET, POST)")
	cmd.Flags().StringVar(&flags.stalenessIndex, "staleness-index", "", "Path of the optional staleness index")
	cmd.Flags().Uint64Var(&flags.seed, "seed", 0, "Seed for batch selection and pacing (0 seeds from the clock)")
	cmd.Flags().Float64Var(&flags.rateLimit, "rate-limit", 0, "Maximum requests per second (0 disables)")
	cmd.Flags().Float64Var(&flags.timeout, "timeout", defaults.Fetch.Timeout.Seconds(), "Per-request timeout in seconds")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Classify tasks without fetching anything")
	cmd.Flags().StringVar(&flags.metricsFile, "metrics-file", "", "Write run metrics to this node-exporter textfile")

	return cmd
}

// NewPlanCmd creates the plan command, a dry run of fetch.
func NewPlanCmd() *cobra.Command {
	flags := &fetchFlags{}

	cmd := &cobra.Command{
		Use:   "plan MANIFEST",
		Short: "Show what fetch would do without touching the network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, args[0], flags, true)
		},
	}

	cmd.Flags().StringVar(&flags.contentKind, "content-kind", "", "Expected content kind (structured, geometry)")
	cmd.Flags().StringVar(&flags.stalenessIndex, "staleness-index", "", "Path of the optional staleness index")

	return cmd
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// apply copies every flag the user set onto cfg, then revalidates it.
func (f *fetchFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("min-batch-size") {
		cfg.Fetch.MinBatchSize = f.minBatch
	}
	if changed("max-batch-size") {
		cfg.Fetch.MaxBatchSize = f.maxBatch
	}
	if changed("min-delay") {
		cfg.Fetch.MinDelay = seconds(f.minDelay)
	}
	if changed("max-delay") {
		cfg.Fetch.MaxDelay = seconds(f.maxDelay)
	}
	if changed("max-concurrent") {
		cfg.Fetch.MaxConcurrent = f.maxConcurrent
	}
	if changed("content-kind") {
		cfg.Fetch.ContentKind = f.contentKind
	}
	if changed("http-method") {
		cfg.Fetch.HTTPMethod = strings.ToUpper(f.httpMethod)
	}
	if changed("staleness-index") {
		cfg.Index.Path = f.stalenessIndex
	}
	if changed("seed") {
		cfg.Fetch.Seed = f.seed
	}
	if changed("rate-limit") {
		cfg.Fetch.RateLimit = f.rateLimit
	}
	if changed("timeout") {
		cfg.Fetch.Timeout = seconds(f.timeout)
	}
	if changed("metrics-file") {
		cfg.Settings.MetricsFile = f.metricsFile
	}
	return cfg.Validate()
}

func runFetch(cmd *cobra.Command, manifestPath string, flags *fetchFlags, dryRun bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := flags.apply(cmd, cfg); err != nil {
		return err
	}

	runID := uuid.NewString()
	logger.SetDefaultFields(logger.Fields{"run_id": runID})

	ctx := cmd.Context()
	parsed, err := manifest.ReadFile(ctx, manifestPath, cfg.ContentKind())
	if err != nil {
		return err
	}
	logger.Info("Read manifest", logger.Fields{
		"path":     manifestPath,
		"tasks":    len(parsed.Tasks),
		"warnings": len(parsed.Warnings),
	})

	idx, _ := index.Load(ctx, cfg.Index.Path, indexOptions(cfg))

	orch := &orchestrator.Orchestrator{
		Inspector: cache.NewValidator(cfg.Cache.TimestampFields),
	}
	if !dryRun {
		authenticator, err := auth.New(cfg.Fetch.Auth, nil)
		if err != nil {
			return err
		}
		dlOpts := downloadOptions(cfg)
		dlOpts.Auth = authenticator
		orch.DL = download.NewWorker(dlOpts)

		scripts, err := loadHooks(cfg)
		if err != nil {
			return err
		}
		if scripts != nil {
			orch.Scripts = scripts
		}
		if cfg.Settings.MetricsFile != "" {
			orch.Metrics = metrics.NewCollector()
		}
	}

	res, err := orch.Run(ctx, parsed.Tasks, idx, orchestrator.Options{
		Scheduler: scheduler.Config{
			MinBatch:      cfg.Fetch.MinBatchSize,
			MaxBatch:      cfg.Fetch.MaxBatchSize,
			MinDelay:      cfg.Fetch.MinDelay,
			MaxDelay:      cfg.Fetch.MaxDelay,
			MaxConcurrent: cfg.Fetch.MaxConcurrent,
		},
		Seed:      cfg.Fetch.Seed,
		DryRun:    dryRun,
		SweepTemp: true,
		RunID:     runID,
	})
	if err != nil {
		return err
	}

	if orch.Metrics != nil {
		if err := orch.Metrics.WriteTextfile(cfg.Settings.MetricsFile); err != nil {
			logger.Warn("Failed to write metrics", logger.Fields{"path": cfg.Settings.MetricsFile, "error": err.Error()})
		}
	}

	out := cmd.OutOrStdout()
	if dryRun {
		return writePlan(out, res, cfg.Settings.OutputFormat)
	}

	logger.Info("Run finished", logger.Fields{
		"duration":    res.Duration.String(),
		"batches":     res.Batches,
		"interrupted": res.Interrupted,
	})
	if cfg.Settings.OutputFormat == "json" {
		return res.Summary.WriteJSON(out)
	}
	return res.Summary.WriteText(out)
}

func downloadOptions(cfg *config.Config) download.Options {
	return download.Options{
		Method:             cfg.Fetch.HTTPMethod,
		Timeout:            cfg.Fetch.Timeout,
		ConnectTimeout:     cfg.Fetch.ConnectTimeout,
		UserAgent:          cfg.Fetch.UserAgent,
		RateLimit:          cfg.Fetch.RateLimit,
		RateBurst:          cfg.Fetch.RateBurst,
		InsecureSkipVerify: cfg.Fetch.InsecureSkipVerify,
		MaxBodyBytes:       cfg.Fetch.MaxBodyBytes,
	}
}

type planCounts struct {
	Fetch        int `json:"fetch"`
	ForceRefresh int `json:"force_refresh"`
	Skip         int `json:"skip"`
	Total        int `json:"total"`
}

func writePlan(w io.Writer, res *orchestrator.Result, format string) error {
	counts := planCounts{
		Fetch:        res.Plan.Count(model.ClassFetch),
		ForceRefresh: res.Plan.Count(model.ClassForceRefresh),
		Skip:         res.Plan.Count(model.ClassSkip),
		Total:        len(res.Plan.Decisions),
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(counts)
	}

	_, err := fmt.Fprintf(w, "Plan:\n  Fetch: %d\n  Force-refresh: %d\n  Skip: %d\n  Total: %d\n",
		counts.Fetch, counts.ForceRefresh, counts.Skip, counts.Total)
	return err
}
