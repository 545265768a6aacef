package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sweap/internal/config"
	"sweap/internal/dataset"
	"sweap/internal/diff"
	"sweap/internal/eval"
	"sweap/internal/patchset"
	"sweap/internal/runner"
	"sweap/internal/store"
	"sweap/internal/sweagent"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Eval flags
	rawSamplePath     string
	patchPath         string
	outputDir         string
	scriptsDir        string
	dockerhubUsername string
	numWorkers        int
	redo              bool
	blockNetwork      bool
	noStore           bool

	// Patch-set flags
	predPrefix string
	outputPath string

	// Dataset flags
	examplesPerLanguage int

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sweap",
	Short: "sweap - SWE-bench Pro evaluation harness",
	Long: `sweap evaluates model-generated patches against SWE-bench Pro instances.

Each instance runs inside its prebuilt Docker environment: the patch is
applied at the base commit, the selected test files run, and the instance
counts as resolved only when every fail-to-pass and pass-to-pass test
passes.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
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

// evalCmd scores a patch set against the dataset
var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate a patch set against the dataset",
	Long: `Runs every patch in its instance's Docker environment and scores it.

Per-instance reports land in <output_dir>/<instance_id>/; cached reports
are reused unless --redo is set. The aggregate instance_id -> resolved
map is written to <output_dir>/eval_results.json.

Example:
  sweap eval --raw_sample_path samples.csv --patch_path patches.json \
    --output_dir output --scripts_dir scripts --dockerhub_username myuser`,
	RunE: runEval,
}

// gatherCmd collects predictions from per-instance folders
var gatherCmd = &cobra.Command{
	Use:   "gather [predictions-dir]",
	Short: "Gather per-instance prediction files into a patch set",
	Args:  cobra.ExactArgs(1),
	RunE:  runGather,
}

// compileCmd collects predictions from a model's trajectory tree
var compileCmd = &cobra.Command{
	Use:   "compile [base-dir] [model-name]",
	Short: "Compile a model's trajectory predictions into a patch set",
	Long: `Walks <base-dir>/<model-name>/traj/<instance_id>/ looking for .pred
(or .patch) files and writes the collected patches as one JSON patch set.`,
	Args: cobra.ExactArgs(2),
	RunE: runCompile,
}

// goldCmd extracts golden patches from the dataset
var goldCmd = &cobra.Command{
	Use:   "gold",
	Short: "Extract the dataset's golden patches as a patch set",
	RunE:  runGold,
}

// instancesCmd generates the agent instances YAML
var instancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "Generate the agent instances YAML from the dataset",
	RunE:  runInstances,
}

// datasetCmd groups dataset inspection commands
var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Inspect and transform the dataset",
}

var datasetLanguagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "Count instances per repository language",
	RunE:  runDatasetLanguages,
}

var datasetShowCmd = &cobra.Command{
	Use:   "show [instance-id]",
	Short: "Show one instance's metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runDatasetShow,
}

var datasetExamplesCmd = &cobra.Command{
	Use:   "examples [output-dir]",
	Short: "Write curated per-instance example folders",
	Long: `Samples instances per language family (Python, JS/TS, Go) and writes
one folder each with a README, the golden patch, and the test patch,
plus an index README at the root.`,
	Args: cobra.ExactArgs(1),
	RunE: runDatasetExamples,
}

var datasetJoinCmd = &cobra.Command{
	Use:   "join-dockerfiles [dockerfiles-dir]",
	Short: "Join per-instance Dockerfiles into the dataset CSV",
	Long: `Reads <dir>/base_dockerfile/<instance_id>/Dockerfile and
<dir>/instance_dockerfile/<instance_id>/Dockerfile for every instance and
writes the dataset back out with both columns filled.`,
	Args: cobra.ExactArgs(1),
	RunE: runDatasetJoin,
}

// runsCmd groups run history commands
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect past evaluation runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent evaluation runs",
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show one run's per-instance outcomes",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsHistoryCmd = &cobra.Command{
	Use:   "history [instance-id]",
	Short: "Show one instance's outcomes across runs",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsHistory,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "sweap.yaml", "Path to config file")

	// Eval flags (flag names match the historical harness interface)
	evalCmd.Flags().StringVar(&rawSamplePath, "raw_sample_path", "", "Path to the dataset CSV or JSONL (required)")
	evalCmd.Flags().StringVar(&patchPath, "patch_path", "", "Path to the patch set JSON (required)")
	evalCmd.Flags().StringVar(&outputDir, "output_dir", "", "Directory for per-instance reports and eval_results.json (required)")
	evalCmd.Flags().StringVar(&scriptsDir, "scripts_dir", "", "Directory holding per-instance run_script.sh and parser.py (required)")
	evalCmd.Flags().StringVar(&dockerhubUsername, "dockerhub_username", "", "Docker Hub account holding the prebuilt images")
	evalCmd.Flags().IntVar(&numWorkers, "num_workers", 0, "Parallel instance executions (default from config)")
	evalCmd.Flags().BoolVar(&redo, "redo", false, "Re-run instances even when a cached report exists")
	evalCmd.Flags().BoolVar(&blockNetwork, "block_network", false, "Run containers with networking disabled")
	evalCmd.Flags().BoolVar(&noStore, "no_store", false, "Skip recording the run in the history database")
	_ = evalCmd.MarkFlagRequired("raw_sample_path")
	_ = evalCmd.MarkFlagRequired("patch_path")
	_ = evalCmd.MarkFlagRequired("output_dir")
	_ = evalCmd.MarkFlagRequired("scripts_dir")

	gatherCmd.Flags().StringVar(&predPrefix, "prefix", "", "Prefix recorded on gathered patches")
	gatherCmd.Flags().StringVar(&outputPath, "output", "patches.json", "Output patch set path")

	compileCmd.Flags().StringVar(&outputPath, "output", "patches.json", "Output patch set path")

	goldCmd.Flags().StringVar(&rawSamplePath, "raw_sample_path", "", "Path to the dataset CSV or JSONL (required)")
	goldCmd.Flags().StringVar(&predPrefix, "prefix", "gold", "Prefix recorded on golden patches")
	goldCmd.Flags().StringVar(&outputPath, "output", "gold_patches.json", "Output patch set path")
	_ = goldCmd.MarkFlagRequired("raw_sample_path")

	instancesCmd.Flags().StringVar(&rawSamplePath, "raw_sample_path", "", "Path to the dataset CSV or JSONL (required)")
	instancesCmd.Flags().StringVar(&dockerhubUsername, "dockerhub_username", "", "Docker Hub account holding the prebuilt images (required)")
	instancesCmd.Flags().StringVar(&outputPath, "output", "data/instances.yaml", "Output YAML path")
	_ = instancesCmd.MarkFlagRequired("raw_sample_path")
	_ = instancesCmd.MarkFlagRequired("dockerhub_username")

	datasetCmd.PersistentFlags().StringVar(&rawSamplePath, "raw_sample_path", "", "Path to the dataset CSV or JSONL (required)")
	_ = datasetCmd.MarkPersistentFlagRequired("raw_sample_path")
	datasetJoinCmd.Flags().StringVar(&outputPath, "output", "", "Output CSV path (default: overwrite input)")
	datasetExamplesCmd.Flags().IntVar(&examplesPerLanguage, "per_language", 10, "Examples per language family")

	datasetCmd.AddCommand(datasetLanguagesCmd)
	datasetCmd.AddCommand(datasetShowCmd)
	datasetCmd.AddCommand(datasetExamplesCmd)
	datasetCmd.AddCommand(datasetJoinCmd)

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsHistoryCmd)

	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(gatherCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(goldCmd)
	rootCmd.AddCommand(instancesCmd)
	rootCmd.AddCommand(datasetCmd)
	rootCmd.AddCommand(runsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext returns a context cancelled by SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()
	return ctx, cancel
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// runEval is the main entry point: load dataset and patches, execute each
// instance in Docker, score, and persist results.
func runEval(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dockerhubUsername == "" {
		dockerhubUsername = cfg.Eval.DockerhubUsername
	}
	if dockerhubUsername == "" {
		return fmt.Errorf("dockerhub username not set (flag --dockerhub_username or config)")
	}
	workers := numWorkers
	if workers <= 0 {
		workers = cfg.Eval.NumWorkers
	}

	ds, err := dataset.Load(rawSamplePath)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	patches, err := patchset.Load(patchPath)
	if err != nil {
		return fmt.Errorf("failed to load patch set: %w", err)
	}
	logger.Info("Starting evaluation",
		zap.Int("instances", ds.Len()),
		zap.Int("patches", len(patches)),
		zap.Int("workers", workers))

	runnerCfg := runner.Config{
		Timeout:     cfg.GetContainerTimeout(),
		CPUQuota:    cfg.Docker.CPUQuota,
		Memory:      cfg.Docker.Memory,
		Platform:    cfg.Docker.Platform,
		PullTimeout: cfg.GetPullTimeout(),
	}
	dockerRunner := runner.NewDockerRunner(runnerCfg, logger)
	if !dockerRunner.IsAvailable() {
		return fmt.Errorf("docker is not available on this host")
	}

	evaluator := eval.New(ds, dockerRunner, eval.Options{
		OutputDir:     outputDir,
		ScriptsDir:    scriptsDir,
		DockerhubUser: dockerhubUsername,
		NumWorkers:    workers,
		Redo:          redo,
		BlockNetwork:  blockNetwork || cfg.Docker.BlockNetwork,
	}, logger)

	var history *store.Store
	runID := uuid.NewString()
	if !noStore && !cfg.Store.Disabled {
		history, err = store.Open(cfg.Store.DatabasePath)
		if err != nil {
			logger.Warn("run history disabled", zap.Error(err))
		} else {
			defer history.Close()
			if err := history.BeginRun(runID, rawSamplePath, patchPath, time.Now()); err != nil {
				logger.Warn("failed to record run start", zap.Error(err))
				history = nil
			}
		}
	}

	report, err := evaluator.Run(ctx, patches)
	if err != nil {
		return err
	}

	if err := eval.WriteResults(outputDir, report); err != nil {
		return err
	}

	if history != nil {
		for _, res := range report.Results {
			rec := store.InstanceRecord{
				RunID:      runID,
				InstanceID: res.InstanceID,
				Prefix:     res.Prefix,
				Resolved:   res.Resolved,
				Cached:     res.Cached,
				Error:      res.Error,
				Duration:   res.Duration,
			}
			if err := history.RecordInstance(rec); err != nil {
				logger.Warn("failed to record instance result",
					zap.String("instance_id", res.InstanceID), zap.Error(err))
			}
		}
		if err := history.FinishRun(runID, time.Now(),
			len(report.Results), report.Resolved(), report.Accuracy()); err != nil {
			logger.Warn("failed to record run finish", zap.Error(err))
		}
	}

	fmt.Printf("Evaluated %d instances: %d resolved (accuracy %.4f)\n",
		len(report.Results), report.Resolved(), report.Accuracy())
	if len(report.Missing) > 0 {
		fmt.Printf("Skipped %d patches whose instances were not in the dataset\n", len(report.Missing))
	}
	return nil
}

func runGather(cmd *cobra.Command, args []string) error {
	patches, err := patchset.Gather(args[0], predPrefix, logger)
	if err != nil {
		return err
	}
	if err := patchset.Save(outputPath, patches); err != nil {
		return err
	}
	reportMalformed(patches)
	fmt.Printf("Gathered %d patches into %s\n", len(patches), outputPath)
	return nil
}

// reportMalformed warns about patches whose diff text does not parse.
// They are kept in the set: the container's git apply has the final say.
func reportMalformed(patches []*patchset.Patch) {
	for _, p := range patches {
		if _, err := diff.Parse(p.Diff()); err != nil {
			logger.Warn("patch does not look like a unified diff",
				zap.String("instance_id", p.InstanceID), zap.Error(err))
		}
	}
}

func runCompile(cmd *cobra.Command, args []string) error {
	patches, err := patchset.Compile(args[0], args[1], logger)
	if err != nil {
		return err
	}
	if err := patchset.Save(outputPath, patches); err != nil {
		return err
	}
	reportMalformed(patches)
	fmt.Printf("Compiled %d patches for %s into %s\n", len(patches), args[1], outputPath)
	return nil
}

func runGold(cmd *cobra.Command, args []string) error {
	ds, err := dataset.Load(rawSamplePath)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	patches := patchset.ExtractGold(ds, predPrefix, logger)
	if err := patchset.Save(outputPath, patches); err != nil {
		return err
	}
	fmt.Printf("Extracted %d golden patches into %s\n", len(patches), outputPath)
	return nil
}

func runInstances(cmd *cobra.Command, args []string) error {
	ds, err := dataset.Load(rawSamplePath)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	instances, err := sweagent.Generate(ds, dockerhubUsername)
	if err != nil {
		return err
	}
	if err := sweagent.Write(instances, outputPath); err != nil {
		return err
	}
	fmt.Printf("Wrote %d instances to %s\n", len(instances), outputPath)
	return nil
}

func runDatasetLanguages(cmd *cobra.Command, args []string) error {
	ds, err := dataset.Load(rawSamplePath)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	census := ds.LanguageCensus()
	languages := make([]string, 0, len(census))
	for lang := range census {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	for _, lang := range languages {
		fmt.Printf("%-12s %d\n", lang, census[lang])
	}
	return nil
}

func runDatasetShow(cmd *cobra.Command, args []string) error {
	ds, err := dataset.Load(rawSamplePath)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	in := ds.Get(args[0])
	if in == nil {
		return fmt.Errorf("instance %q not in dataset", args[0])
	}
	fmt.Printf("instance_id:  %s\n", in.InstanceID)
	fmt.Printf("repo:         %s (%s)\n", in.Repo, in.RepoLanguage)
	fmt.Printf("base_commit:  %s\n", in.BaseCommit)
	fmt.Printf("fail_to_pass: %d tests\n", len(in.FailToPass))
	fmt.Printf("pass_to_pass: %d tests\n", len(in.PassToPass))
	fmt.Printf("test files:   %v\n", []string(in.SelectedTestFilesToRun))
	if stats, err := diff.Parse(in.Patch); err == nil && len(stats.Files) > 0 {
		fmt.Printf("golden patch: %s\n", stats)
	}
	return nil
}

func runDatasetJoin(cmd *cobra.Command, args []string) error {
	ds, err := dataset.Load(rawSamplePath)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	missingBase, missingInstance, err := ds.JoinDockerfiles(args[0])
	if err != nil {
		return err
	}
	out := outputPath
	if out == "" {
		out = rawSamplePath
	}
	if err := ds.SaveCSV(out); err != nil {
		return err
	}
	fmt.Printf("Joined dockerfiles for %d instances into %s\n", ds.Len(), out)
	if missingBase > 0 || missingInstance > 0 {
		fmt.Printf("Missing: %d base, %d instance dockerfiles\n", missingBase, missingInstance)
	}
	return nil
}

func runDatasetExamples(cmd *cobra.Command, args []string) error {
	ds, err := dataset.Load(rawSamplePath)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	n, err := ds.WriteExamples(args[0], examplesPerLanguage)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d example folders to %s\n", n, args[0])
	return nil
}

func openHistory() (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Store.DatabasePath)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	history, err := openHistory()
	if err != nil {
		return err
	}
	defer history.Close()

	runs, err := history.ListRuns(20)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}
	for _, r := range runs {
		finished := "running"
		if !r.FinishedAt.IsZero() {
			finished = r.FinishedAt.Format(time.RFC3339)
		}
		fmt.Printf("%s  %s  %d/%d resolved (%.4f)  %s\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.Resolved, r.Total, r.Accuracy, finished)
	}
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	history, err := openHistory()
	if err != nil {
		return err
	}
	defer history.Close()

	results, err := history.RunResults(args[0])
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no results recorded for run %q", args[0])
	}
	for _, rec := range results {
		printRecord(rec, rec.InstanceID)
	}
	return nil
}

func runRunsHistory(cmd *cobra.Command, args []string) error {
	history, err := openHistory()
	if err != nil {
		return err
	}
	defer history.Close()

	records, err := history.InstanceHistory(args[0])
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no recorded outcomes for instance %q", args[0])
	}
	for _, rec := range records {
		printRecord(rec, rec.RunID)
	}
	return nil
}

func printRecord(rec store.InstanceRecord, label string) {
	status := "unresolved"
	if rec.Resolved {
		status = "resolved"
	}
	line := fmt.Sprintf("%-12s %s  (%s)", status, label, rec.Duration.Round(time.Second))
	if rec.Cached {
		line += "  [cached]"
	}
	if rec.Error != "" {
		line += "  error: " + rec.Error
	}
	fmt.Println(line)
}
