// Package main provides the CLI entrypoint for rtscope.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/verte-zerg/rtscope/internal/chart"
	"github.com/verte-zerg/rtscope/internal/config"
	"github.com/verte-zerg/rtscope/internal/export"
	"github.com/verte-zerg/rtscope/internal/model"
	"github.com/verte-zerg/rtscope/internal/resultsui"
	"github.com/verte-zerg/rtscope/internal/stats"
	"github.com/verte-zerg/rtscope/internal/store"
	"github.com/verte-zerg/rtscope/internal/trials"
)

const (
	defaultDir          = "."
	defaultJobs         = 1
	defaultHistoryLimit = 20
	defaultConfidence   = 0.95
	terminalPlotHeight  = 12
)

var (
	verbose bool
	logger  *zap.Logger

	inputDir      string
	inputExts     []string
	inputIDSep    string
	inputCorrect  string
	inputRT       string
	inputOnset    string
	inputLevel    string
	inputCorrectV string

	analysisDelay        float64
	analysisMaxRT        float64
	analysisOutlierK     float64
	analysisStdDev       string
	analysisLatency      string
	analysisSortLevels   bool
	analysisZScore       float64
	analysisConfidence   float64
	analysisSignificance float64
	analysisLeft         []int
	analysisRight        []int
	analysisJobs         int
	analysisKeepGoing    bool

	plotTitle  string
	plotXLabel string
	plotYLabel string
	plotYMin   float64
	plotYMax   float64
	plotWidth  int
	plotHeight int
	plotPNG    string

	outputExport      string
	outputArchive     bool
	outputInteractive bool

	historyLimit int
	historyRun   string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "rtscope [dir]",
		Short:             "Reaction-time analysis of per-participant trial logs",
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		SilenceErrors:     false,
		PersistentPreRunE: initLogger,
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if logger != nil {
				// Best-effort sync.
				_ = logger.Sync()
			}
		},
		RunE: runAnalyzeCmd,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging and per-participant tables")

	defaults := stats.DefaultAnalysis()
	in := trials.DefaultInput()
	plot := stats.DefaultPlot()
	segments := stats.DefaultSegments()

	flags := rootCmd.Flags()
	flags.StringVar(&inputDir, "dir", defaultDir, "directory of trial logs")
	flags.StringSliceVar(&inputExts, "extensions", in.Extensions, "trial log file extensions")
	flags.StringVar(&inputIDSep, "id-separator", in.IDSeparator, "file name separator before the participant ID")
	flags.StringVar(&inputCorrect, "correct-column", in.CorrectCol, "correctness column")
	flags.StringVar(&inputRT, "rt-column", in.RTCol, "reaction timestamp column")
	flags.StringVar(&inputOnset, "onset-column", in.OnsetCol, "stimulus onset column")
	flags.StringVar(&inputLevel, "level-column", in.LevelCol, "independent variable column")
	flags.StringVar(&inputCorrectV, "correct-value", in.CorrectValue, "value marking a correct trial")

	flags.Float64Var(&analysisDelay, "delay-ms", defaults.DelayMs, "device delay subtracted from every reaction time")
	flags.Float64Var(&analysisMaxRT, "max-rt-ms", defaults.MaxRTMs, "drop trials with elapsed time at or above this")
	flags.Float64Var(&analysisOutlierK, "outlier-k", defaults.OutlierK, "drop values further than k standard deviations from the mean")
	flags.StringVar(&analysisStdDev, "stddev", defaults.StdDev, "standard deviation estimator (population|sample)")
	flags.StringVar(&analysisLatency, "latency", defaults.Latency, "dependent variable (adjusted|raw)")
	flags.BoolVar(&analysisSortLevels, "sort-levels", false, "order conditions numerically instead of first-seen")
	flags.Float64Var(&analysisZScore, "z-score", defaults.ZScore, "confidence interval multiplier")
	flags.Float64Var(&analysisConfidence, "confidence", defaultConfidence, "confidence level; when set, overrides --z-score")
	flags.Float64Var(&analysisSignificance, "significance", defaults.Significance, "significance threshold recorded with the run")
	flags.IntSliceVar(&analysisLeft, "left", segments[0].Indices, "condition positions of the left segment")
	flags.IntSliceVar(&analysisRight, "right", segments[1].Indices, "condition positions of the right segment")
	flags.IntVar(&analysisJobs, "jobs", defaultJobs, "participants analyzed in parallel")
	flags.BoolVar(&analysisKeepGoing, "keep-going", false, "skip participants whose data cannot be analyzed")

	flags.StringVar(&plotTitle, "title", plot.Title, "chart title")
	flags.StringVar(&plotXLabel, "x-label", plot.XLabel, "chart x axis label")
	flags.StringVar(&plotYLabel, "y-label", plot.YLabel, "chart y axis label")
	flags.Float64Var(&plotYMin, "y-min", plot.YMin, "chart y axis minimum")
	flags.Float64Var(&plotYMax, "y-max", plot.YMax, "chart y axis maximum")
	flags.IntVar(&plotWidth, "width", plot.Width, "image width in pixels")
	flags.IntVar(&plotHeight, "height", plot.Height, "image height in pixels")
	flags.StringVar(&plotPNG, "png", "", "write the chart to this .png or .svg file")

	flags.StringVar(&outputExport, "export", "", "write a .yaml or .json report (- for stdout)")
	flags.BoolVar(&outputArchive, "archive", true, "record the run in the history database")
	flags.BoolVarP(&outputInteractive, "interactive", "i", false, "browse results in a TUI")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newHistoryCmd())

	return rootCmd
}

func initLogger(_ *cobra.Command, _ []string) error {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	built, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = built
	return nil
}

func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg, err := resolveConfig(cmd, fileCfg)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.Input.Dir = args[0]
	}
	if err := stats.ValidateAnalysis(cfg.Analysis); err != nil {
		return err
	}
	if err := stats.ValidatePlot(cfg.Plot); err != nil {
		return err
	}

	participants, err := trials.LoadDir(cfg.Input.Dir, cfg.Input)
	if err != nil {
		return fmt.Errorf("failed to load trials: %w", err)
	}
	logger.Debug("trial logs loaded", zap.String("dir", cfg.Input.Dir), zap.Int("participants", len(participants)))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	results, err := stats.Analyze(ctx, participants, cfg.Analysis, logger)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if err := stats.RenderR2Lines(out, results); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if plotPNG != "" {
		if err := chart.WriteFile(plotPNG, results, cfg.Plot, cfg.Analysis.ZScore); err != nil {
			return fmt.Errorf("failed to write chart: %w", err)
		}
		logger.Debug("chart written", zap.String("path", plotPNG))
	}

	report := stats.BuildReport(cfg.Input.Dir, cfg.Analysis, results, time.Now())
	if outputExport != "" {
		if err := export.WriteFile(outputExport, report); err != nil {
			return fmt.Errorf("failed to export report: %w", err)
		}
	}
	if outputArchive {
		archiveRun(ctx, report.RunRecord())
	}

	if outputInteractive {
		ui := resultsui.NewModel(results, cfg)
		program := tea.NewProgram(ui, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run results TUI: %w", err)
		}
		return nil
	}

	if _, err := fmt.Fprintln(out, ""); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if verbose {
		if err := stats.RenderSummary(out, results); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
		for _, r := range results {
			if err := stats.RenderConditionTable(out, r, cfg.Analysis.ZScore); err != nil {
				return fmt.Errorf("failed to write conditions: %w", err)
			}
		}
	}
	if err := stats.RenderMeansPlot(out, results, cfg.Plot, 0, terminalPlotHeight, false); err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	return nil
}

// archiveRun stores the run. A broken archive never fails the analysis.
func archiveRun(ctx context.Context, rec model.RunRecord) {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		logger.Warn("failed to open history db", zap.Error(err))
		return
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	id, err := st.SaveRun(ctx, rec)
	if err != nil {
		logger.Warn("failed to archive run", zap.Error(err))
		return
	}
	logger.Debug("run archived", zap.String("id", id))
}

func resolveConfig(cmd *cobra.Command, fileCfg config.FileConfig) (model.Config, error) {
	applyStringConfig(cmd, "dir", &inputDir, fileCfg.Input.Dir)
	applyStringSliceConfig(cmd, "extensions", &inputExts, fileCfg.Input.Extensions)
	applyStringConfig(cmd, "id-separator", &inputIDSep, fileCfg.Input.IDSeparator)
	applyStringConfig(cmd, "correct-column", &inputCorrect, fileCfg.Input.CorrectCol)
	applyStringConfig(cmd, "rt-column", &inputRT, fileCfg.Input.RTCol)
	applyStringConfig(cmd, "onset-column", &inputOnset, fileCfg.Input.OnsetCol)
	applyStringConfig(cmd, "level-column", &inputLevel, fileCfg.Input.LevelCol)
	applyStringConfig(cmd, "correct-value", &inputCorrectV, fileCfg.Input.CorrectValue)

	applyFloatConfig(cmd, "delay-ms", &analysisDelay, fileCfg.Analysis.DelayMs)
	applyFloatConfig(cmd, "max-rt-ms", &analysisMaxRT, fileCfg.Analysis.MaxRTMs)
	applyFloatConfig(cmd, "outlier-k", &analysisOutlierK, fileCfg.Analysis.OutlierK)
	applyStringConfig(cmd, "stddev", &analysisStdDev, fileCfg.Analysis.StdDev)
	applyStringConfig(cmd, "latency", &analysisLatency, fileCfg.Analysis.Latency)
	applyBoolConfig(cmd, "sort-levels", &analysisSortLevels, fileCfg.Analysis.SortLevels)
	applyFloatConfig(cmd, "z-score", &analysisZScore, fileCfg.Analysis.ZScore)
	applyFloatConfig(cmd, "confidence", &analysisConfidence, fileCfg.Analysis.Confidence)
	applyFloatConfig(cmd, "significance", &analysisSignificance, fileCfg.Analysis.Significance)
	applyIntSliceConfig(cmd, "left", &analysisLeft, fileCfg.Analysis.Left)
	applyIntSliceConfig(cmd, "right", &analysisRight, fileCfg.Analysis.Right)
	applyIntConfig(cmd, "jobs", &analysisJobs, fileCfg.Analysis.Jobs)
	applyBoolConfig(cmd, "keep-going", &analysisKeepGoing, fileCfg.Analysis.KeepGoing)

	applyStringConfig(cmd, "title", &plotTitle, fileCfg.Plot.Title)
	applyStringConfig(cmd, "x-label", &plotXLabel, fileCfg.Plot.XLabel)
	applyStringConfig(cmd, "y-label", &plotYLabel, fileCfg.Plot.YLabel)
	applyFloatConfig(cmd, "y-min", &plotYMin, fileCfg.Plot.YMin)
	applyFloatConfig(cmd, "y-max", &plotYMax, fileCfg.Plot.YMax)
	applyIntConfig(cmd, "width", &plotWidth, fileCfg.Plot.Width)
	applyIntConfig(cmd, "height", &plotHeight, fileCfg.Plot.Height)
	applyStringConfig(cmd, "png", &plotPNG, fileCfg.Plot.PNG)

	applyStringConfig(cmd, "export", &outputExport, fileCfg.Output.Export)
	applyBoolConfig(cmd, "archive", &outputArchive, fileCfg.Output.Archive)

	zScore := analysisZScore
	if confidenceSet(cmd, fileCfg) {
		z, err := stats.ZFromConfidence(analysisConfidence)
		if err != nil {
			return model.Config{}, err
		}
		zScore = z
	}

	cfg := model.Config{
		Input: model.InputConfig{
			Dir:          inputDir,
			Extensions:   inputExts,
			IDSeparator:  inputIDSep,
			CorrectCol:   inputCorrect,
			RTCol:        inputRT,
			OnsetCol:     inputOnset,
			LevelCol:     inputLevel,
			CorrectValue: inputCorrectV,
		},
		Analysis: model.AnalysisConfig{
			DelayMs:      analysisDelay,
			MaxRTMs:      analysisMaxRT,
			OutlierK:     analysisOutlierK,
			StdDev:       analysisStdDev,
			Latency:      analysisLatency,
			SortLevels:   analysisSortLevels,
			ZScore:       zScore,
			Significance: analysisSignificance,
			Segments: []model.SegmentSpec{
				{Name: stats.SegmentLeft, Indices: analysisLeft},
				{Name: stats.SegmentRight, Indices: analysisRight},
			},
			Jobs:      analysisJobs,
			KeepGoing: analysisKeepGoing,
		},
		Plot: model.PlotConfig{
			Title:  plotTitle,
			XLabel: plotXLabel,
			YLabel: plotYLabel,
			YMin:   plotYMin,
			YMax:   plotYMax,
			Width:  plotWidth,
			Height: plotHeight,
		},
	}
	if err := validateInput(cfg.Input); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

// confidenceSet reports whether a confidence level was given explicitly.
// The flag default alone never overrides --z-score.
func confidenceSet(cmd *cobra.Command, fileCfg config.FileConfig) bool {
	if cmd.Flags().Changed("confidence") {
		return true
	}
	return fileCfg.Analysis.Confidence != nil && !cmd.Flags().Changed("z-score")
}

func validateInput(in model.InputConfig) error {
	if strings.TrimSpace(in.Dir) == "" {
		return fmt.Errorf("--dir must not be empty")
	}
	if len(in.Extensions) == 0 {
		return fmt.Errorf("--extensions must not be empty")
	}
	if in.IDSeparator == "" {
		return fmt.Errorf("--id-separator must not be empty")
	}
	columns := []struct{ flag, value string }{
		{"--correct-column", in.CorrectCol},
		{"--rt-column", in.RTCol},
		{"--onset-column", in.OnsetCol},
		{"--level-column", in.LevelCol},
	}
	for _, col := range columns {
		if strings.TrimSpace(col.value) == "" {
			return fmt.Errorf("%s must not be empty", col.flag)
		}
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived runs",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().IntVar(&historyLimit, "limit", defaultHistoryLimit, "number of runs to list (0 for all)")
	cmd.Flags().StringVar(&historyRun, "run", "", "show one run by ID")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	if historyLimit < 0 {
		return fmt.Errorf("--limit must be >= 0")
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	if historyRun != "" {
		run, err := st.GetRun(ctx, historyRun)
		if err != nil {
			if errors.Is(err, store.ErrRunNotFound) {
				logErrln("List run IDs with: rtscope history")
			}
			return fmt.Errorf("failed to load run: %w", err)
		}
		return stats.RenderRun(out, run)
	}
	runs, err := st.ListRuns(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	return stats.RenderRuns(out, runs)
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyStringSliceConfig(cmd *cobra.Command, name string, target *[]string, value []string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = append([]string(nil), value...)
}

func applyIntSliceConfig(cmd *cobra.Command, name string, target *[]int, value []int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = append([]int(nil), value...)
}

func defaultConfigTemplate() string {
	in := trials.DefaultInput()
	a := stats.DefaultAnalysis()
	p := stats.DefaultPlot()
	return fmt.Sprintf(`# rtscope configuration
# Uncomment a value to enable it. CLI flags override config values.

[input]
# dir = %q                       # Directory of trial logs
# extensions = [%q]               # Trial log file extensions
# id-separator = %q               # Participant ID is the file name up to this separator
# correct-column = %q             # Correctness column
# rt-column = %q                  # Reaction timestamp column
# onset-column = %q               # Stimulus onset column
# level-column = %q               # Independent variable column
# correct-value = %q              # Value marking a correct trial

[analysis]
# delay-ms = %.1f                 # Device delay subtracted from reaction times
# max-rt-ms = %.1f                # Drop trials with elapsed time at or above this
# outlier-k = %.1f                # Outlier threshold in standard deviations
# stddev = %q                     # Standard deviation estimator (population|sample)
# latency = %q                    # Dependent variable (adjusted|raw)
# sort-levels = false             # Order conditions numerically
# z-score = %.2f                  # Confidence interval multiplier
# confidence = %.2f               # Confidence level, overrides z-score
# significance = %.2f             # Significance threshold recorded with the run
# left = %s                       # Condition positions of the left segment
# right = %s                      # Condition positions of the right segment
# jobs = %d                       # Participants analyzed in parallel
# keep-going = false              # Skip participants whose data cannot be analyzed

[plot]
# title = %q
# x-label = %q
# y-label = %q
# y-min = %.1f
# y-max = %.1f
# width = %d                      # Image width in pixels
# height = %d                     # Image height in pixels
# png = "rtscope.png"             # Write the chart (.png or .svg)

[output]
# export = "results.yaml"         # Write a report (.yaml or .json)
# archive = true                  # Record runs for rtscope history
`,
		defaultDir,
		in.Extensions[0],
		in.IDSeparator,
		in.CorrectCol,
		in.RTCol,
		in.OnsetCol,
		in.LevelCol,
		in.CorrectValue,
		a.DelayMs,
		a.MaxRTMs,
		a.OutlierK,
		a.StdDev,
		a.Latency,
		a.ZScore,
		defaultConfidence,
		a.Significance,
		tomlInts(a.Segments[0].Indices),
		tomlInts(a.Segments[1].Indices),
		defaultJobs,
		p.Title,
		p.XLabel,
		p.YLabel,
		p.YMin,
		p.YMax,
		p.Width,
		p.Height,
	)
}

func tomlInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
