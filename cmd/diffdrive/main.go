package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/diffdrive/internal/config"
	"github.com/san-kum/diffdrive/internal/export"
	"github.com/san-kum/diffdrive/internal/goal"
	"github.com/san-kum/diffdrive/internal/logging"
	"github.com/san-kum/diffdrive/internal/metrics"
	"github.com/san-kum/diffdrive/internal/mission"
	"github.com/san-kum/diffdrive/internal/optim"
	"github.com/san-kum/diffdrive/internal/storage"
	"github.com/san-kum/diffdrive/internal/viz"
)

var (
	dataDir    string
	configFile string
	logLevel   string
	dt         float64
	maxSteps   int
	integrator string
	svgOut     string
	noSave     bool
	gridSpecs  []string
	metricName string
	workers    int

	logger = zap.NewNop()
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "diffdrive",
		Short:         "odometry and go-to-goal control for a differential-drive robot",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logging.NewLogger(logLevel)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".diffdrive", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	simFlags := func(cmd *cobra.Command) {
		cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "control period in seconds")
		cmd.Flags().IntVar(&maxSteps, "max-steps", config.DefaultMaxSteps, "cycle limit per goal (0 = unbounded)")
		cmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "plant integrator")
	}

	runCmd := &cobra.Command{
		Use:   "run [preset|scenario.yaml]",
		Short: "run a mission on the simulator",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMission,
	}
	simFlags(runCmd)
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	gotoCmd := &cobra.Command{
		Use:   "goto x y theta",
		Short: "drive to a single goal from the configured start pose",
		Args:  cobra.ExactArgs(3),
		RunE:  gotoGoal,
	}
	simFlags(gotoCmd)
	gotoCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	liveCmd := &cobra.Command{
		Use:   "live [preset|scenario.yaml]",
		Short: "run a mission with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	simFlags(liveCmd)

	compareCmd := &cobra.Command{
		Use:   "compare [preset] [integrator1] [integrator2] ...",
		Short: "compare plant integrators on the same mission",
		Args:  cobra.MinimumNArgs(2),
		RunE:  compareIntegrators,
	}
	compareCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "control period in seconds")

	tuneCmd := &cobra.Command{
		Use:   "tune [preset|scenario.yaml]",
		Short: "grid search controller parameters on a mission",
		Args:  cobra.MaximumNArgs(1),
		RunE:  tuneController,
	}
	simFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&gridSpecs, "grid", []string{"rho=0.8,1.2,1.6", "alpha=1.5,2.5,3.5"}, "parameter values as name=v1,v2,...")
	tuneCmd.Flags().StringVar(&metricName, "metric", optim.MetricSteps, "score to minimize (steps or a metric name)")
	tuneCmd.Flags().IntVar(&workers, "workers", 0, "concurrent evaluations (0 = GOMAXPROCS)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot pose and distance to goal of a run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportJSON,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run trajectory to CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportCSV,
	}

	svgCmd := &cobra.Command{
		Use:   "svg [run_id]",
		Short: "render a run trajectory as SVG",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportSVG,
	}
	svgCmd.Flags().StringVarP(&svgOut, "output", "o", "", "output file (default <run_id>.svg)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available missions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				p := config.Presets[name]
				fmt.Printf("  %-8s %d goals  %s\n", name, len(p.Goals), p.Description)
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, gotoCmd, liveCmd, compareCmd, tuneCmd, listCmd, plotCmd, exportJSONCmd, exportCSVCmd, svgCmd, presetsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig layers the config file, an optional preset or scenario and
// finally any flags set on the command line.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, err
		}
	}

	if len(args) > 0 {
		name := args[0]
		if p, ok := config.Presets[name]; ok {
			cfg.ApplyScenario(&mission.Scenario{Name: name, Start: p.Start, Goals: p.Goals})
		} else if ext := filepath.Ext(name); ext == ".yaml" || ext == ".yml" {
			s, err := mission.LoadScenario(name)
			if err != nil {
				return nil, err
			}
			cfg.ApplyScenario(s)
		} else {
			return nil, errors.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets())
		}
	}

	if f := cmd.Flags().Lookup("dt"); f != nil && f.Changed {
		cfg.Sim.Dt = dt
	}
	if f := cmd.Flags().Lookup("max-steps"); f != nil && f.Changed {
		cfg.Sim.MaxSteps = maxSteps
	}
	if f := cmd.Flags().Lookup("integrator"); f != nil && f.Changed {
		cfg.Sim.Integrator = integrator
	}
	return cfg, nil
}

func runMission(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	return execute(cmd.Context(), cfg)
}

func gotoGoal(cmd *cobra.Command, args []string) error {
	var vals [3]float64
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return errors.Wrapf(err, "argument %d", i+1)
		}
		vals[i] = v
	}

	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	cfg.Name = "goto"
	cfg.Goals = []goal.Target{{X: vals[0], Y: vals[1], Theta: vals[2]}}
	return execute(cmd.Context(), cfg)
}

func execute(ctx context.Context, cfg *config.Config) error {
	runner, _, err := config.NewSimulation(cfg, logger)
	if err != nil {
		return err
	}
	for _, m := range metrics.Standard() {
		runner.AddMetric(m)
	}

	fmt.Printf("running %s mission (%d goals)...\n", cfg.Name, len(cfg.Goals))
	start := time.Now()
	result, runErr := runner.Run(ctx, cfg.Goals)
	elapsed := time.Since(start)

	for i, ep := range result.Episodes {
		status := "arrived"
		if !ep.Arrived {
			status = "not reached"
		}
		fmt.Printf("goal %d (%.3f, %.3f, %.3f): %s after %d steps, at %s\n",
			i+1, ep.Goal.X, ep.Goal.Y, ep.Goal.Theta, status, ep.Steps, ep.Final)
	}

	if !noSave && len(result.Episodes) > 0 {
		st := storage.New(dataDir)
		runID, err := st.Save(storage.RunInfo{
			Name:       cfg.Name,
			Integrator: cfg.Sim.Integrator,
			Dt:         cfg.Sim.Dt,
			Start:      cfg.Start,
		}, result)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}

	fmt.Printf("completed in %v\n", elapsed)
	printMetrics(result.Metrics)
	return runErr
}

func printMetrics(m map[string]float64) {
	if len(m) == 0 {
		return
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, m[name])
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	factory := func() (*mission.Runner, mission.Robot, error) {
		runner, robot, err := config.NewSimulation(cfg, zap.NewNop())
		if err != nil {
			return nil, nil, err
		}
		return runner, robot, nil
	}

	p := tea.NewProgram(viz.NewModel(cfg.Name, cfg.Goals, factory), tea.WithContext(cmd.Context()))
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(viz.Model); ok && m.Err() != nil {
		return m.Err()
	}
	return nil
}

func compareIntegrators(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd, args[:1])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INTEGRATOR\tSTEPS\tARRIVED\tPATH\tDRIFT\tTIME")

	for _, name := range args[1:] {
		cfg := *base
		cfg.Sim.Integrator = name
		runner, _, err := config.NewSimulation(&cfg, logger)
		if err != nil {
			return err
		}
		path, drift := metrics.NewPathLength(), metrics.NewOdometryDrift()
		runner.AddMetric(path)
		runner.AddMetric(drift)

		start := time.Now()
		result, runErr := runner.Run(cmd.Context(), cfg.Goals)
		elapsed := time.Since(start)

		steps, arrived := 0, 0
		for _, ep := range result.Episodes {
			steps += ep.Steps
			if ep.Arrived {
				arrived++
			}
		}
		fmt.Fprintf(w, "%s\t%d\t%d/%d\t%.4fm\t%.2e\t%v\n",
			name, steps, arrived, len(cfg.Goals), path.Value(), drift.Value(), elapsed.Round(time.Microsecond))
		if runErr != nil {
			logger.Warn("mission failed", zap.String("integrator", name), zap.Error(runErr))
		}
	}
	return w.Flush()
}

// parseGrid turns "name=v1,v2" specs into grid axes.
func parseGrid(specs []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(specs))
	ranges := make([][]float64, 0, len(specs))
	for _, spec := range specs {
		name, list, ok := strings.Cut(spec, "=")
		if !ok || name == "" || list == "" {
			return nil, nil, errors.Errorf("bad grid spec %q, want name=v1,v2", spec)
		}
		var vals []float64
		for _, field := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "grid %s", name)
			}
			vals = append(vals, v)
		}
		names = append(names, strings.TrimSpace(name))
		ranges = append(ranges, vals)
	}
	return names, ranges, nil
}

func tuneController(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	names, ranges, err := parseGrid(gridSpecs)
	if err != nil {
		return err
	}

	g := optim.NewGridSearch(names, ranges)
	g.Workers = workers
	fmt.Printf("searching %d candidates on %s...\n", len(g.Candidates()), cfg.Name)

	start := time.Now()
	best, score, err := g.Search(cmd.Context(), optim.MissionObjective(cfg, metricName))
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", time.Since(start))
	fmt.Printf("best %s: %.6f\n", metricName, score)
	for _, name := range names {
		fmt.Printf("  %s: %g\n", name, best[name])
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tGOALS\tSTEPS\tDT\tINTEG")

	for _, run := range runs {
		steps, arrived := 0, 0
		for _, ep := range run.Episodes {
			steps += ep.Steps
			if ep.Arrived {
				arrived++
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d\t%.4fs\t%s\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			arrived, len(run.Episodes),
			steps,
			run.Dt,
			run.Integrator,
		)
	}

	return w.Flush()
}

// resolveRun loads the named run or the latest one.
func resolveRun(args []string) (*storage.RunMetadata, []mission.Cycle, error) {
	st := storage.New(dataDir)

	var meta *storage.RunMetadata
	var err error
	if len(args) > 0 {
		meta, err = st.Load(args[0])
	} else {
		meta, err = st.Latest()
	}
	if err != nil {
		return nil, nil, err
	}

	cycles, err := st.LoadTrajectory(meta.ID)
	if err != nil {
		return nil, nil, err
	}
	return meta, cycles, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, cycles, err := resolveRun(args)
	if err != nil {
		return err
	}
	if len(cycles) == 0 {
		return errors.New("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("mission: %s\n", meta.Name)
	fmt.Printf("samples: %d\n\n", len(cycles))

	series := []struct {
		caption string
		value   func(mission.Cycle) float64
	}{
		{"x (m)", func(c mission.Cycle) float64 { return c.Pose.X }},
		{"y (m)", func(c mission.Cycle) float64 { return c.Pose.Y }},
		{"theta (rad)", func(c mission.Cycle) float64 { return c.Pose.Theta }},
		{"distance to goal (m)", func(c mission.Cycle) float64 { return c.Rho }},
	}

	for _, s := range series {
		data := make([]float64, len(cycles))
		for i, c := range cycles {
			data[i] = s.value(c)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(s.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, cycles, err := resolveRun(args)
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, *meta, cycles)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	_, cycles, err := resolveRun(args)
	if err != nil {
		return err
	}
	return storage.WriteCSV(os.Stdout, cycles)
}

func exportSVG(cmd *cobra.Command, args []string) error {
	meta, cycles, err := resolveRun(args)
	if err != nil {
		return err
	}

	svg := export.TrajectoryToSVG(cycles, meta.Goals(), export.DefaultSVGOptions())
	if svg == "" {
		return errors.New("not enough data to render")
	}

	out := svgOut
	if out == "" {
		out = strings.ReplaceAll(meta.ID, string(filepath.Separator), "_") + ".svg"
	}
	if err := os.WriteFile(out, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", out)
	return nil
}
