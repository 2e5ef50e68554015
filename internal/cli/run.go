package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/veto.report/internal/config"
	"github.com/banshee-data/veto.report/internal/db"
	"github.com/banshee-data/veto.report/internal/event"
	"github.com/banshee-data/veto.report/internal/monitoring"
	"github.com/banshee-data/veto.report/internal/publish"
	"github.com/banshee-data/veto.report/internal/report"
	"github.com/banshee-data/veto.report/internal/veto"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigPath string
	Primary    string
	TriggerDir string
	OutputDir  string
	Workers    int
	IFONames   bool
	NoDB       bool
	NoReport   bool
	NoPlot     bool

	// extraHooks run after the built-in round hooks.
	extraHooks []veto.RoundHook
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a veto analysis",
		Long: `Run a veto analysis of a primary channel against every other channel.

Triggers are read from --trigger-dir (one <channel>.csv per channel) or, when
no directory is given, from triggers previously stored with 'veto import'.
Each committed round is written to the database and, when brokers are
configured, published to Kafka. The report is written to the output
directory when the run finishes.

Example:
  veto run --config run.yaml
  veto run --primary H1:STRAIN --trigger-dir ./triggers --out ./report`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			return runVeto(cmd.Context(), opts, cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "run configuration file (.json, .yaml or .yml)")
	cmd.Flags().StringVar(&opts.Primary, "primary", "", "primary channel (overrides config)")
	cmd.Flags().StringVar(&opts.TriggerDir, "trigger-dir", "", "directory of <channel>.csv trigger files (overrides config)")
	cmd.Flags().StringVarP(&opts.OutputDir, "out", "o", "", "report directory (overrides config)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "concurrent channel scans (overrides config)")
	cmd.Flags().BoolVar(&opts.IFONames, "ifo-names", true, "map file stems like H1-AUX to channel names like H1:AUX")
	cmd.Flags().BoolVar(&opts.NoDB, "no-db", false, "do not record the run in the database")
	cmd.Flags().BoolVar(&opts.NoReport, "no-report", false, "do not write report files")
	cmd.Flags().BoolVar(&opts.NoPlot, "no-plot", false, "skip the PNG plot")

	return cmd
}

// loadConfig reads the config file, then applies flags, then the environment.
func (o *RunOptions) loadConfig(cmd *cobra.Command) (*config.RunConfig, error) {
	cfg := config.Empty()
	if o.ConfigPath != "" {
		loaded, err := config.Load(o.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if o.Primary != "" {
		cfg.Primary = &o.Primary
	}
	if o.TriggerDir != "" {
		cfg.TriggerDir = &o.TriggerDir
	}
	if o.OutputDir != "" {
		cfg.OutputDir = &o.OutputDir
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = &o.Workers
	}
	if o.DBPath != "" {
		cfg.DBPath = &o.DBPath
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if cfg.GetPrimary() == "" {
		return nil, errors.New("primary channel is required (--primary or \"primary\" in the config file)")
	}
	return cfg, nil
}

// source picks the CSV directory when one is configured, else the trigger
// table of database, which is nil when the database is not open.
func (o *RunOptions) source(cfg *config.RunConfig, database *db.DB) (event.Source, error) {
	if dir := cfg.GetTriggerDir(); dir != "" {
		src := event.CSVDirSource{Dir: dir}
		if o.IFONames {
			src.ChannelName = event.IFOChannelName
		}
		return src, nil
	}
	if database == nil {
		return nil, errors.New("no trigger directory configured and the database is disabled")
	}
	return db.NewTriggerStore(database), nil
}

func runVeto(ctx context.Context, opts *RunOptions, cfg *config.RunConfig, out io.Writer) error {
	var database *db.DB
	if !opts.NoDB || cfg.GetTriggerDir() == "" {
		d, err := db.NewDB(cfg.GetDBPath())
		if err != nil {
			return WrapExitError(ExitCommandError, "open database", err)
		}
		defer d.Close()
		database = d
	}
	src, err := opts.source(cfg, database)
	if err != nil {
		return WrapExitError(ExitCommandError, "open trigger source", err)
	}

	storeOpts, err := cfg.StoreOptions()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	vcfg, err := cfg.VetoConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	store := event.NewStore(src, storeOpts...)
	primary, err := store.Load(ctx, cfg.GetPrimary())
	if err != nil {
		return WrapExitError(ExitCommandError, "load primary", err)
	}
	aux, err := store.LoadAuxiliarySet(ctx, cfg.GetPrimary())
	if err != nil {
		return WrapExitError(ExitCommandError, "load auxiliary channels", err)
	}
	if vcfg.Span == nil {
		if span, ok := vcfg.ResolveSpan(primary, aux); ok {
			vcfg.Span = &span
		}
	}

	var ctlOpts []veto.Option
	var runs *db.RunStore
	var runID string
	if !opts.NoDB {
		if vcfg.Span == nil {
			return WrapExitError(ExitCommandError, "no observation span", errors.New("no triggers in range and no span configured"))
		}
		cfgJSON, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		runs = db.NewRunStore(database)
		runID, err = runs.StartRun(ctx, "", primary.Channel(), *vcfg.Span, primary.Len(), cfgJSON, time.Now())
		if err != nil {
			return WrapExitError(ExitFailure, "record run", err)
		}
		ctlOpts = append(ctlOpts, veto.WithRunID(runID), veto.WithRoundHook(runs.RoundHook()))
	}
	// abort marks the started run as aborted so it is not left running.
	abort := func(code int, msg string, cause error) error {
		if runs != nil {
			if err := runs.AbortRun(context.WithoutCancel(ctx), runID, cause, time.Now()); err != nil {
				monitoring.Logf("could not mark run %s aborted: %v", runID, err)
			}
		}
		return WrapExitError(code, msg, cause)
	}

	var pub *publish.Publisher
	if brokers := cfg.KafkaBrokers; len(brokers) > 0 {
		pub, err = publish.NewKafkaPublisher(brokers, cfg.GetKafkaTopic())
		if err != nil {
			return abort(ExitCommandError, "kafka", err)
		}
		defer pub.Close()
		ctlOpts = append(ctlOpts, veto.WithRoundHook(pub.RoundHook()))
	}
	for _, h := range opts.extraHooks {
		ctlOpts = append(ctlOpts, veto.WithRoundHook(h))
	}

	ctl, err := veto.New(vcfg, ctlOpts...)
	if err != nil {
		return abort(ExitCommandError, "invalid configuration", err)
	}
	res, err := ctl.Run(ctx, primary, aux)
	if err != nil {
		return abort(ExitFailure, "veto run failed", err)
	}

	// Record the outcome even when the run was interrupted.
	finishCtx := context.WithoutCancel(ctx)
	if runs != nil {
		if err := runs.FinishRun(finishCtx, res); err != nil {
			return WrapExitError(ExitFailure, "record run", err)
		}
	}
	if pub != nil {
		if err := pub.PublishResult(finishCtx, res); err != nil {
			return WrapExitError(ExitFailure, "publish summary", err)
		}
	}
	if !opts.NoReport {
		w := report.NewWriter(cfg.GetOutputDir())
		w.SkipPlot = opts.NoPlot
		if _, err := w.WriteAll(res); err != nil {
			return WrapExitError(ExitFailure, "write report", err)
		}
	}

	printResult(out, res)
	if res.Outcome == veto.OutcomeCancelled {
		return NewExitError(ExitFailure, fmt.Sprintf("run %s cancelled after %d rounds", res.RunID, len(res.Rounds)))
	}
	return nil
}

func printResult(w io.Writer, res *veto.Result) {
	fmt.Fprintf(w, "run %s: %s", res.RunID, res.Outcome)
	if res.StopReason != "" {
		fmt.Fprintf(w, " (%s)", res.StopReason)
	}
	fmt.Fprintln(w)
	tw := newTable(w)
	fmt.Fprintln(tw, "ROUND\tWINNER\tTHRESHOLD\tWINDOW\tSIGNIFICANCE\tVETOED\tEFFICIENCY\tDEADTIME")
	for _, r := range res.Rounds {
		fmt.Fprintf(tw, "%d\t%s\t%g\t%g\t%s\t%d\t%.2f%%\t%.4f%%\n",
			r.Round, r.Winner, r.Point.Threshold, r.Point.Window,
			formatSignificance(r), len(r.VetoedIDs), 100*r.Efficiency, 100*r.Deadtime)
	}
	tw.Flush()
	fmt.Fprintf(w, "%d of %d primary events remain\n", res.Remaining.Len(), res.PrimaryTotal)
	for _, sk := range res.Skipped {
		fmt.Fprintf(w, "skipped %s in round %d: %s\n", sk.Channel, sk.Round, sk.Reason)
	}
}

func formatSignificance(r veto.RoundRecord) string {
	for _, w := range r.Warnings {
		if w.Kind == veto.NumericDegeneracy {
			return "inf"
		}
	}
	return fmt.Sprintf("%.3f", r.Significance)
}
