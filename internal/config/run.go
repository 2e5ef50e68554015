package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/veto.report/internal/event"
	"github.com/banshee-data/veto.report/internal/grid"
	"github.com/banshee-data/veto.report/internal/segment"
	"github.com/banshee-data/veto.report/internal/veto"
)

// Defaults for fields omitted from a run configuration file.
const (
	DefaultThresholds       = "8,10,15,20,30,50"
	DefaultWindows          = "0.1,0.2,0.4,0.8,1.0"
	DefaultPrimaryThreshold = 8.0
	DefaultFrequencyLow     = 10.0
	DefaultFrequencyHigh    = 1000.0
	DefaultClusterWindow    = 0.5
	DefaultDBPath           = "veto.db"
	DefaultOutputDir        = "veto-report"
	DefaultKafkaTopic       = "veto.rounds"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// RunConfig is the configuration file for one veto analysis. Every field is
// optional; the Get* methods supply defaults, so partial files are safe.
type RunConfig struct {
	// Inputs
	Primary    *string  `json:"primary,omitempty" yaml:"primary,omitempty"`
	TriggerDir *string  `json:"trigger_dir,omitempty" yaml:"trigger_dir,omitempty"`
	SpanFile   *string  `json:"span_file,omitempty" yaml:"span_file,omitempty"`
	Start      *float64 `json:"start,omitempty" yaml:"start,omitempty"`
	End        *float64 `json:"end,omitempty" yaml:"end,omitempty"`
	// SpanBlock aligns a span derived from the triggers when no span is set.
	SpanBlock *float64 `json:"span_block,omitempty" yaml:"span_block,omitempty"`

	// Conditioning applied when triggers are loaded
	PrimaryThreshold *float64 `json:"primary_threshold,omitempty" yaml:"primary_threshold,omitempty"`
	FrequencyLow     *float64 `json:"frequency_low,omitempty" yaml:"frequency_low,omitempty"`
	FrequencyHigh    *float64 `json:"frequency_high,omitempty" yaml:"frequency_high,omitempty"`
	ClusterWindow    *float64 `json:"cluster_window,omitempty" yaml:"cluster_window,omitempty"`
	Unsafe           []string `json:"unsafe,omitempty" yaml:"unsafe,omitempty"`

	// Grid and stopping rules. Thresholds and windows accept a comma list,
	// "min:max:step" or "geom:min:max:n".
	Thresholds        *string  `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
	Windows           *string  `json:"windows,omitempty" yaml:"windows,omitempty"`
	SignificanceFloor *float64 `json:"significance_floor,omitempty" yaml:"significance_floor,omitempty"`
	MaxRounds         *int     `json:"max_rounds,omitempty" yaml:"max_rounds,omitempty"`
	Workers           *int     `json:"workers,omitempty" yaml:"workers,omitempty"`

	// Outputs
	DBPath       *string  `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	OutputDir    *string  `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	KafkaBrokers []string `json:"kafka_brokers,omitempty" yaml:"kafka_brokers,omitempty"`
	KafkaTopic   *string  `json:"kafka_topic,omitempty" yaml:"kafka_topic,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// Empty returns a RunConfig with every field unset.
func Empty() *RunConfig {
	return &RunConfig{}
}

// Load reads a RunConfig from a .json, .yaml or .yml file no larger than
// 1MB and validates it.
func Load(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that are set.
func (c *RunConfig) Validate() error {
	if c.SignificanceFloor != nil {
		if f := *c.SignificanceFloor; f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("significance_floor must be finite and non-negative, got %v", f)
		}
	}
	if c.MaxRounds != nil && *c.MaxRounds <= 0 {
		return fmt.Errorf("max_rounds must be positive, got %d", *c.MaxRounds)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.ClusterWindow != nil && *c.ClusterWindow < 0 {
		return fmt.Errorf("cluster_window must be non-negative, got %v", *c.ClusterWindow)
	}
	if c.PrimaryThreshold != nil && *c.PrimaryThreshold < 0 {
		return fmt.Errorf("primary_threshold must be non-negative, got %v", *c.PrimaryThreshold)
	}
	if low, high := c.GetFrequencyLow(), c.GetFrequencyHigh(); high > 0 && low >= high {
		return fmt.Errorf("frequency band must satisfy low < high, got [%v, %v]", low, high)
	}
	if (c.Start == nil) != (c.End == nil) {
		return fmt.Errorf("start and end must be set together")
	}
	if c.Start != nil && *c.Start >= *c.End {
		return fmt.Errorf("start must be before end, got [%v, %v]", *c.Start, *c.End)
	}
	if c.SpanBlock != nil {
		if b := *c.SpanBlock; b < 0 || math.IsNaN(b) || math.IsInf(b, 0) {
			return fmt.Errorf("span_block must be finite and non-negative, got %v", b)
		}
	}
	if c.Start != nil && c.SpanFile != nil {
		return fmt.Errorf("span_file and start/end are mutually exclusive")
	}
	if _, err := c.Grid(); err != nil {
		return err
	}
	if len(c.KafkaBrokers) > 0 && c.GetKafkaTopic() == "" {
		return fmt.Errorf("kafka_topic must not be empty when kafka_brokers is set")
	}
	return nil
}

// GetPrimary returns the primary channel, or "" when unset.
func (c *RunConfig) GetPrimary() string {
	if c.Primary == nil {
		return ""
	}
	return *c.Primary
}

// GetTriggerDir returns the trigger directory or the current directory.
func (c *RunConfig) GetTriggerDir() string {
	if c.TriggerDir == nil || *c.TriggerDir == "" {
		return "."
	}
	return *c.TriggerDir
}

// GetPrimaryThreshold returns the primary_threshold value or the default.
func (c *RunConfig) GetPrimaryThreshold() float64 {
	if c.PrimaryThreshold == nil {
		return DefaultPrimaryThreshold
	}
	return *c.PrimaryThreshold
}

// GetFrequencyLow returns the frequency_low value or the default.
func (c *RunConfig) GetFrequencyLow() float64 {
	if c.FrequencyLow == nil {
		return DefaultFrequencyLow
	}
	return *c.FrequencyLow
}

// GetFrequencyHigh returns the frequency_high value or the default. 0 means
// no upper bound.
func (c *RunConfig) GetFrequencyHigh() float64 {
	if c.FrequencyHigh == nil {
		return DefaultFrequencyHigh
	}
	return *c.FrequencyHigh
}

// GetClusterWindow returns the cluster_window value or the default.
func (c *RunConfig) GetClusterWindow() float64 {
	if c.ClusterWindow == nil {
		return DefaultClusterWindow
	}
	return *c.ClusterWindow
}

// GetThresholds returns the threshold list or the default.
func (c *RunConfig) GetThresholds() string {
	if c.Thresholds == nil || *c.Thresholds == "" {
		return DefaultThresholds
	}
	return *c.Thresholds
}

// GetWindows returns the window list or the default.
func (c *RunConfig) GetWindows() string {
	if c.Windows == nil || *c.Windows == "" {
		return DefaultWindows
	}
	return *c.Windows
}

// GetSignificanceFloor returns the significance_floor value or the default.
func (c *RunConfig) GetSignificanceFloor() float64 {
	if c.SignificanceFloor == nil {
		return veto.DefaultSignificanceFloor
	}
	return *c.SignificanceFloor
}

// GetMaxRounds returns the max_rounds value or the default.
func (c *RunConfig) GetMaxRounds() int {
	if c.MaxRounds == nil {
		return veto.DefaultMaxRounds
	}
	return *c.MaxRounds
}

// GetSpanBlock returns the span_block value or the default.
func (c *RunConfig) GetSpanBlock() float64 {
	if c.SpanBlock == nil {
		return veto.DefaultSpanBlock
	}
	return *c.SpanBlock
}

// GetWorkers returns the workers value; 0 means one per CPU.
func (c *RunConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetDBPath returns the db_path value or the default.
func (c *RunConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return DefaultDBPath
	}
	return *c.DBPath
}

// GetOutputDir returns the output_dir value or the default.
func (c *RunConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return DefaultOutputDir
	}
	return *c.OutputDir
}

// GetKafkaTopic returns the kafka_topic value or the default.
func (c *RunConfig) GetKafkaTopic() string {
	if c.KafkaTopic == nil {
		return DefaultKafkaTopic
	}
	return *c.KafkaTopic
}

// Grid builds the parameter grid from the threshold and window lists.
func (c *RunConfig) Grid() (grid.Grid, error) {
	g, err := grid.Parse(c.GetThresholds(), c.GetWindows())
	if err != nil {
		return nil, fmt.Errorf("invalid grid: %w", err)
	}
	return g, nil
}

// Span returns the configured observation span, reading span_file when it is
// set. ok is false when neither span_file nor start/end is set.
func (c *RunConfig) Span() (span segment.Segment, ok bool, err error) {
	switch {
	case c.SpanFile != nil && *c.SpanFile != "":
		span, err = segment.ReadSpanFile(*c.SpanFile)
		if err != nil {
			return segment.Segment{}, false, err
		}
		return span, true, nil
	case c.Start != nil && c.End != nil:
		return segment.Segment{Start: *c.Start, End: *c.End}, true, nil
	}
	return segment.Segment{}, false, nil
}

// VetoConfig converts the file into the controller configuration.
func (c *RunConfig) VetoConfig() (veto.Config, error) {
	g, err := c.Grid()
	if err != nil {
		return veto.Config{}, err
	}
	cfg := veto.Config{
		Grid:              g,
		SignificanceFloor: c.GetSignificanceFloor(),
		MaxRounds:         c.GetMaxRounds(),
		Workers:           c.GetWorkers(),
		SpanBlock:         c.GetSpanBlock(),
		Exclude:           append([]string(nil), c.Unsafe...),
	}
	span, ok, err := c.Span()
	if err != nil {
		return veto.Config{}, err
	}
	if ok {
		cfg.Span = &span
	}
	return cfg, cfg.Validate()
}

// StoreOptions returns the load-time conditioning for the trigger store. The
// primary threshold applies to the primary channel only.
func (c *RunConfig) StoreOptions() ([]event.StoreOption, error) {
	opts := []event.StoreOption{
		event.WithBand(c.GetFrequencyLow(), c.GetFrequencyHigh()),
		event.WithClusterWindow(c.GetClusterWindow()),
	}
	if len(c.Unsafe) > 0 {
		opts = append(opts, event.WithExclude(c.Unsafe...))
	}
	if p := c.GetPrimary(); p != "" {
		opts = append(opts, event.WithChannelThreshold(p, c.GetPrimaryThreshold()))
	}
	span, ok, err := c.Span()
	if err != nil {
		return nil, err
	}
	if ok {
		opts = append(opts, event.WithSpan(span.Start, span.End))
	}
	return opts, nil
}
