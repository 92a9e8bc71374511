package otrace

import (
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Config mirrors the build-time/runtime configuration surface in spec
// §6.2–§6.4. Every field has a documented default and can be overridden
// through an Option passed to New.
type Config struct {
	Enabled            bool
	ThreadBufferEvents int
	DefaultPath        string
	OnExit             bool
	ClockSource        ClockSource
	MaxArgs            int

	SynthesizeTracks      bool
	RateWindowUS          uint64
	PercentileLabels      []string
	PercentileQuantiles   []float64

	RotatePattern string
	MaxSizeMB     int
	MaxFiles      int

	KeepProbability float64
	AllowCategories string
	DenyCategories  string
	Predicate       Predicate

	HeapEnabled      bool
	HeapSampleRate   float64
	HeapStackDepth   int
	HeapShards       int
	HeapStacks       bool

	Logger   *logrus.Logger
	Registry prometheus.Registerer
	HashSeed uint64
}

// Predicate is the user admission filter described in spec §4.4 item 5.
type Predicate interface {
	Allow(name, category string) bool
}

// PredicateFunc adapts a function to a Predicate.
type PredicateFunc func(name, category string) bool

func (f PredicateFunc) Allow(name, category string) bool { return f(name, category) }

func defaultConfig() Config {
	cfg := Config{
		Enabled:             false,
		ThreadBufferEvents:  32768,
		DefaultPath:         "trace.json",
		OnExit:              true,
		ClockSource:         ClockSteady,
		MaxArgs:             4,
		RateWindowUS:        500000,
		PercentileLabels:    []string{"p50", "p95", "p99"},
		PercentileQuantiles: []float64{0.50, 0.95, 0.99},
		MaxFiles:            1,
		KeepProbability:     1.0,
		HeapSampleRate:      0,
		HeapStackDepth:      16,
		HeapShards:          64,
		Logger:              discardLogger(),
	}
	applyEnv(&cfg)
	return cfg
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(&discardWriter{})
	return l
}

type discardWriter struct{}

func (*discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// applyEnv reads the runtime environment once, per spec §6.3, plus the
// two supplemental variables listed in SPEC_FULL.md §4.14.
func applyEnv(cfg *Config) {
	if v := os.Getenv("OTRACE_DISABLE"); v == "1" {
		cfg.Enabled = false
	}
	if v := os.Getenv("OTRACE_ENABLE"); v == "1" {
		cfg.Enabled = true // wins over OTRACE_DISABLE, applied last per spec
	}
	if v := os.Getenv("OTRACE_SAMPLE"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.KeepProbability = p
		}
	}
	if v := os.Getenv("OTRACE_OUTPUT"); v != "" {
		cfg.DefaultPath = v
	}
	if v := os.Getenv("OTRACE_ROTATE_PATTERN"); v != "" {
		cfg.RotatePattern = v
	}
}

// Option configures a Tracer at construction time.
type Option func(*Config)

func WithEnabled(v bool) Option               { return func(c *Config) { c.Enabled = v } }
func WithThreadBufferEvents(n int) Option     { return func(c *Config) { c.ThreadBufferEvents = n } }
func WithDefaultPath(path string) Option      { return func(c *Config) { c.DefaultPath = path } }
func WithOnExit(v bool) Option                { return func(c *Config) { c.OnExit = v } }
func WithClockSource(s ClockSource) Option     { return func(c *Config) { c.ClockSource = s } }
func WithMaxArgs(n int) Option {
	return func(c *Config) {
		if n > hardMaxArgs {
			n = hardMaxArgs
		}
		if n < 0 {
			n = 0
		}
		c.MaxArgs = n
	}
}
func WithSynthesis(enabled bool) Option { return func(c *Config) { c.SynthesizeTracks = enabled } }
func WithRateWindowUS(us uint64) Option { return func(c *Config) { c.RateWindowUS = us } }
func WithPercentiles(csv string) Option {
	return func(c *Config) {
		labels, quantiles := parsePercentiles(csv)
		if len(labels) > 0 {
			c.PercentileLabels = labels
			c.PercentileQuantiles = quantiles
		}
	}
}
func WithRotation(pattern string, maxSizeMB, maxFiles int) Option {
	return func(c *Config) {
		c.RotatePattern = pattern
		c.MaxSizeMB = maxSizeMB
		if maxFiles < 1 {
			maxFiles = 1
		}
		c.MaxFiles = maxFiles
	}
}
func WithSampling(p float64) Option { return func(c *Config) { c.KeepProbability = p } }
func WithAllowCategories(csv string) Option { return func(c *Config) { c.AllowCategories = csv } }
func WithDenyCategories(csv string) Option  { return func(c *Config) { c.DenyCategories = csv } }
func WithPredicate(p Predicate) Option      { return func(c *Config) { c.Predicate = p } }
func WithLogger(l *logrus.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}
func WithMetricsRegisterer(r prometheus.Registerer) Option {
	return func(c *Config) { c.Registry = r }
}
func WithHeap(enabled bool, sampleRate float64) Option {
	return func(c *Config) { c.HeapEnabled = enabled; c.HeapSampleRate = sampleRate }
}
func WithHeapStackDepth(n int) Option { return func(c *Config) { c.HeapStackDepth = n } }
func WithHeapShards(n int) Option {
	return func(c *Config) {
		if n < 1 {
			n = 1
		}
		c.HeapShards = n
	}
}
func WithHeapStacks(v bool) Option { return func(c *Config) { c.HeapStacks = v } }

// parsePercentiles turns "p50,p95,p99" into parallel label/quantile
// slices. Unparseable tokens are skipped, matching the tracer's general
// policy of degrading rather than erroring on malformed input.
func parsePercentiles(csv string) ([]string, []float64) {
	var labels []string
	var quantiles []float64
	for _, tok := range strings.Split(csv, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" || tok[0] != 'p' {
			continue
		}
		n, err := strconv.ParseFloat(tok[1:], 64)
		if err != nil {
			continue
		}
		labels = append(labels, tok)
		quantiles = append(quantiles, n/100.0)
	}
	return labels, quantiles
}

// matchesCSV implements the admission gate's exact-match-on-tokens rule
// (spec §4.4): surrounding whitespace ignored, empty tokens match "".
func matchesCSV(csv, needle string) bool {
	if csv == "" {
		return false
	}
	for _, tok := range strings.Split(csv, ",") {
		if strings.TrimSpace(tok) == needle {
			return true
		}
	}
	return false
}
