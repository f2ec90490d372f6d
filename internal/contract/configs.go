package contract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/traelabs/trae/schema"
)

// Default values for configuration.
const (
	DefaultCacheTTLSeconds     = 300
	DefaultMultilineThreshold  = 50
	DefaultFileLengthThreshold = 500
	DefaultBranchThreshold     = 10
	DefaultDuplicateWindow     = 6
	DefaultMaxFileSize         = 1 << 20
	DefaultChunkMin            = 4
	DefaultChunkMax            = 200
	DefaultScoreK              = 10000
	DefaultResultLimit         = 50
	MaxResultLimit             = 10000
	DefaultPrecision           = 1

	DefaultCriticalWeight = 50
	DefaultWarningWeight  = 10
	DefaultInfoWeight     = 2
)

// AutoParallelism is the parallelism value that selects the worker count from the host.
const AutoParallelism = "auto"

// DefaultWorkers is the default number of concurrent workers to use.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// DefaultExcludes are always ignored by the walker in addition to user excludes.
var DefaultExcludes = []string{
	"Cargo.lock", "go.sum", "package-lock.json", "yarn.lock", "pnpm-lock.yaml", "composer.lock", "uv.lock",
	".min.js", ".min.css",
	".jpg", ".jpeg", ".png", ".gif", ".svg", ".ico", ".mp4", ".mov", ".webm", ".mp3", ".ogg", ".pdf", ".webp",
	".zip", ".gz", ".tar", ".jar", ".exe", ".dll", ".so", ".dylib", ".wasm",
	".DS_Store",
	"dist/", "build/", "out/", "target/", "bin/",
}

// SeverityWeights are the defect multipliers per severity used by the scorer.
type SeverityWeights struct {
	Critical float64 `json:"critical"`
	Warning  float64 `json:"warning"`
	Info     float64 `json:"info"`
}

// For returns the weight of a severity.
func (w SeverityWeights) For(s schema.Severity) float64 {
	switch s {
	case schema.CriticalSeverity:
		return w.Critical
	case schema.WarningSeverity:
		return w.Warning
	default:
		return w.Info
	}
}

// Validate checks that weights are positive and ordered Critical >= Warning >= Info.
func (w SeverityWeights) Validate() error {
	if w.Info <= 0 || w.Warning <= 0 || w.Critical <= 0 {
		return fmt.Errorf("severity weights must be positive (critical=%v warning=%v info=%v)", w.Critical, w.Warning, w.Info)
	}
	if w.Critical < w.Warning || w.Warning < w.Info {
		return fmt.Errorf("severity weights must satisfy critical >= warning >= info (critical=%v warning=%v info=%v)", w.Critical, w.Warning, w.Info)
	}
	return nil
}

// Options are the engine options recognized by analyze and repair.
type Options struct {
	IncludeSecurity    bool
	IncludePerformance bool
	IncludeQuality     bool
	IncludeComplexity  bool

	// MultilineThreshold is the function body length, in lines, above which
	// the function-length detector reports.
	MultilineThreshold  int
	FileLengthThreshold int
	BranchThreshold     int
	DuplicateWindow     int

	// Parallelism is the resolved worker count (always > 0).
	Parallelism int
	CacheTTL    time.Duration

	Weights  SeverityWeights
	ScoreK   float64
	ChunkMin int
	ChunkMax int

	ForceRefresh bool
}

// DefaultOptions returns options with every category enabled and documented defaults.
func DefaultOptions() Options {
	return Options{
		IncludeSecurity:     true,
		IncludePerformance:  true,
		IncludeQuality:      true,
		IncludeComplexity:   true,
		MultilineThreshold:  DefaultMultilineThreshold,
		FileLengthThreshold: DefaultFileLengthThreshold,
		BranchThreshold:     DefaultBranchThreshold,
		DuplicateWindow:     DefaultDuplicateWindow,
		Parallelism:         DefaultWorkers,
		CacheTTL:            DefaultCacheTTLSeconds * time.Second,
		Weights: SeverityWeights{
			Critical: DefaultCriticalWeight,
			Warning:  DefaultWarningWeight,
			Info:     DefaultInfoWeight,
		},
		ScoreK:   DefaultScoreK,
		ChunkMin: DefaultChunkMin,
		ChunkMax: DefaultChunkMax,
	}
}

// ExternalFixerConfig describes a command run by the external fixer.
type ExternalFixerConfig struct {
	ID       string
	Command  string
	Args     []string
	Category schema.Category
	Priority string
}

// ExternalFixerRaw holds one external fixer definition from the YAML config file.
type ExternalFixerRaw struct {
	Command  string   `mapstructure:"command"`
	Args     []string `mapstructure:"args"`
	Category string   `mapstructure:"category"`
	Priority string   `mapstructure:"priority"`
}

// WeightsRawInput holds severity weights from the YAML config file.
// Pointers distinguish unset values from zero.
type WeightsRawInput struct {
	Critical *float64 `mapstructure:"critical"`
	Warning  *float64 `mapstructure:"warning"`
	Info     *float64 `mapstructure:"info"`
}

// Config holds the runtime configuration.
// This struct remains the "final, validated" config.
type Config struct {
	RootPath       string
	Profile        schema.Profile
	Excludes       []string
	IgnorePatterns []string // gitignore-style, added to .gitignore and .traeignore
	Extensions     []string
	MaxFileSize    int64
	ResultLimit    int
	Precision      int
	Output         schema.OutputMode
	OutputFile     string
	Width          int // Terminal width override (0 = auto-detect)
	UseColors      bool

	Options Options

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext

	RunsBackend   schema.DatabaseBackend
	RunsDBConnect string // Please use env var as this is plaintext

	RepairLevel    schema.RepairLevel
	DryRun         bool
	Backup         bool
	Confirm        bool
	ExternalFixers []ExternalFixerConfig

	LogLevel    string
	EmitMetrics bool
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// This is set manually from positional args, so no tag
	RootPathStr string

	// --- Fields from rootCmd.PersistentFlags() ---
	Parallelism    string `mapstructure:"parallelism"`
	Profile        string `mapstructure:"profile"`
	Exclude        string `mapstructure:"exclude"`
	Ignore         string `mapstructure:"ignore"`
	Extensions     string `mapstructure:"extensions"`
	MaxFileSize    int64  `mapstructure:"max-file-size"`
	Output         string `mapstructure:"output"`
	OutputFile     string `mapstructure:"output-file"`
	Limit          int    `mapstructure:"limit"`
	Precision      int    `mapstructure:"precision"`
	Width          int    `mapstructure:"width"`
	Color          string `mapstructure:"color"`
	CacheBackend   string `mapstructure:"cache-backend"`
	CacheDBConnect string `mapstructure:"cache-db-connect"`
	RunsBackend    string `mapstructure:"runs-backend"`
	RunsDBConnect  string `mapstructure:"runs-db-connect"`
	CacheTTL       int    `mapstructure:"cache-ttl-seconds"`
	LogLevel       string `mapstructure:"log-level"`
	Metrics        string `mapstructure:"metrics"`

	// --- Fields from analyzeCmd.Flags() ---
	IncludeSecurity     string `mapstructure:"include-security"`
	IncludePerformance  string `mapstructure:"include-performance"`
	IncludeQuality      string `mapstructure:"include-quality"`
	IncludeComplexity   string `mapstructure:"include-complexity"`
	MultilineThreshold  int    `mapstructure:"multiline-threshold"`
	FileLengthThreshold int    `mapstructure:"file-length-threshold"`
	BranchThreshold     int    `mapstructure:"branch-threshold"`
	DuplicateWindow     int    `mapstructure:"duplicate-window"`
	ChunkMin            int    `mapstructure:"chunk-min"`
	ChunkMax            int    `mapstructure:"chunk-max"`
	ForceRefresh        bool   `mapstructure:"force-refresh"`

	// --- Fields from repairCmd.Flags() ---
	Level   string `mapstructure:"level"`
	DryRun  bool   `mapstructure:"dry-run"`
	Backup  string `mapstructure:"backup"`
	Confirm string `mapstructure:"confirm"`

	// --- Scoring policy from config file ---
	Weights WeightsRawInput `mapstructure:"weights"`
	ScoreK  float64         `mapstructure:"score-k"`

	// --- External fixers from config file ---
	Fixers map[string]ExternalFixerRaw `mapstructure:"fixers"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Excludes != nil {
		clone.Excludes = make([]string, len(c.Excludes))
		copy(clone.Excludes, c.Excludes)
	}
	if c.IgnorePatterns != nil {
		clone.IgnorePatterns = append([]string(nil), c.IgnorePatterns...)
	}
	if c.Extensions != nil {
		clone.Extensions = make([]string, len(c.Extensions))
		copy(clone.Extensions, c.Extensions)
	}
	if c.ExternalFixers != nil {
		clone.ExternalFixers = make([]ExternalFixerConfig, len(c.ExternalFixers))
		for i, f := range c.ExternalFixers {
			f.Args = append([]string(nil), f.Args...)
			clone.ExternalFixers[i] = f
		}
	}
	return &clone
}

// ConfigParams returns the subset of the config recorded with each run.
func (c *Config) ConfigParams() map[string]any {
	return map[string]any{
		"profile":               string(c.Profile),
		"parallelism":           c.Options.Parallelism,
		"include_security":      c.Options.IncludeSecurity,
		"include_performance":   c.Options.IncludePerformance,
		"include_quality":       c.Options.IncludeQuality,
		"include_complexity":    c.Options.IncludeComplexity,
		"multiline_threshold":   c.Options.MultilineThreshold,
		"file_length_threshold": c.Options.FileLengthThreshold,
		"cache_ttl_seconds":     int(c.Options.CacheTTL / time.Second),
		"cache_backend":         string(c.CacheBackend),
		"weights":               c.Options.Weights,
		"score_k":               c.Options.ScoreK,
		"excludes":              len(c.Excludes),
		"ignore_patterns":       len(c.IgnorePatterns),
		"force_refresh":         c.Options.ForceRefresh,
	}
}

// ProcessAndValidate performs all complex parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(_ context.Context, cfg *Config, input *ConfigRawInput) error {
	// All validation functions read from 'input' and populate 'cfg'.
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processOptions(cfg, input); err != nil {
		return err
	}
	if err := processWeights(cfg, input); err != nil {
		return err
	}
	if err := processRepair(cfg, input); err != nil {
		return err
	}
	if err := resolveRootPath(cfg, input); err != nil {
		return err
	}
	return nil
}

// ParseParallelism resolves a parallelism value: "auto" (or empty) selects
// DefaultWorkers, otherwise a positive integer is required.
func ParseParallelism(s string) (int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == AutoParallelism {
		return DefaultWorkers, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parallelism must be a positive integer or %q (received %q)", AutoParallelism, s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("parallelism must be greater than 0 (received %d)", n)
	}
	return n, nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.FileBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfigs validates cache and run history backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	// --- Cache Backend Validation ---
	cfg.CacheBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = schema.FileBackend
	}
	if _, ok := schema.ValidCacheBackends[cfg.CacheBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be file, sqlite, mysql, postgresql, none", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return err
	}

	// --- Runs Backend Validation ---
	cfg.RunsBackend = schema.DatabaseBackend(strings.ToLower(input.RunsBackend))
	if cfg.RunsBackend == "" {
		return nil
	}
	if _, ok := schema.ValidRunBackends[cfg.RunsBackend]; !ok {
		return fmt.Errorf("invalid runs backend '%s'. must be sqlite, mysql, postgresql, none", input.RunsBackend)
	}
	cfg.RunsDBConnect = input.RunsDBConnect
	if err := ValidateDatabaseConnectionString(cfg.RunsBackend, cfg.RunsDBConnect); err != nil {
		return err
	}

	// Validate that cache and runs use different SQLite files
	if cfg.CacheBackend == schema.SQLiteBackend && cfg.RunsBackend == schema.SQLiteBackend {
		cacheDBPath := cfg.CacheDBConnect
		if cacheDBPath == "" {
			cacheDBPath = GetCacheDBFilePath()
		}
		runsDBPath := cfg.RunsDBConnect
		if runsDBPath == "" {
			runsDBPath = GetRunsDBFilePath()
		}
		if cacheDBPath == runsDBPath {
			return fmt.Errorf("cache and run storage must use different SQLite database files. Both resolve to %q", cacheDBPath)
		}
	}

	return nil
}

// validateSimpleInputs processes and validates all output and storage fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	// --- 0. Transfer simple non-validated fields from input -> cfg ---
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.LogLevel = input.LogLevel

	colors, err := parseBoolDefault(input.Color, true)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	emit, err := parseBoolDefault(input.Metrics, true)
	if err != nil {
		return fmt.Errorf("invalid --metrics value: %w", err)
	}
	cfg.EmitMetrics = emit

	// --- 1. ResultLimit Validation ---
	if input.Limit <= 0 || input.Limit > MaxResultLimit {
		return fmt.Errorf("limit must be greater than 0 and cannot exceed %d (received %d)", MaxResultLimit, input.Limit)
	}
	cfg.ResultLimit = input.Limit

	// --- 2. Precision and Output Validation ---
	if input.Precision < 1 || input.Precision > 2 {
		return fmt.Errorf("precision must be 1 or 2 (received %d)", input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if cfg.Output == "" {
		cfg.Output = schema.TextOut
	}
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", input.Output)
	}
	if cfg.Output == schema.ParquetOut && cfg.OutputFile == "" {
		return errors.New("--output-file is required for parquet output")
	}

	// --- 3. Backend Validation ---
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}

	// --- 4. Walker Inputs ---
	if input.MaxFileSize < 0 {
		return fmt.Errorf("max-file-size cannot be negative (received %d)", input.MaxFileSize)
	}
	cfg.MaxFileSize = input.MaxFileSize
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}

	cfg.Excludes = append([]string(nil), DefaultExcludes...)
	cfg.Excludes = append(cfg.Excludes, splitList(input.Exclude)...)
	cfg.IgnorePatterns = splitList(input.Ignore)

	cfg.Extensions = nil
	for _, ext := range splitList(input.Extensions) {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.Extensions = append(cfg.Extensions, strings.ToLower(ext))
	}

	return nil
}

// processOptions resolves the engine options, applying profile presets first
// and explicit values second.
func processOptions(cfg *Config, input *ConfigRawInput) error {
	opts := DefaultOptions()

	cfg.Profile = schema.Profile(strings.ToLower(strings.TrimSpace(input.Profile)))
	if _, ok := schema.ValidProfiles[cfg.Profile]; !ok {
		return fmt.Errorf("invalid profile '%s'. must be fast, balanced, deep", input.Profile)
	}

	parallelism, err := ParseParallelism(input.Parallelism)
	if err != nil {
		return err
	}
	opts.Parallelism = parallelism
	applyProfile(&opts, cfg.Profile, strings.TrimSpace(strings.ToLower(input.Parallelism)))

	includes := []struct {
		name  string
		raw   string
		field *bool
	}{
		{"include-security", input.IncludeSecurity, &opts.IncludeSecurity},
		{"include-performance", input.IncludePerformance, &opts.IncludePerformance},
		{"include-quality", input.IncludeQuality, &opts.IncludeQuality},
		{"include-complexity", input.IncludeComplexity, &opts.IncludeComplexity},
	}
	for _, inc := range includes {
		v, err := parseBoolDefault(inc.raw, *inc.field)
		if err != nil {
			return fmt.Errorf("invalid --%s value: %w", inc.name, err)
		}
		*inc.field = v
	}

	thresholds := []struct {
		name  string
		value int
		field *int
	}{
		{"multiline-threshold", input.MultilineThreshold, &opts.MultilineThreshold},
		{"file-length-threshold", input.FileLengthThreshold, &opts.FileLengthThreshold},
		{"branch-threshold", input.BranchThreshold, &opts.BranchThreshold},
		{"duplicate-window", input.DuplicateWindow, &opts.DuplicateWindow},
		{"chunk-min", input.ChunkMin, &opts.ChunkMin},
		{"chunk-max", input.ChunkMax, &opts.ChunkMax},
	}
	for _, th := range thresholds {
		if th.value < 0 {
			return fmt.Errorf("%s cannot be negative (received %d)", th.name, th.value)
		}
		if th.value > 0 {
			*th.field = th.value
		}
	}
	if opts.DuplicateWindow < 2 {
		return fmt.Errorf("duplicate-window must be at least 2 (received %d)", opts.DuplicateWindow)
	}
	if opts.ChunkMin > opts.ChunkMax {
		return fmt.Errorf("chunk-min (%d) cannot exceed chunk-max (%d)", opts.ChunkMin, opts.ChunkMax)
	}

	if input.CacheTTL < 0 {
		return fmt.Errorf("cache-ttl-seconds cannot be negative (received %d)", input.CacheTTL)
	}
	if input.CacheTTL > 0 {
		opts.CacheTTL = time.Duration(input.CacheTTL) * time.Second
	}

	if input.ScoreK < 0 {
		return fmt.Errorf("score-k must be positive (received %v)", input.ScoreK)
	}
	if input.ScoreK > 0 {
		opts.ScoreK = input.ScoreK
	}

	opts.ForceRefresh = input.ForceRefresh
	cfg.Options = opts
	return nil
}

// applyProfile tunes workers and chunk bounds for a named profile. An
// explicit parallelism always wins over the profile.
func applyProfile(opts *Options, profile schema.Profile, rawParallelism string) {
	explicit := rawParallelism != "" && rawParallelism != AutoParallelism
	limit := func(n int) {
		if !explicit {
			opts.Parallelism = min(n, DefaultWorkers)
		}
	}
	switch profile {
	case schema.FastProfile:
		limit(2)
		opts.ChunkMax = 50
		opts.IncludePerformance = false
	case schema.BalancedProfile:
		limit(4)
		opts.ChunkMax = 100
	case schema.DeepProfile:
		limit(DefaultWorkers)
		opts.DuplicateWindow = 4
	}
}

// processWeights validates severity weights from the config file.
func processWeights(cfg *Config, input *ConfigRawInput) error {
	w := cfg.Options.Weights
	if input.Weights.Critical != nil {
		w.Critical = *input.Weights.Critical
	}
	if input.Weights.Warning != nil {
		w.Warning = *input.Weights.Warning
	}
	if input.Weights.Info != nil {
		w.Info = *input.Weights.Info
	}
	if err := w.Validate(); err != nil {
		return err
	}
	cfg.Options.Weights = w
	return nil
}

// processRepair handles repair level, toggles and external fixer definitions.
func processRepair(cfg *Config, input *ConfigRawInput) error {
	cfg.RepairLevel = schema.RepairLevel(strings.ToLower(strings.TrimSpace(input.Level)))
	if cfg.RepairLevel == "" {
		cfg.RepairLevel = schema.SafeLevel
	}
	if _, ok := schema.ValidRepairLevels[cfg.RepairLevel]; !ok {
		return fmt.Errorf("invalid repair level '%s'. must be safe, balanced, aggressive", input.Level)
	}
	cfg.DryRun = input.DryRun

	backup, err := parseBoolDefault(input.Backup, true)
	if err != nil {
		return fmt.Errorf("invalid --backup value: %w", err)
	}
	cfg.Backup = backup

	confirm, err := parseBoolDefault(input.Confirm, true)
	if err != nil {
		return fmt.Errorf("invalid --confirm value: %w", err)
	}
	cfg.Confirm = confirm

	cfg.ExternalFixers = nil
	ids := make([]string, 0, len(input.Fixers))
	for id := range input.Fixers {
		ids = append(ids, id)
	}
	// Deterministic registration order.
	slices.Sort(ids)
	for _, id := range ids {
		raw := input.Fixers[id]
		if strings.TrimSpace(raw.Command) == "" {
			return fmt.Errorf("fixer %q must define a command", id)
		}
		category := schema.Category(raw.Category)
		if category == "" {
			category = schema.QualityCategory
		}
		if !validCategory(category) {
			return fmt.Errorf("fixer %q has invalid category %q", id, raw.Category)
		}
		cfg.ExternalFixers = append(cfg.ExternalFixers, ExternalFixerConfig{
			ID:       id,
			Command:  raw.Command,
			Args:     append([]string(nil), raw.Args...),
			Category: category,
			Priority: strings.ToLower(raw.Priority),
		})
	}
	return nil
}

// resolveRootPath determines the absolute root to analyze and checks it exists.
// A missing root is an environment failure.
func resolveRootPath(cfg *Config, input *ConfigRawInput) error {
	root := input.RootPathStr
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return NewError(EnvironmentFatal, "resolve root", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return NewError(EnvironmentFatal, "stat root", absRoot, err)
	}
	if !info.IsDir() {
		return NewError(EnvironmentFatal, "stat root", absRoot, errors.New("not a directory"))
	}
	cfg.RootPath = absRoot
	return nil
}

// parseBoolDefault parses s with ParseBoolString, returning def when s is empty.
func parseBoolDefault(s string, def bool) (bool, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return ParseBoolString(strings.TrimSpace(s))
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func validCategory(c schema.Category) bool {
	for _, known := range schema.AllCategories {
		if c == known {
			return true
		}
	}
	return false
}
