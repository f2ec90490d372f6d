package schema

// Custom string types for type safety.
type (
	// Category classifies what kind of defect an issue represents.
	Category string

	// OutputMode represents the format of the output.
	OutputMode string

	// Outcome represents the result of a single repair step.
	Outcome string

	// RunState represents the lifecycle state of a repair run.
	RunState string

	// Profile represents a named analysis tuning profile.
	Profile string

	// RepairLevel selects which fixer priority classes a repair run may use.
	RepairLevel string

	// DatabaseBackend represents the storage backend for caching and run history.
	DatabaseBackend string

	// DiagnosticKind classifies non-fatal walker diagnostics.
	DiagnosticKind string
)

// Severity ranks how bad an issue is. Higher is worse.
type Severity int

// All issue categories supported.
const (
	SecurityCategory    Category = "Security"
	PerformanceCategory Category = "Performance"
	QualityCategory     Category = "Quality"
	ComplexityCategory  Category = "Complexity"
)

// All issue severities supported.
const (
	InfoSeverity Severity = iota
	WarningSeverity
	CriticalSeverity
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All repair step outcomes supported.
const (
	SuccessOutcome Outcome = "success"
	FailedOutcome  Outcome = "failed"
	SkippedOutcome Outcome = "skipped"
)

// All repair run states supported.
const (
	PlannedState   RunState = "planned"
	RunningState   RunState = "running"
	CompletedState RunState = "completed"
	AbortedState   RunState = "aborted"
)

// All analysis profiles supported.
const (
	DefaultProfile  Profile = ""
	FastProfile     Profile = "fast"
	BalancedProfile Profile = "balanced"
	DeepProfile     Profile = "deep"
)

// All repair levels supported.
const (
	SafeLevel       RepairLevel = "safe" // default
	BalancedLevel   RepairLevel = "balanced"
	AggressiveLevel RepairLevel = "aggressive"
)

// All storage backends supported.
const (
	FileBackend       DatabaseBackend = "file" // default for the cache
	SQLiteBackend     DatabaseBackend = "sqlite"
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// All walker diagnostic kinds supported.
const (
	SkippedOversize DiagnosticKind = "skipped-oversize"
	ReadDirFailed   DiagnosticKind = "read-dir-failed"
	SymlinkCycle    DiagnosticKind = "symlink-cycle"
	AlreadyVisited  DiagnosticKind = "already-visited"
	StatFailed      DiagnosticKind = "stat-failed"
)

// AllCategories lists categories in their canonical (name ascending) order.
var AllCategories = []Category{ComplexityCategory, PerformanceCategory, QualityCategory, SecurityCategory}

// AllSeverities lists severities from least to most severe.
var AllSeverities = []Severity{InfoSeverity, WarningSeverity, CriticalSeverity}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidProfiles lists all valid analysis profiles.
var ValidProfiles = map[Profile]struct{}{
	DefaultProfile:  {},
	FastProfile:     {},
	BalancedProfile: {},
	DeepProfile:     {},
}

// ValidRepairLevels lists all valid repair levels.
var ValidRepairLevels = map[RepairLevel]struct{}{
	SafeLevel:       {},
	BalancedLevel:   {},
	AggressiveLevel: {},
}

// ValidCacheBackends lists all valid cache backends.
var ValidCacheBackends = map[DatabaseBackend]struct{}{
	FileBackend:       {},
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidRunBackends lists all valid run history backends. The file backend
// only serves the fingerprint cache.
var ValidRunBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}
