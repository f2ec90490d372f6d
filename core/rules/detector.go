package rules

import (
	"fmt"

	"github.com/traelabs/trae/schema"
)

// DetectorKind enumerates the built-in detectors in their declared order.
// The order is part of the issue sort key.
type DetectorKind int

// All detectors supported.
const (
	UnsafeBlock DetectorKind = iota
	MayAbort
	HardcodedSecret
	ProcessExec
	LargeCopy
	ConcatInLoop
	NestedIteration
	TodoMarker
	DeprecatedAPI
	DuplicateBlock
	TrailingWhitespace
	FileLength
	FunctionLength
	Branching

	numDetectors
)

// Detector names that do not belong to a DetectorKind.
const (
	DetectorErrorName = "detector-error"
	EncodingErrorName = "encoding-error"
	IOErrorName       = "io-error"
)

// Fix identifiers suggested by detectors.
const (
	SecretRedactFix       = "secret-redact"
	TodoTagFix            = "todo-tag"
	TrailingWhitespaceFix = "trailing-whitespace"
)

var detectorNames = [numDetectors]string{
	UnsafeBlock:        "unsafe-block",
	MayAbort:           "may-abort",
	HardcodedSecret:    "hardcoded-secret",
	ProcessExec:        "process-exec",
	LargeCopy:          "large-copy",
	ConcatInLoop:       "concat-in-loop",
	NestedIteration:    "nested-iteration",
	TodoMarker:         "todo-marker",
	DeprecatedAPI:      "deprecated-api",
	DuplicateBlock:     "duplicate-block",
	TrailingWhitespace: "trailing-whitespace",
	FileLength:         "file-length",
	FunctionLength:     "function-length",
	Branching:          "branching",
}

// AllDetectors lists every detector in declared order.
func AllDetectors() []DetectorKind {
	out := make([]DetectorKind, numDetectors)
	for i := range out {
		out[i] = DetectorKind(i)
	}
	return out
}

// String returns the detector name used in issues.
func (k DetectorKind) String() string {
	if k < 0 || k >= numDetectors {
		return fmt.Sprintf("detector(%d)", int(k))
	}
	return detectorNames[k]
}

// Category returns the category of the issues the detector reports.
func (k DetectorKind) Category() schema.Category {
	switch k {
	case UnsafeBlock, MayAbort, HardcodedSecret, ProcessExec:
		return schema.SecurityCategory
	case LargeCopy, ConcatInLoop, NestedIteration:
		return schema.PerformanceCategory
	case TodoMarker, DeprecatedAPI, DuplicateBlock, TrailingWhitespace:
		return schema.QualityCategory
	case FileLength, FunctionLength, Branching:
		return schema.ComplexityCategory
	default:
		panic(fmt.Sprintf("rules: unknown detector %d", int(k)))
	}
}

// detect runs one detector over src.
func (e *Engine) detect(k DetectorKind, src *source) []finding {
	switch k {
	case UnsafeBlock:
		return detectUnsafe(src)
	case MayAbort:
		return detectMayAbort(src)
	case HardcodedSecret:
		return detectSecrets(src)
	case ProcessExec:
		return detectProcessExec(src)
	case LargeCopy:
		return detectLargeCopy(src)
	case ConcatInLoop:
		return detectConcatInLoop(src)
	case NestedIteration:
		return detectNestedIteration(src)
	case TodoMarker:
		return detectTodo(src)
	case DeprecatedAPI:
		return detectDeprecated(src)
	case DuplicateBlock:
		return detectDuplicates(src, e.opts.DuplicateWindow)
	case TrailingWhitespace:
		return detectTrailingWhitespace(src)
	case FileLength:
		return detectFileLength(src, e.opts.FileLengthThreshold)
	case FunctionLength:
		return detectFunctionLength(src, e.opts.MultilineThreshold)
	case Branching:
		return detectBranching(src, e.opts.BranchThreshold)
	default:
		panic(fmt.Sprintf("rules: unknown detector %d", int(k)))
	}
}

// finding is a detector hit before it is turned into an Issue.
type finding struct {
	line     int // 1-based, 0 for file-level
	severity schema.Severity
	message  string
	fixID    string
	detector string // overrides the detector name when set
}
