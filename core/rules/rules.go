// Package rules evaluates the closed set of pattern detectors over file content.
package rules

import (
	"bytes"
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/schema"
)

// Revision is bumped whenever a detector's behavior changes so that cached
// results computed by older detectors are discarded.
const Revision = 4

// binaryProbeSize is how much of a file is inspected for NUL bytes.
const binaryProbeSize = 8 << 10

// Engine evaluates the enabled detectors. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	opts      contract.Options
	detectors []DetectorKind
	version   string

	// beforeDetect is a test hook run before each detector.
	beforeDetect func(DetectorKind)
}

// New builds an engine for the enabled categories and thresholds in opts.
func New(opts contract.Options) *Engine {
	if opts.DuplicateWindow < 2 {
		opts.DuplicateWindow = contract.DefaultDuplicateWindow
	}
	e := &Engine{opts: opts}
	for _, k := range AllDetectors() {
		if e.enabled(k.Category()) {
			e.detectors = append(e.detectors, k)
		}
	}
	e.version = e.computeVersion()
	return e
}

func (e *Engine) enabled(c schema.Category) bool {
	switch c {
	case schema.SecurityCategory:
		return e.opts.IncludeSecurity
	case schema.PerformanceCategory:
		return e.opts.IncludePerformance
	case schema.QualityCategory:
		return e.opts.IncludeQuality
	case schema.ComplexityCategory:
		return e.opts.IncludeComplexity
	default:
		return false
	}
}

// Detectors returns the enabled detectors in declared order.
func (e *Engine) Detectors() []DetectorKind {
	return slices.Clone(e.detectors)
}

// Version identifies the detector set: the revision, the enabled categories
// and every threshold. Results computed under another version are stale.
func (e *Engine) Version() string {
	return e.version
}

func (e *Engine) computeVersion() string {
	o := e.opts
	key := fmt.Sprintf("rev=%d sec=%t perf=%t qual=%t cplx=%t file=%d func=%d branch=%d dup=%d",
		Revision,
		o.IncludeSecurity, o.IncludePerformance, o.IncludeQuality, o.IncludeComplexity,
		o.FileLengthThreshold, o.MultilineThreshold, o.BranchThreshold, o.DuplicateWindow)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:6])
}

// CheckEncoding reports an EncodingError for binary or non UTF-8 content.
func CheckEncoding(content []byte) error {
	probe := content[:min(len(content), binaryProbeSize)]
	if bytes.IndexByte(probe, 0) >= 0 {
		return contract.NewError(contract.EncodingError, "decode", "", errors.New("binary content"))
	}
	if !utf8.Valid(content) {
		return contract.NewError(contract.EncodingError, "decode", "", errors.New("invalid UTF-8"))
	}
	return nil
}

// Analyze evaluates content and returns a path-independent result. Content
// that is not text yields a single encoding-error issue.
func (e *Engine) Analyze(content []byte) schema.AnalysisResult {
	res := schema.AnalysisResult{
		DetectorVersion: e.version,
		CreatedAt:       time.Now().UTC(),
	}
	if err := CheckEncoding(content); err != nil {
		res.Issues = []schema.Issue{{
			Category: schema.QualityCategory,
			Severity: schema.InfoSeverity,
			Detector: EncodingErrorName,
			Message:  fmt.Sprintf("file skipped: %v", errors.Unwrap(err)),
		}}
		return res
	}

	src := newSource(string(content))
	res.LinesScanned = src.lineCount()
	res.Issues = e.evaluate(src)
	return res
}

// Evaluate analyzes content and binds the issues to record's path.
func (e *Engine) Evaluate(record schema.FileRecord, content []byte) []schema.Issue {
	return e.Analyze(content).ForPath(record.Path).Issues
}

type ranked struct {
	issue schema.Issue
	order DetectorKind
}

func (e *Engine) evaluate(src *source) []schema.Issue {
	var all []ranked
	for _, k := range e.detectors {
		for _, f := range e.runDetector(k, src) {
			all = append(all, ranked{
				order: k,
				issue: schema.Issue{
					Line:     f.line,
					Category: k.Category(),
					Severity: f.severity,
					Detector: cmp.Or(f.detector, k.String()),
					Message:  f.message,
					FixID:    f.fixID,
				},
			})
		}
	}

	slices.SortStableFunc(all, func(a, b ranked) int {
		return cmp.Or(
			cmp.Compare(a.issue.Line, b.issue.Line),
			cmp.Compare(a.issue.Category, b.issue.Category),
			cmp.Compare(a.order, b.order),
			cmp.Compare(a.issue.Message, b.issue.Message),
		)
	})

	issues := make([]schema.Issue, len(all))
	for i, r := range all {
		issues[i] = r.issue
	}
	return issues
}

// runDetector isolates a faulting detector into one detector-error finding.
func (e *Engine) runDetector(k DetectorKind, src *source) (out []finding) {
	defer func() {
		if r := recover(); r != nil {
			err := contract.NewError(contract.DetectorError, k.String(), "", fmt.Errorf("%v", r))
			contract.Logger().Debug().Err(err).Msg("detector failed")
			out = []finding{{
				severity: schema.InfoSeverity,
				message:  fmt.Sprintf("detector %s failed: %v", k, r),
				detector: DetectorErrorName,
			}}
		}
	}()
	if e.beforeDetect != nil {
		e.beforeDetect(k)
	}
	return e.detect(k, src)
}
