package extraction

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/secrets"
	"github.com/fyrsmithlabs/patternd/internal/session"
)

// ErrAllExtractorsFailed is returned when no extractor completed.
var ErrAllExtractorsFailed = errors.New("pattern extraction failed: all extractors failed")

// Failure records one extractor that did not complete.
type Failure struct {
	Extractor string
	Err       error
}

// Result is the outcome of running every extractor over one session.
type Result struct {
	SessionID  string
	Candidates []*pattern.Pattern
	Failures   []Failure
	Redactions int
}

// Pipeline runs the extractors over scrubbed session records.
type Pipeline struct {
	extractors []Extractor
	scrubber   *secrets.Scrubber
	tagger     *Tagger
	logger     *zap.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithExtractors replaces the default extractor set.
func WithExtractors(extractors ...Extractor) PipelineOption {
	return func(p *Pipeline) {
		p.extractors = extractors
	}
}

// NewPipeline creates a Pipeline with all six extractors. A nil scrubber
// disables redaction; a nil logger discards logs.
func NewPipeline(cfg Config, scrubber *secrets.Scrubber, logger *zap.Logger, opts ...PipelineOption) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid extraction config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pipeline{
		extractors: []Extractor{
			NewWorkflowExtractor(cfg.Workflow),
			NewDecisionExtractor(cfg.Decision),
			NewCodeExtractor(cfg.Code),
			NewErrorExtractor(cfg.Error),
			NewArchitectureExtractor(cfg.Architecture),
			NewConfigurationExtractor(cfg.Configuration),
		},
		scrubber: scrubber,
		tagger:   NewTagger(cfg.Tags),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Extract runs every extractor over a scrubbed copy of rec. Extractor errors
// and panics are logged and recorded as failures; ErrAllExtractorsFailed is
// returned only when none completed.
func (p *Pipeline) Extract(ctx context.Context, rec *session.Record) (*Result, error) {
	if rec == nil {
		return nil, session.ErrEmptySessionID
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session record: %w", err)
	}

	clean, report := p.scrubber.ScrubRecord(rec)
	if report.Findings > 0 {
		p.logger.Info("redacted secrets from session record",
			zap.String("session_id", rec.SessionID),
			zap.Int("findings", report.Findings),
			zap.Any("by_rule", report.ByRule))
	}

	res := &Result{SessionID: rec.SessionID, Redactions: report.Findings}
	files := make([]string, 0, len(clean.FileChanges))
	for _, fc := range clean.FileChanges {
		files = append(files, fc.File)
	}
	fileTags := p.tagger.FileTags(files)

	for _, ex := range p.extractors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		candidates, err := p.run(ex, clean)
		if err != nil {
			p.logger.Warn("extractor failed",
				zap.String("extractor", ex.Name()),
				zap.String("session_id", rec.SessionID),
				zap.Error(err))
			res.Failures = append(res.Failures, Failure{Extractor: ex.Name(), Err: err})
			continue
		}

		for _, c := range candidates {
			p.finish(c, rec.SessionID, fileTags)
		}
		res.Candidates = append(res.Candidates, candidates...)
		p.logger.Debug("extractor completed",
			zap.String("extractor", ex.Name()),
			zap.Int("candidates", len(candidates)))
	}

	if len(p.extractors) > 0 && len(res.Failures) == len(p.extractors) {
		errs := make([]error, 0, len(res.Failures)+1)
		errs = append(errs, ErrAllExtractorsFailed)
		for _, f := range res.Failures {
			errs = append(errs, fmt.Errorf("%s: %w", f.Extractor, f.Err))
		}
		return res, errors.Join(errs...)
	}
	return res, nil
}

// run calls ex, converting a panic into an error.
func (p *Pipeline) run(ex Extractor, rec *session.Record) (candidates []*pattern.Pattern, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("extractor panicked",
				zap.String("extractor", ex.Name()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			candidates = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return ex.Extract(rec)
}

func (p *Pipeline) finish(c *pattern.Pattern, sessionID string, fileTags []string) {
	c.SourceSessionID = sessionID
	tags := p.tagger.Tags(c.Name + " " + c.Description + " " + c.Template)
	if c.Type == pattern.TypeCode || c.Type == pattern.TypeConfiguration || c.Type == pattern.TypeArchitecture {
		tags = append(tags, fileTags...)
	}
	c.AddTags(append(tags, string(c.Type))...)
	if c.Category == "" {
		c.Category = Domain(c.Tags)
	}
	c.ClampScores()
}
