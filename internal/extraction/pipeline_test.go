package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/patternd/internal/logging"
	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/secrets"
	"github.com/fyrsmithlabs/patternd/internal/session"
)

type stubExtractor struct {
	name   string
	out    []*pattern.Pattern
	err    error
	panics bool
}

func (s *stubExtractor) Name() string { return s.name }

func (s *stubExtractor) Extract(*session.Record) ([]*pattern.Pattern, error) {
	if s.panics {
		panic("boom")
	}
	return s.out, s.err
}

func sampleSession() *session.Record {
	return &session.Record{
		SessionID: "sess-1",
		Conversation: turns(
			"Create a new authentication class",
			"Next, write unit tests",
			"Finally, deploy to staging",
		),
		Decisions: []session.Decision{
			{Decision: "Use PostgreSQL", Rationale: "JSON support", Alternatives: []string{"MySQL", "SQLite"}},
			{Decision: "Adopt a microservices architecture", Rationale: "independent deploys"},
		},
		FileChanges: []session.FileChange{
			{File: "services/auth/app.py", Action: session.ActionCreated},
			{File: "services/api/app.py", Action: session.ActionCreated},
		},
	}
}

func TestPipeline_Extract(t *testing.T) {
	scrubber, err := secrets.New(secrets.DefaultConfig())
	require.NoError(t, err)
	p, err := NewPipeline(DefaultConfig(), scrubber, nil)
	require.NoError(t, err)

	res, err := p.Extract(context.Background(), sampleSession())
	require.NoError(t, err)
	assert.Empty(t, res.Failures)
	assert.Equal(t, "sess-1", res.SessionID)

	byType := make(map[pattern.Type][]*pattern.Pattern)
	for _, c := range res.Candidates {
		assert.Equal(t, "sess-1", c.SourceSessionID)
		assert.Contains(t, c.Tags, string(c.Type))
		assert.NotEmpty(t, c.Category)
		assert.NoError(t, c.Validate())
		byType[c.Type] = append(byType[c.Type], c)
	}

	require.Len(t, byType[pattern.TypeWorkflow], 1)
	assert.Len(t, byType[pattern.TypeWorkflow][0].Details.(*pattern.WorkflowDetails).Steps, 3)
	require.Len(t, byType[pattern.TypeDecision], 2)
	require.Len(t, byType[pattern.TypeCode], 1)
	require.Len(t, byType[pattern.TypeArchitecture], 1)

	arch := byType[pattern.TypeArchitecture][0].Details.(*pattern.ArchitectureDetails)
	assert.Equal(t, "microservices", arch.ArchitectureType)
	assert.ElementsMatch(t, []string{"auth", "api"}, arch.Components)
	assert.Empty(t, byType[pattern.TypeError])
	assert.Empty(t, byType[pattern.TypeConfiguration])
}

func TestPipeline_ScrubsSecrets(t *testing.T) {
	scrubber, err := secrets.New(secrets.DefaultConfig())
	require.NoError(t, err)
	p, err := NewPipeline(DefaultConfig(), scrubber, nil)
	require.NoError(t, err)

	rec := &session.Record{
		SessionID: "s",
		Decisions: []session.Decision{{Decision: "Rotate API_TOKEN=abcd1234efgh5678 weekly"}},
	}
	res, err := p.Extract(context.Background(), rec)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.NotContains(t, res.Candidates[0].Template, "abcd1234efgh5678")
	assert.Contains(t, res.Candidates[0].Template, "API_TOKEN=[REDACTED]")
	assert.Positive(t, res.Redactions)

	// Caller's record is untouched.
	assert.Contains(t, rec.Decisions[0].Decision, "abcd1234efgh5678")
}

func TestPipeline_PartialSuccess(t *testing.T) {
	tl := logging.NewTestLogger()
	good := pattern.New(&pattern.DecisionDetails{ChosenOption: "x"}, "x", "x", "Decision: x")

	p, err := NewPipeline(DefaultConfig(), nil, tl.Underlying(), WithExtractors(
		&stubExtractor{name: "panicky", panics: true},
		&stubExtractor{name: "failing", err: errors.New("bad input")},
		&stubExtractor{name: "good", out: []*pattern.Pattern{good}},
	))
	require.NoError(t, err)

	res, err := p.Extract(context.Background(), &session.Record{SessionID: "s"})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, "panicky", res.Failures[0].Extractor)
	assert.Contains(t, res.Failures[0].Err.Error(), "boom")
	assert.Equal(t, "failing", res.Failures[1].Extractor)

	assert.Equal(t, 1, tl.Count("extractor panicked"))
	assert.Equal(t, 2, tl.Count("extractor failed"))
	tl.AssertLogged(t, zapcore.ErrorLevel, "extractor panicked")
	tl.AssertLogged(t, zapcore.WarnLevel, "extractor failed")
	tl.AssertNotLogged(t, zapcore.WarnLevel, "extractor panicked")
	tl.AssertField(t, "extractor panicked", "extractor", "panicky")
	tl.AssertField(t, "extractor failed", "extractor", "failing")
	tl.AssertSessionCorrelated(t, "extractor failed")
}

func TestPipeline_AllFail(t *testing.T) {
	p, err := NewPipeline(DefaultConfig(), nil, nil, WithExtractors(
		&stubExtractor{name: "a", err: errors.New("a failed")},
		&stubExtractor{name: "b", panics: true},
	))
	require.NoError(t, err)

	res, err := p.Extract(context.Background(), &session.Record{SessionID: "s"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllExtractorsFailed)
	require.NotNil(t, res)
	assert.Len(t, res.Failures, 2)
}

func TestPipeline_InvalidInput(t *testing.T) {
	p, err := NewPipeline(DefaultConfig(), nil, nil)
	require.NoError(t, err)

	_, err = p.Extract(context.Background(), &session.Record{})
	assert.ErrorIs(t, err, session.ErrEmptySessionID)

	_, err = p.Extract(context.Background(), nil)
	assert.ErrorIs(t, err, session.ErrEmptySessionID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Extract(ctx, sampleSession())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewPipeline_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workflow.MinSteps = 0
	_, err := NewPipeline(cfg, nil, nil)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Workflow.MaxSteps = 1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Error.TypeKeywords = append(cfg.Error.TypeKeywords, Rule{Keywords: []string{"x"}})
	assert.Error(t, cfg.Validate())

	assert.NoError(t, DefaultConfig().Validate())
}
