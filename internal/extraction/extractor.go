package extraction

import (
	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/session"
)

// Extractor turns one session record into zero or more candidate patterns.
// Implementations are pure over the record.
type Extractor interface {
	// Name identifies the extractor in logs and failure reports.
	Name() string

	// Extract returns the candidates found in rec.
	Extract(rec *session.Record) ([]*pattern.Pattern, error)
}

// Ensure all extractors implement Extractor.
var (
	_ Extractor = (*WorkflowExtractor)(nil)
	_ Extractor = (*DecisionExtractor)(nil)
	_ Extractor = (*CodeExtractor)(nil)
	_ Extractor = (*ErrorExtractor)(nil)
	_ Extractor = (*ArchitectureExtractor)(nil)
	_ Extractor = (*ConfigurationExtractor)(nil)
)
