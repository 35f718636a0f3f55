// Package extraction turns session records into candidate patterns.
//
// Six independent extractors each cover one pattern type:
//   - WorkflowExtractor: action-verb sentences as ordered steps
//   - DecisionExtractor: one pattern per decision log entry
//   - CodeExtractor: file changes grouped by language
//   - ErrorExtractor: error contexts and the turns that resolve them
//   - ArchitectureExtractor: architecture decisions with components
//   - ConfigurationExtractor: config files per type and environment
//
// Extractors are pure over the record and never touch storage. The Pipeline
// runs all of them with a partial-success policy: a failing extractor is
// logged and skipped, and only a session where every extractor fails is
// reported as ErrAllExtractorsFailed.
//
// # Usage
//
//	p, err := extraction.NewPipeline(extraction.DefaultConfig(), scrubber, logger)
//	res, err := p.Extract(ctx, rec)
//	for _, c := range res.Candidates {
//	    fmt.Println(c.Type, c.Template)
//	}
package extraction
