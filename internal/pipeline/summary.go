// Package pipeline runs the three batch stages: listing, detail
// enrichment, and verification. Every stage follows the same shape: load
// the resume set from the output file, iterate input, append one output
// row per input row, report a summary.
package pipeline

import "go.uber.org/zap"

// Summary accumulates per-run row counts. Failed counts rows whose
// network work exhausted retries but were still emitted with placeholder
// values; ParseMisses counts rows where an expected field or pattern was
// absent.
type Summary struct {
	Processed   int
	Skipped     int
	Failed      int
	ParseMisses int
}

func (s *Summary) merge(o Summary) {
	s.Processed += o.Processed
	s.Skipped += o.Skipped
	s.Failed += o.Failed
	s.ParseMisses += o.ParseMisses
}

// Fields returns the summary as zap fields for end-of-run logging.
func (s Summary) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("processed", s.Processed),
		zap.Int("skipped", s.Skipped),
		zap.Int("failed", s.Failed),
		zap.Int("parse_misses", s.ParseMisses),
	}
}
