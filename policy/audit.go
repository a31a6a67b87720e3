package policy

import (
	"log/slog"
	"sync"
	"time"
)

// AuditRecord is one append-only entry describing a policy decision. It is
// produced for every check, allowed or denied, and handed to the configured
// sink for the external observability collaborator.
type AuditRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	ContextID  string    `json:"context_id"`
	Capability string    `json:"requested_capability"`
	Target     string    `json:"target"`
	Decision   string    `json:"decision"`
	Reason     string    `json:"reason"`
}

// Sink receives audit records. Implementations must tolerate concurrent
// callers without interleaving corruption; the engine calls Record from
// arbitrarily many goroutines.
type Sink interface {
	Record(rec AuditRecord)
}

// Ensure implementations satisfy the interface.
var (
	_ Sink = (*SlogSink)(nil)
	_ Sink = (*MemorySink)(nil)
	_ Sink = (*NopSink)(nil)
)

// SlogSink writes records as structured log entries. slog handlers
// serialize their output, which gives the append discipline for free.
type SlogSink struct {
	Logger *slog.Logger
}

// NewSlogSink creates a SlogSink, defaulting to slog.Default().
func NewSlogSink(l *slog.Logger) *SlogSink {
	if l == nil {
		l = slog.Default()
	}
	return &SlogSink{Logger: l}
}

func (s *SlogSink) Record(rec AuditRecord) {
	s.Logger.Info("capability decision",
		"context_id", rec.ContextID,
		"capability", rec.Capability,
		"target", rec.Target,
		"decision", rec.Decision,
		"reason", rec.Reason,
	)
}

// MemorySink appends records under a mutex. Intended for tests and for
// deterministic replay of decision sequences.
type MemorySink struct {
	mu   sync.Mutex
	recs []AuditRecord
}

func (s *MemorySink) Record(rec AuditRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
}

// Records returns a copy of everything recorded so far.
func (s *MemorySink) Records() []AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditRecord, len(s.recs))
	copy(out, s.recs)
	return out
}

// Len returns the number of records.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

// NopSink discards records.
type NopSink struct{}

func (NopSink) Record(AuditRecord) {}
