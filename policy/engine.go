package policy

import (
	"net/url"
	"time"

	"github.com/veilbrowser/extension-host/permission"
	"github.com/veilbrowser/extension-host/sandbox"
)

// ContextSource resolves context ids to live contexts. Implemented by
// sandbox.Manager; invalidated contexts must not be returned.
type ContextSource interface {
	Lookup(id sandbox.ContextID) (*sandbox.Context, bool)
}

// Engine decides allow/deny for capability invocations. Check reads only
// immutable per-context state, so it is safe to call concurrently from
// arbitrarily many contexts; it never mutates registry or manifest state.
type Engine struct {
	contexts ContextSource
	sink     Sink
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink sets the audit sink. Defaults to a SlogSink on slog.Default().
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithClock overrides the audit timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine over the given context source.
func NewEngine(contexts ContextSource, opts ...Option) *Engine {
	e := &Engine{
		contexts: contexts,
		sink:     NewSlogSink(nil),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Check decides whether the context may exercise the capability against the
// target (a URL for host-scoped capabilities, a tab id or storage key
// otherwise). Every call, allowed or denied, emits exactly one audit
// record. Any ambiguity resolves to Deny.
func (e *Engine) Check(id sandbox.ContextID, cap permission.Capability, target string) Decision {
	d := e.decide(id, cap, target)

	e.sink.Record(AuditRecord{
		Timestamp:  e.now(),
		ContextID:  string(id),
		Capability: string(cap),
		Target:     target,
		Decision:   string(d.Outcome),
		Reason:     string(d.Reason),
	})
	return d
}

func (e *Engine) decide(id sandbox.ContextID, cap permission.Capability, target string) Decision {
	ctx, ok := e.contexts.Lookup(id)
	if !ok || ctx.Invalidated() {
		return deny(ReasonContextInvalidated)
	}

	if !permission.Known(cap) {
		return deny(ReasonUnknownCapability)
	}
	if !ctx.Has(cap) {
		return deny(ReasonCapabilityNotGranted)
	}

	if !cap.HostScoped() {
		return allow("")
	}

	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return deny(ReasonMalformedTarget)
	}

	if rules := ctx.ContentRules(); rules != nil && !rules.AllowResource(u) {
		return deny(ReasonBlockedByContentRules)
	}

	pat, ok := ctx.PermitsURL(u)
	if !ok {
		return deny(ReasonHostNotInScope)
	}
	return allow(pat.String())
}
