// Package generation implements the degraded-mode request pipeline shared
// by every content-generating endpoint: probe the store, look up the
// caller's entitlement, generate content (with deterministic fallback),
// persist when possible, and compose a full/partial/failed response.
// Content generation and content persistence are independent axes: a store
// outage never drops generated content.
package generation

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/studygen/studygen/internal/auth"
	"github.com/studygen/studygen/internal/metrics"
	"github.com/studygen/studygen/internal/store"
	"github.com/studygen/studygen/provider"
)

// Kind identifies a generated content type.
type Kind string

const (
	KindNote     Kind = "note"
	KindPractice Kind = "practice"
	KindSummary  Kind = "summary"
)

// Via records how a result's content was produced.
type Via string

const (
	ViaProvider Via = "provider"
	ViaFallback Via = "fallback"
)

// StoreStatus is the per-request classification of the relational store.
type StoreStatus int

const (
	StoreDown StoreStatus = iota
	StoreUp
)

// PersistenceOutcome is the single persistence verdict for a request.
type PersistenceOutcome int

const (
	Saved PersistenceOutcome = iota
	SkippedStoreDown
	SkippedNotEntitled
	FailedOnWrite
)

// ErrQuotaExceeded is returned by Run when the caller exhausted today's
// generation allowance. Handlers map it to 429.
var ErrQuotaExceeded = errors.New("quota exceeded")

// Request is a validated, immutable generation request.
type Request struct {
	Kind       Kind
	Parameters map[string]string
	RawPrompt  string
}

// Param returns a request parameter, or def when absent or empty.
func (r Request) Param(key, def string) string {
	if v, ok := r.Parameters[key]; ok && v != "" {
		return v
	}
	return def
}

// Result always carries non-empty content; Via drives user-visible
// messaging but never blocks the response.
type Result struct {
	Content string
	Via     Via
}

// Entitlement is the caller's subscription snapshot. A nil *Entitlement
// means "unknown", which callers must treat exactly like "none".
type Entitlement struct {
	PlanType   string
	QuotaLimit int
	QuotaUsed  int
	ValidUntil time.Time
}

// Premium reports whether the entitlement unlocks paid-tier behavior.
func (e *Entitlement) Premium() bool {
	return e != nil && e.PlanType != "" && e.PlanType != store.PlanFree && e.PlanType != store.PlanDemo
}

// StoreClient is the slice of the relational store the pipeline needs.
type StoreClient interface {
	Probe(ctx context.Context) error
	GetSubscription(ctx context.Context, userID string) (store.Subscription, bool, error)
}

// QuotaLimiter admits or rejects a generation attempt against a daily limit.
type QuotaLimiter interface {
	Allow(ctx context.Context, userID string, limit int) bool
}

// Spec is the per-kind configuration: everything that differs between
// notes, practice papers and summaries is data here, not control flow.
type Spec struct {
	Kind          Kind
	CreatedStatus int // HTTP status for the fully-persisted path
	RecordKey     string
	SavedMessage  string
	DemoMessage   string

	Prompt   func(Request) string
	Fallback func(Request) string

	// PersistWhen gates persistence on entitlement; nil persists whenever
	// the store is up. It never gates generation itself.
	PersistWhen func(*Entitlement) bool

	Save       func(ctx context.Context, p auth.Principal, req Request, res Result) (interface{}, error)
	DemoRecord func(p auth.Principal, req Request, res Result) interface{}
}

// Pipeline runs the shared decision procedure. All collaborators are
// injected so tests can substitute fakes for Up/Down and
// provider/fallback paths without network access.
type Pipeline struct {
	Store StoreClient
	LLM   provider.TextGenerator // nil when the provider is not configured

	Model       string
	Temperature float64
	MaxTokens   int

	Quota          QuotaLimiter // optional
	FreeDailyLimit int

	// ProbeTimeout must stay well under GenTimeout so a dead store is
	// classified before any expensive work starts.
	ProbeTimeout time.Duration // default 2s
	DBTimeout    time.Duration // default 5s
	GenTimeout   time.Duration // default 30s

	Logger *log.Logger
}

// Output is everything a handler needs to compose the response.
type Output struct {
	Store       StoreStatus
	Entitlement *Entitlement
	Result      Result
	Outcome     PersistenceOutcome
	Record      interface{}
}

// Run executes probe, entitlement lookup, quota check, generation and
// persistence for one request. The only error it can return is
// ErrQuotaExceeded; every downstream failure is absorbed into Output.
func (pl *Pipeline) Run(ctx context.Context, p auth.Principal, spec Spec, req Request) (Output, error) {
	var out Output

	out.Store = pl.ProbeStore(ctx)
	if out.Store == StoreUp {
		out.Entitlement = pl.lookupEntitlement(ctx, p.ID)
	}

	limit := pl.FreeDailyLimit
	if out.Entitlement != nil && out.Entitlement.QuotaLimit > 0 {
		limit = out.Entitlement.QuotaLimit
	}
	if pl.Quota != nil && limit > 0 && !pl.Quota.Allow(ctx, p.ID, limit) {
		return out, ErrQuotaExceeded
	}

	out.Result = pl.generate(ctx, spec, req)
	out.Outcome, out.Record = pl.persist(ctx, p, spec, req, out)
	return out, nil
}

// ProbeStore classifies the store as up or down under a short deadline.
// It is a bulkhead: any timeout or transport error maps to StoreDown,
// never to a request failure. Read-only endpoints use it directly.
func (pl *Pipeline) ProbeStore(ctx context.Context) StoreStatus {
	timeout := pl.ProbeTimeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	o := RunWithDeadline(ctx, timeout, func(c context.Context) (struct{}, error) {
		return struct{}{}, pl.Store.Probe(c)
	})
	if o.OK() {
		metrics.StoreProbes.WithLabelValues("up").Inc()
		return StoreUp
	}
	metrics.StoreProbes.WithLabelValues("down").Inc()
	pl.logf("store probe failed, continuing in demo mode: %v", o.Err)
	return StoreDown
}

// lookupEntitlement is best-effort: not-found, timeout and transport
// errors all collapse to nil ("unknown").
func (pl *Pipeline) lookupEntitlement(ctx context.Context, userID string) *Entitlement {
	o := RunWithDeadline(ctx, pl.dbTimeout(), func(c context.Context) (*Entitlement, error) {
		sub, ok, err := pl.Store.GetSubscription(c, userID)
		if err != nil || !ok {
			return nil, err
		}
		return &Entitlement{
			PlanType:   sub.PlanType,
			QuotaLimit: sub.QuotaLimit,
			QuotaUsed:  sub.QuotaUsed,
			ValidUntil: sub.ValidUntil,
		}, nil
	})
	if !o.OK() {
		pl.logf("entitlement lookup failed for %s: %v", userID, o.Err)
		return nil
	}
	return o.Value
}

// generate produces content. Provider misconfiguration, timeouts, non-2xx
// responses and malformed replies are all absorbed into deterministic,
// clearly-labeled fallback content; the request never fails here.
func (pl *Pipeline) generate(ctx context.Context, spec Spec, req Request) Result {
	if pl.LLM == nil {
		pl.logf("no text generation provider configured, serving %s fallback", spec.Kind)
		metrics.GenerationTotal.WithLabelValues(string(spec.Kind), string(ViaFallback)).Inc()
		return Result{Content: spec.Fallback(req), Via: ViaFallback}
	}

	timeout := pl.GenTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	o := RunWithDeadline(ctx, timeout, func(c context.Context) (string, error) {
		return pl.LLM.Generate(c, provider.Params{
			Model:       pl.Model,
			Prompt:      spec.Prompt(req),
			Temperature: pl.Temperature,
			MaxTokens:   pl.MaxTokens,
		})
	})
	if !o.OK() || o.Value == "" {
		pl.logf("%s generation failed, serving fallback: %v", spec.Kind, o.Err)
		metrics.GenerationTotal.WithLabelValues(string(spec.Kind), string(ViaFallback)).Inc()
		return Result{Content: spec.Fallback(req), Via: ViaFallback}
	}
	metrics.GenerationTotal.WithLabelValues(string(spec.Kind), string(ViaProvider)).Inc()
	return Result{Content: o.Value, Via: ViaProvider}
}

// persist writes the generated record when the store is up and the
// per-kind predicate admits it. A late write failure never discards the
// already-computed content.
func (pl *Pipeline) persist(ctx context.Context, p auth.Principal, spec Spec, req Request, out Output) (PersistenceOutcome, interface{}) {
	if out.Store == StoreDown {
		return SkippedStoreDown, nil
	}
	if spec.PersistWhen != nil && !spec.PersistWhen(out.Entitlement) {
		return SkippedNotEntitled, nil
	}
	o := RunWithDeadline(ctx, pl.dbTimeout(), func(c context.Context) (interface{}, error) {
		return spec.Save(c, p, req, out.Result)
	})
	if !o.OK() {
		pl.logf("%s save failed, returning content unsaved: %v", spec.Kind, o.Err)
		return FailedOnWrite, nil
	}
	return Saved, o.Value
}

// Compose maps a pipeline output onto the three-way response policy:
// Saved gets the per-kind created status with the persisted record; every
// other outcome gets 207 Multi-Status with the content, a demo-shaped
// record and demo:true. Auth failures never reach here; the middleware
// already answered 401/403.
func Compose(spec Spec, p auth.Principal, req Request, out Output) (int, map[string]interface{}) {
	if out.Outcome == Saved {
		return spec.CreatedStatus, map[string]interface{}{
			"message":      spec.SavedMessage,
			spec.RecordKey: out.Record,
		}
	}
	metrics.DemoResponses.WithLabelValues(string(spec.Kind)).Inc()
	body := map[string]interface{}{
		"message": spec.DemoMessage,
		"content": out.Result.Content,
		"demo":    true,
	}
	if spec.DemoRecord != nil {
		body[spec.RecordKey] = spec.DemoRecord(p, req, out.Result)
	}
	return 207, body
}

func (pl *Pipeline) dbTimeout() time.Duration {
	if pl.DBTimeout == 0 {
		return 5 * time.Second
	}
	return pl.DBTimeout
}

func (pl *Pipeline) logf(format string, args ...interface{}) {
	if pl.Logger != nil {
		pl.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}
