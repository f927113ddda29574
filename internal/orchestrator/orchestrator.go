// Package orchestrator coordinates the translate-then-save flow: it calls the
// translation service, persists successful results to the history store and
// mirrors the store's live, ordered record list into an observable State.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/valpere/translateme/internal"
	"github.com/valpere/translateme/internal/logger"
	"github.com/valpere/translateme/internal/metrics"
	"github.com/valpere/translateme/internal/translator"
)

// HistoryStore is the persistence the orchestrator needs.
type HistoryStore interface {
	SubscribeOrdered(ctx context.Context, onUpdate func([]internal.TranslationRecord), onError func(error)) (internal.Subscription, error)
	Insert(ctx context.Context, rec internal.TranslationRecord) (string, error)
	DeleteAll(ctx context.Context) (int, error)
}

// Config fixes the language pair used for every request.
type Config struct {
	SourceLang string
	TargetLang string
	// FromLabel and ToLabel are stored on records; when empty they are
	// derived from the language codes.
	FromLabel string
	ToLabel   string
}

// Result describes the outcome of one Submit.
type Result struct {
	// Display is the text to show: the translation, or "Error: ..." on failure.
	Display string
	// Record is the record handed to the store, nil when translation failed.
	Record *internal.TranslationRecord
	// Stale is set when a newer Submit had started by the time this result
	// was ready to be shown; a stale result never replaces the display text.
	Stale bool
	// State is the request's final lifecycle state.
	State RequestState
}

// ErrAlreadyStarted is returned by Start when a subscription is already open.
var ErrAlreadyStarted = errors.New("orchestrator already started")

type Orchestrator struct {
	service translator.TranslationService
	store   HistoryStore
	config  Config
	state   *State
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time

	mu  sync.Mutex
	sub internal.Subscription
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records translate and history operations on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger replaces the package logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(service translator.TranslationService, store HistoryStore, config Config, opts ...Option) *Orchestrator {
	if config.FromLabel == "" {
		config.FromLabel = translator.LanguageLabel(config.SourceLang)
	}
	if config.ToLabel == "" {
		config.ToLabel = translator.LanguageLabel(config.TargetLang)
	}

	o := &Orchestrator{
		store:  store,
		config: config,
		state:  NewState(),
		log:    logger.L,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.service = translator.Track(service, o.state)

	return o
}

// State returns the current snapshot.
func (o *Orchestrator) State() Snapshot {
	return o.state.Snapshot()
}

// Subscribe registers fn for every state change.
func (o *Orchestrator) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	return o.state.Subscribe(fn)
}

// Start opens the live history subscription. Updates replace the record list;
// subscription errors are logged and keep the list already held. An error
// opening the subscription is logged and returned, and the orchestrator stays
// usable without history updates.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sub != nil {
		return ErrAlreadyStarted
	}

	sub, err := o.store.SubscribeOrdered(ctx, o.onRecords, o.onStoreError)
	if err != nil {
		o.log.Error("failed to subscribe to history", "error", err)
		o.metrics.ObserveHistory("subscribe", metrics.OutcomeError)
		return fmt.Errorf("failed to subscribe to history: %w", err)
	}
	o.sub = sub
	return nil
}

func (o *Orchestrator) onRecords(records []internal.TranslationRecord) {
	o.log.Debug("history updated", "count", len(records))
	o.metrics.ObserveHistory("snapshot", metrics.OutcomeSuccess)
	o.metrics.SetRecords(len(records))
	o.state.SetRecords(records)
}

func (o *Orchestrator) onStoreError(err error) {
	o.log.Warn("history subscription error", "error", err)
	o.metrics.ObserveHistory("snapshot", metrics.OutcomeError)
}

// Submit translates text and, on success, saves the result to history.
// Empty text is a no-op. Translation and persistence errors are returned and
// also reflected in Result.Display; nothing is retried.
func (o *Orchestrator) Submit(ctx context.Context, text string) (Result, error) {
	if text == "" {
		return Result{}, nil
	}

	gen := o.state.NextGeneration()
	sm := newRequestMachine(gen)
	fire(ctx, sm, triggerSubmit)

	res, err := o.service.Translate(ctx, translator.TranslateRequest{
		Text:       text,
		SourceLang: o.config.SourceLang,
		TargetLang: o.config.TargetLang,
	})

	if err != nil {
		fire(ctx, sm, triggerTranslateFailed)
		o.log.Warn("translation failed", "service", o.service.Name(), "error", err)
		o.metrics.ObserveTranslation(o.service.Name(), metrics.OutcomeError, latency(res))

		result := o.show(gen, "Error: "+err.Error())
		result.State = currentState(sm)
		return result, err
	}

	fire(ctx, sm, triggerTranslated)

	rec := internal.TranslationRecord{
		OriginalText:   text,
		TranslatedText: res.TranslatedText,
		FromLanguage:   o.config.FromLabel,
		ToLanguage:     o.config.ToLabel,
		Timestamp:      o.now(),
	}
	result := o.show(gen, res.TranslatedText)
	result.Record = &rec

	outcome := metrics.OutcomeSuccess
	if result.Stale {
		outcome = metrics.OutcomeStale
	}
	o.metrics.ObserveTranslation(o.service.Name(), outcome, latency(res))

	id, err := o.store.Insert(ctx, rec)
	if err != nil {
		fire(ctx, sm, triggerPersistFailed)
		o.log.Error("failed to save translation", "error", err)
		o.metrics.ObserveHistory("insert", metrics.OutcomeError)
		result.State = currentState(sm)
		return result, fmt.Errorf("failed to save translation: %w", err)
	}
	fire(ctx, sm, triggerPersisted)
	o.metrics.ObserveHistory("insert", metrics.OutcomeSuccess)
	o.log.Debug("translation saved", "id", id, "generation", gen)

	result.State = currentState(sm)
	return result, nil
}

// show publishes display unless a newer request has started.
func (o *Orchestrator) show(gen uint64, display string) Result {
	result := Result{Display: display}
	if !o.state.SetDisplayIf(gen, display) {
		o.log.Debug("discarding stale result", "generation", gen, "display", display)
		result.Stale = true
	}
	return result
}

// ClearHistory deletes every record. Asking the user for confirmation is the
// caller's job.
func (o *Orchestrator) ClearHistory(ctx context.Context) (int, error) {
	n, err := o.store.DeleteAll(ctx)
	if err != nil {
		o.log.Error("failed to clear history", "error", err)
		o.metrics.ObserveHistory("delete_all", metrics.OutcomeError)
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	o.metrics.ObserveHistory("delete_all", metrics.OutcomeSuccess)
	return n, nil
}

// Close releases the history subscription. It is safe to call more than once
// and before Start.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	sub := o.sub
	o.sub = nil
	o.mu.Unlock()

	if sub == nil {
		return nil
	}
	return sub.Close()
}

func latency(res *translator.ServiceResult) time.Duration {
	if res == nil {
		return 0
	}
	return res.Latency
}
