package docstate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lexcodex/yamlnav/framework/eventloop"
	"github.com/lexcodex/yamlnav/framework/symbols"
	"github.com/lexcodex/yamlnav/framework/telemetry"
)

// DefaultQuietPeriod is how long input must stay idle before a rescan.
const DefaultQuietPeriod = 400 * time.Millisecond

// Source answers editor queries. It is only called on the UI context.
type Source interface {
	Content(id DocumentID) (string, error)
	Selections(id DocumentID) ([]symbols.Selection, error)
}

// Classifier reports the key tokens of a content snapshot. It holds no editor
// state and runs on worker goroutines.
type Classifier interface {
	KeyTokens(ctx context.Context, content string) ([]symbols.KeyToken, error)
}

// Submitter queues background work without blocking.
type Submitter interface {
	TrySubmit(task eventloop.Task) error
}

// Update is what observers receive after a pass or a cursor move.
type Update struct {
	Document  DocumentID
	Symbols   symbols.List
	Lines     *symbols.LineIndex
	Active    symbols.Symbol
	HasActive bool
	// Rescanned is set when Symbols was replaced by a finished pass.
	Rescanned bool
}

// Observer is notified on the UI context.
type Observer interface {
	DocumentUpdated(u Update)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(u Update)

// DocumentUpdated calls f.
func (f ObserverFunc) DocumentUpdated(u Update) { f(u) }

// Options tune a Tracker. Zero values select defaults.
type Options struct {
	QuietPeriod time.Duration
	Clock       Clock
	Telemetry   telemetry.Telemetry
	Logger      *log.Logger
}

// Tracker owns the document store and runs the debounce state machine:
// idle -> scheduled -> recomputing -> idle, with close removing the entry.
type Tracker struct {
	ui         eventloop.Dispatcher
	workers    Submitter
	source     Source
	classifier Classifier
	observer   Observer
	store      *Store

	quiet     time.Duration
	clock     Clock
	telemetry telemetry.Telemetry
	logger    *log.Logger
}

// NewTracker wires a tracker. observer may be nil.
func NewTracker(ui eventloop.Dispatcher, workers Submitter, source Source, classifier Classifier, observer Observer, opts Options) *Tracker {
	if opts.QuietPeriod <= 0 {
		opts.QuietPeriod = DefaultQuietPeriod
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if observer == nil {
		observer = ObserverFunc(func(Update) {})
	}
	return &Tracker{
		ui:         ui,
		workers:    workers,
		source:     source,
		classifier: classifier,
		observer:   observer,
		store:      NewStore(),
		quiet:      opts.QuietPeriod,
		clock:      opts.Clock,
		telemetry:  opts.Telemetry,
		logger:     opts.Logger,
	}
}

// QuietPeriod returns the configured debounce delay.
func (t *Tracker) QuietPeriod() time.Duration { return t.quiet }

// Open starts tracking a freshly loaded or created document and scans it
// right away.
func (t *Tracker) Open(id DocumentID) {
	st, created := t.store.Ensure(id)
	if created {
		t.emit(telemetry.Event{Type: telemetry.EventDocumentOpen, Document: string(id)})
	}
	if st.Phase == PhaseIdle {
		t.startPass(st)
	}
}

// Focus handles a document becoming active: it rebuilds a list that was never
// computed and re-resolves the active symbol.
func (t *Tracker) Focus(id DocumentID) {
	st, _ := t.store.Ensure(id)
	if !st.Computed && st.Phase == PhaseIdle {
		t.startPass(st)
	}
	t.SelectionChanged(id)
}

// Edited records an edit. Bursts of edits collapse into one pass that runs
// once input has been quiet for the full quiet period.
func (t *Tracker) Edited(id DocumentID) {
	st, _ := t.store.Ensure(id)
	st.LastEdit = t.clock.Now()
	st.Edits++
	if st.Phase != PhaseIdle {
		return
	}
	st.Phase = PhaseScheduled
	t.arm(st, t.quiet)
	t.emit(telemetry.Event{Type: telemetry.EventPassScheduled, Document: string(id)})
}

// SelectionChanged re-resolves the active symbol against the cached list.
func (t *Tracker) SelectionChanged(id DocumentID) {
	st, _ := t.store.Ensure(id)
	t.resolve(st)
	t.publish(st, false)
}

// Close forgets the document and cancels its pending timer. A pass already
// running for it is dropped when it reports back.
func (t *Tracker) Close(id DocumentID) {
	if t.store.Delete(id) {
		t.emit(telemetry.Event{Type: telemetry.EventDocumentClose, Document: string(id)})
	}
}

// State returns the state of a tracked document.
func (t *Tracker) State(id DocumentID) (*DocumentState, bool) {
	return t.store.Get(id)
}

// Symbols returns the cached list and the line index it was computed on.
func (t *Tracker) Symbols(id DocumentID) (symbols.List, *symbols.LineIndex) {
	st, ok := t.store.Get(id)
	if !ok {
		return symbols.List{}, symbols.NewLineIndex("")
	}
	return st.Symbols, st.Lines
}

// Active returns the cached active symbol.
func (t *Tracker) Active(id DocumentID) (symbols.Symbol, bool) {
	st, ok := t.store.Get(id)
	if !ok {
		return symbols.Symbol{}, false
	}
	return st.Active, st.HasActive
}

// Documents lists tracked document IDs.
func (t *Tracker) Documents() []DocumentID { return t.store.IDs() }

func (t *Tracker) arm(st *DocumentState, d time.Duration) {
	st.stopTimer()
	id, gen := st.ID, st.Generation
	st.timer = t.clock.AfterFunc(d, func() {
		t.ui.Post(func() { t.fire(id, gen) })
	})
}

func (t *Tracker) fire(id DocumentID, gen uint64) {
	st, ok := t.current(id, gen)
	if !ok || st.Phase != PhaseScheduled {
		return
	}
	st.timer = nil
	if elapsed := t.clock.Now().Sub(st.LastEdit); elapsed < t.quiet {
		t.arm(st, t.quiet-elapsed)
		return
	}
	t.startPass(st)
}

func (t *Tracker) startPass(st *DocumentState) {
	st.stopTimer()
	st.Phase = PhaseRecomputing
	st.passEdits = st.Edits
	id, gen := st.ID, st.Generation
	err := t.workers.TrySubmit(func(ctx context.Context) {
		t.runPass(ctx, id, gen)
	})
	switch {
	case err == nil:
		t.emit(telemetry.Event{Type: telemetry.EventPassStarted, Document: string(id)})
	case errors.Is(err, eventloop.ErrPoolBusy):
		st.Phase = PhaseScheduled
		t.arm(st, t.quiet)
	default:
		st.Phase = PhaseIdle
		t.logger.Printf("yamlnav: cannot schedule pass for %s: %v", id, err)
	}
}

type passResult struct {
	list     symbols.List
	lines    *symbols.LineIndex
	duration time.Duration
}

// runPass executes on a worker. It reads the snapshot through the UI context
// and hands the extracted list back the same way.
func (t *Tracker) runPass(ctx context.Context, id DocumentID, gen uint64) {
	content, err := eventloop.Call(ctx, t.ui, func() (string, error) {
		if _, ok := t.current(id, gen); !ok {
			return "", ErrDocumentClosed
		}
		return t.source.Content(id)
	})
	if err != nil {
		t.ui.Post(func() { t.abandon(id, gen, fmt.Errorf("read content: %w", err)) })
		return
	}
	started := time.Now()
	tokens, err := t.classifier.KeyTokens(ctx, content)
	if err != nil {
		t.ui.Post(func() { t.abandon(id, gen, fmt.Errorf("classify keys: %w", err)) })
		return
	}
	lines := symbols.NewLineIndex(content)
	res := passResult{
		list:     symbols.ExtractIndexed(lines, tokens),
		lines:    lines,
		duration: time.Since(started),
	}
	t.ui.Post(func() { t.finish(id, gen, res) })
}

func (t *Tracker) finish(id DocumentID, gen uint64, res passResult) {
	st, ok := t.current(id, gen)
	if !ok {
		return
	}
	st.Symbols = res.list
	st.Lines = res.lines
	st.Computed = true
	t.settle(st)
	t.emit(telemetry.Event{
		Type:     telemetry.EventPassFinished,
		Document: string(id),
		Symbols:  len(res.list),
		Duration: res.duration,
	})
	t.resolve(st)
	t.publish(st, true)
}

func (t *Tracker) abandon(id DocumentID, gen uint64, err error) {
	t.logger.Printf("yamlnav: pass for %s abandoned: %v", id, err)
	t.emit(telemetry.Event{Type: telemetry.EventPassAbandoned, Document: string(id), Message: err.Error()})
	if st, ok := t.current(id, gen); ok {
		t.settle(st)
	}
}

// settle ends a pass. Edits that arrived while it ran queue a follow-up pass
// for the remainder of the quiet period.
func (t *Tracker) settle(st *DocumentState) {
	if st.Edits == st.passEdits {
		st.Phase = PhaseIdle
		return
	}
	st.Phase = PhaseScheduled
	remaining := t.quiet - t.clock.Now().Sub(st.LastEdit)
	if remaining < 0 {
		remaining = 0
	}
	t.arm(st, remaining)
}

func (t *Tracker) resolve(st *DocumentState) {
	var selections []symbols.Selection
	if st.Computed {
		sel, err := t.source.Selections(st.ID)
		if err != nil {
			t.logger.Printf("yamlnav: selection for %s unavailable: %v", st.ID, err)
		} else {
			selections = sel
		}
	}
	prev, hadPrev := st.Active, st.HasActive
	st.Active, st.HasActive = symbols.Resolve(st.Symbols, selections)
	if prev.Path != st.Active.Path || hadPrev != st.HasActive {
		t.emit(telemetry.Event{Type: telemetry.EventActiveChanged, Document: string(st.ID), Message: st.Active.Path})
	}
}

func (t *Tracker) publish(st *DocumentState, rescanned bool) {
	t.observer.DocumentUpdated(Update{
		Document:  st.ID,
		Symbols:   st.Symbols,
		Lines:     st.Lines,
		Active:    st.Active,
		HasActive: st.HasActive,
		Rescanned: rescanned,
	})
}

func (t *Tracker) current(id DocumentID, gen uint64) (*DocumentState, bool) {
	st, ok := t.store.Get(id)
	if !ok || st.Generation != gen {
		return nil, false
	}
	return st, true
}

func (t *Tracker) emit(e telemetry.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = t.clock.Now()
	}
	t.telemetry.Emit(e)
}
