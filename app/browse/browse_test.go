package browse

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/yamlnav/framework/docstate"
	"github.com/lexcodex/yamlnav/framework/eventloop"
	"github.com/lexcodex/yamlnav/framework/symbols"
	"github.com/lexcodex/yamlnav/tools/yamlkeys"
)

const sample = "en:\n  greeting:\n    title: Hi\n  farewell: Bye\n"

type fixture struct {
	t      *testing.T
	model  Model
	msgs   chan tea.Msg
	copied []string
}

func newFixture(t *testing.T, content string) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	logger := log.New(io.Discard, "", 0)
	pool := eventloop.NewPool(ctx, 1, logger)
	disp := NewDispatcher()
	f := &fixture{t: t, msgs: make(chan tea.Msg, 64)}
	disp.Attach(func(msg tea.Msg) { f.msgs <- msg })
	t.Cleanup(func() {
		disp.Close()
		cancel()
		_ = pool.Close()
	})

	model, err := NewModel(Options{
		Path:       "/app/config/locales/en.yml",
		Content:    content,
		Rule:       symbols.LocaleRule{Pattern: regexp.MustCompile(`(^|/)locales/`), Enabled: true},
		Dispatcher: disp,
		Workers:    pool,
		Classifier: yamlkeys.NewLines(),
		Tracker:    docstate.Options{QuietPeriod: 10 * time.Millisecond, Logger: logger},
		Clipboard: func(s string) error {
			f.copied = append(f.copied, s)
			return nil
		},
	})
	require.NoError(t, err)
	f.model = model
	f.send(model.Init()())
	return f
}

func (f *fixture) send(msg tea.Msg) {
	next, _ := f.model.Update(msg)
	f.model = next.(Model)
}

func (f *fixture) key(keys ...string) {
	for _, k := range keys {
		switch k {
		case "down":
			f.send(tea.KeyMsg{Type: tea.KeyDown})
		case "enter":
			f.send(tea.KeyMsg{Type: tea.KeyEnter})
		case "esc":
			f.send(tea.KeyMsg{Type: tea.KeyEsc})
		default:
			f.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
		}
	}
}

// pump feeds posted closures to the model until cond holds.
func (f *fixture) pump(cond func(Model) bool) {
	f.t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond(f.model) {
		select {
		case msg := <-f.msgs:
			f.send(msg)
		case <-deadline:
			f.t.Fatal("condition not reached")
		}
	}
}

func scanned(m Model) bool { return len(m.doc.list) > 0 }

func TestOpenScansAndShowsStatus(t *testing.T) {
	f := newFixture(t, sample)
	f.pump(scanned)
	assert.Equal(t, []string{"en", "en.greeting", "en.greeting.title", "en.farewell"}, f.model.doc.list.Paths())
	assert.Equal(t, "YAML path: en", f.model.doc.status)
	assert.Contains(t, f.model.View(), "YAML path: en")
}

func TestCursorMovesUpdateStatus(t *testing.T) {
	f := newFixture(t, sample)
	f.pump(scanned)

	f.key("j", "j")
	assert.Equal(t, "YAML path: en.greeting.title", f.model.doc.status)
	f.key("G")
	// the trailing empty line belongs to no key
	assert.Equal(t, "", f.model.doc.status)
	f.key("k")
	assert.Equal(t, "YAML path: en.farewell", f.model.doc.status)
	f.key("g")
	assert.Equal(t, 0, f.model.doc.cursor.Line)
}

func TestCopyStripsLocaleSegment(t *testing.T) {
	f := newFixture(t, sample)
	f.pump(scanned)
	f.key("j", "j", "y")
	assert.Equal(t, []string{"greeting.title"}, f.copied)
	assert.Equal(t, "YAML path: greeting.title - copied to clipboard!", f.model.doc.status)
}

func TestCopyWithoutActiveSymbol(t *testing.T) {
	f := newFixture(t, "# only a comment\n")
	f.pump(func(m Model) bool {
		st, ok := m.tracker.State(m.doc.id)
		return ok && st.Computed
	})
	f.key("y")
	assert.Empty(t, f.copied)
	assert.Equal(t, symbols.NothingSelected, f.model.doc.notice)
	assert.Contains(t, f.model.View(), symbols.NothingSelected)
}

func TestPickerGoesToSymbol(t *testing.T) {
	f := newFixture(t, sample)
	f.pump(scanned)

	f.key("o")
	require.True(t, f.model.picking)
	f.key("down", "enter")
	assert.False(t, f.model.picking)
	// one past "greeting" on "  greeting:"
	assert.Equal(t, symbols.Position{Line: 1, Column: 11}, f.model.doc.cursor)
	assert.Equal(t, "YAML path: en.greeting", f.model.doc.status)

	f.key("o", "esc")
	assert.False(t, f.model.picking)
}

func TestPickerWithoutSymbols(t *testing.T) {
	f := newFixture(t, "")
	f.pump(func(m Model) bool {
		st, ok := m.tracker.State(m.doc.id)
		return ok && st.Computed
	})
	f.key("o")
	assert.False(t, f.model.picking)
	assert.Equal(t, "no YAML symbols", f.model.doc.notice)
}

func TestFileChangeRescansAfterQuietPeriod(t *testing.T) {
	f := newFixture(t, sample)
	f.pump(scanned)

	f.send(fileChangedMsg{content: "de:\n  gruss: Hallo\n"})
	f.pump(func(m Model) bool { return len(m.doc.list) == 2 })
	assert.Equal(t, []string{"de", "de.gruss"}, f.model.doc.list.Paths())
	assert.Equal(t, "YAML path: de", f.model.doc.status)
}

func TestCursorClampedAfterShrink(t *testing.T) {
	f := newFixture(t, sample)
	f.pump(scanned)
	f.key("G")
	f.send(fileChangedMsg{content: "a: 1\n"})
	assert.LessOrEqual(t, f.model.doc.cursor.Line, 1)
}

func TestDispatcherAfterClose(t *testing.T) {
	d := NewDispatcher()
	assert.False(t, d.Post(func() {}), "posts before Attach are dropped")

	var got []tea.Msg
	d.Attach(func(msg tea.Msg) { got = append(got, msg) })
	assert.True(t, d.Post(func() {}))
	d.Close()
	assert.False(t, d.Post(func() {}))
	assert.Len(t, got, 1)

	_, err := eventloop.Call(context.Background(), d, func() (int, error) { return 1, nil })
	assert.True(t, errors.Is(err, eventloop.ErrStopped))
}

func TestWatchReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "en.yml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o644))

	msgs := make(chan tea.Msg, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w, err := Watch(ctx, path, func(msg tea.Msg) { msgs <- msg }, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yml"), []byte("x: 1\n"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("b: 2\n"), 0o644))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-msgs:
			changed, ok := msg.(fileChangedMsg)
			if !ok || changed.content == "" {
				continue
			}
			assert.Equal(t, "b: 2\n", changed.content)
			return
		case <-deadline:
			t.Fatal("no change reported")
		}
	}
}

func TestStatusBarTruncatesLongNames(t *testing.T) {
	bar := StatusBar{file: strings.Repeat("x", 60) + ".yml", slot: "YAML path: a"}.View(100)
	assert.Contains(t, bar, "…")
	assert.Contains(t, bar, "YAML path: a")
}
