// Package browse is a read-only terminal viewer for one YAML file that shows
// the key path under the cursor and offers the goto and copy commands.
package browse

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lexcodex/yamlnav/framework/docstate"
	"github.com/lexcodex/yamlnav/framework/eventloop"
	"github.com/lexcodex/yamlnav/framework/symbols"
)

// Options configure the browser.
type Options struct {
	Path       string
	Content    string
	Rule       symbols.LocaleRule
	Dispatcher eventloop.Dispatcher
	Workers    docstate.Submitter
	Classifier docstate.Classifier
	Tracker    docstate.Options
	// Clipboard defaults to the system clipboard.
	Clipboard func(string) error
}

// Run opens the browser in the alternate screen and blocks until the user
// quits. Writes to the file on disk refresh the outline.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Tracker.Logger
	if logger == nil {
		logger = log.Default()
	}
	disp := NewDispatcher()
	defer disp.Close()
	opts.Dispatcher = disp
	model, err := NewModel(opts)
	if err != nil {
		return err
	}
	program := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())
	disp.Attach(program.Send)

	watcher, err := Watch(ctx, opts.Path, program.Send, logger)
	if err != nil {
		logger.Printf("watch %s disabled: %v", opts.Path, err)
	} else {
		defer watcher.Close()
	}
	_, err = program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

type openMsg struct{}

// Model implements tea.Model.
type Model struct {
	doc       *document
	tracker   *docstate.Tracker
	rule      symbols.LocaleRule
	clipboard func(string) error

	picker  list.Model
	picking bool

	width  int
	height int
	top    int
}

type symbolItem struct {
	sym symbols.Symbol
}

func (i symbolItem) Title() string       { return i.sym.Path }
func (i symbolItem) Description() string { return fmt.Sprintf("line %d", i.sym.Line+1) }
func (i symbolItem) FilterValue() string { return i.sym.Path }

// NewModel wires a model and its tracker. The dispatcher must deliver to the
// program running the returned model.
func NewModel(opts Options) (Model, error) {
	if opts.Dispatcher == nil || opts.Workers == nil || opts.Classifier == nil {
		return Model{}, fmt.Errorf("browse: dispatcher, workers and classifier are required")
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.WriteAll
	}
	doc := newDocument(opts.Path, opts.Content)
	picker := list.New(nil, list.NewDefaultDelegate(), 80, 20)
	picker.Title = "Goto YAML symbol"
	picker.KeyMap.Quit.SetEnabled(false)
	return Model{
		doc:       doc,
		tracker:   docstate.NewTracker(opts.Dispatcher, opts.Workers, doc, opts.Classifier, doc, opts.Tracker),
		rule:      opts.Rule,
		clipboard: opts.Clipboard,
		picker:    picker,
		width:     80,
		height:    24,
	}, nil
}

// Init fulfills the Bubble Tea Model interface.
func (m Model) Init() tea.Cmd {
	return func() tea.Msg { return openMsg{} }
}

// Update applies incoming Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runMsg:
		msg.fn()
		return m, nil
	case openMsg:
		m.tracker.Open(m.doc.id)
		return m, nil
	case fileChangedMsg:
		if msg.content != m.doc.content {
			m.doc.setContent(msg.content)
			m.tracker.Edited(m.doc.id)
		}
		return m, nil
	case watchErrMsg:
		m.doc.notice = "watch: " + msg.err.Error()
		return m, nil
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.picker.SetSize(msg.Width, max(1, msg.Height-1))
		m.scroll()
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.picking {
			return m.handlePickerKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.doc.notice = ""
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		return m.moveTo(m.doc.cursor.Line-1, m.doc.cursor.Column), nil
	case "down", "j":
		return m.moveTo(m.doc.cursor.Line+1, m.doc.cursor.Column), nil
	case "left", "h":
		return m.moveTo(m.doc.cursor.Line, m.doc.cursor.Column-1), nil
	case "right", "l":
		return m.moveTo(m.doc.cursor.Line, m.doc.cursor.Column+1), nil
	case "pgup":
		return m.moveTo(m.doc.cursor.Line-m.bodyHeight(), m.doc.cursor.Column), nil
	case "pgdown":
		return m.moveTo(m.doc.cursor.Line+m.bodyHeight(), m.doc.cursor.Column), nil
	case "g", "home":
		return m.moveTo(0, 0), nil
	case "G", "end":
		return m.moveTo(m.doc.lines.LineCount()-1, 0), nil
	case "o":
		return m.openPicker(), nil
	case "y":
		return m.copyActivePath(), nil
	}
	return m, nil
}

func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.picker.FilterState() != list.Filtering {
		switch msg.String() {
		case "esc", "q":
			m.picking = false
			return m, nil
		case "enter":
			m.picking = false
			if item, ok := m.picker.SelectedItem().(symbolItem); ok {
				return m.gotoSymbol(item.sym), nil
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	return m, cmd
}

func (m Model) moveTo(line, column int) Model {
	m.doc.cursor = symbols.Position{Line: line, Column: column}
	m.doc.clampCursor()
	m.scroll()
	m.tracker.SelectionChanged(m.doc.id)
	return m
}

func (m Model) openPicker() Model {
	if len(m.doc.list) == 0 {
		m.doc.notice = "no YAML symbols"
		return m
	}
	items := make([]list.Item, 0, len(m.doc.list))
	for _, sym := range m.doc.list {
		items = append(items, symbolItem{sym: sym})
	}
	m.picker.ResetFilter()
	m.picker.SetItems(items)
	m.picker.Select(0)
	m.picking = true
	return m
}

// gotoSymbol places the cursor just past the key, as computed on the snapshot
// the list came from.
func (m Model) gotoSymbol(sym symbols.Symbol) Model {
	lines := m.doc.listLines
	pos := lines.Position(symbols.JumpTarget(lines, sym))
	m = m.moveTo(pos.Line, pos.Column)
	m.top = max(0, m.doc.cursor.Line-m.bodyHeight()/2)
	return m
}

func (m Model) copyActivePath() Model {
	if !m.doc.hasActive {
		m.doc.notice = symbols.NothingSelected
		return m
	}
	path := m.rule.Apply(m.doc.active.Path, m.doc.path)
	if err := m.clipboard(path); err != nil {
		m.doc.notice = "clipboard: " + err.Error()
		return m
	}
	m.doc.status = symbols.CopiedText(path)
	return m
}

// bodyHeight is the number of file lines shown above the status and help rows.
func (m Model) bodyHeight() int {
	return max(1, m.height-2)
}

func (m *Model) scroll() {
	h := m.bodyHeight()
	if m.doc.cursor.Line < m.top {
		m.top = m.doc.cursor.Line
	}
	if m.doc.cursor.Line >= m.top+h {
		m.top = m.doc.cursor.Line - h + 1
	}
}

// View renders the file, the status bar and a help or notice row.
func (m Model) View() string {
	bar := StatusBar{
		file:   filepath.Base(m.doc.path),
		line:   m.doc.cursor.Line,
		column: m.doc.cursor.Column,
		slot:   m.doc.status,
	}.View(m.width)
	if m.picking {
		return m.picker.View() + "\n" + bar
	}
	var b strings.Builder
	h := m.bodyHeight()
	for i := m.top; i < m.top+h; i++ {
		if i >= m.doc.lines.LineCount() {
			b.WriteString(gutterStyle.Render("   ~") + "\n")
			continue
		}
		row := gutterStyle.Render(fmt.Sprintf("%4d ", i+1)) + m.doc.lines.Line(i)
		if i == m.doc.cursor.Line {
			row = cursorLineStyle.Render(row)
		}
		b.WriteString(row + "\n")
	}
	b.WriteString(bar + "\n")
	if m.doc.notice != "" {
		b.WriteString(noticeStyle.Render(m.doc.notice))
	} else {
		b.WriteString(helpStyle.Render("↑/↓ move • g/G top/bottom • o goto symbol • y copy path • q quit"))
	}
	return b.String()
}
