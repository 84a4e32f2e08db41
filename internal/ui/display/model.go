// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package display

import (
	"context"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/secureai-tui/internal/stream"
	"github.com/jeranaias/secureai-tui/internal/ui/styles"
)

// =============================================================================
// MESSAGES
// =============================================================================

// eventMsg carries one stream event into the Update loop. gen identifies the
// submission it belongs to.
type eventMsg struct {
	gen uint64
	ev  stream.Event
	ch  <-chan stream.Event
}

// streamClosedMsg follows the last event of a submission.
type streamClosedMsg struct {
	gen uint64
}

type copiedMsg struct {
	err error
}

// updateMsg carries a header change from Config.Updates.
type updateMsg struct {
	u Update
}

// waitForEvent reads the next event of a submission.
func waitForEvent(ch <-chan stream.Event, gen uint64) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return streamClosedMsg{gen: gen}
		}
		return eventMsg{gen: gen, ev: ev, ch: ch}
	}
}

// waitForUpdate reads the next screen update. A closed or nil channel
// stops listening.
func waitForUpdate(ch <-chan Update) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return updateMsg{u: u}
	}
}

// =============================================================================
// MODEL
// =============================================================================

// Update changes a running screen from outside, e.g. after the model
// settings were edited elsewhere. Empty fields are left as they are.
type Update struct {
	Title  string
	Notice string
}

// Submit builds the request for a prompt. Returning an error rejects the
// prompt before anything is sent; the error text is shown as a notice.
type Submit func(prompt string) (stream.Request, error)

// Config configures a screen.
type Config struct {
	// Title heads the screen, e.g. "Ask · llama".
	Title string
	// Placeholder is shown in the empty prompt.
	Placeholder string
	// Submit turns a prompt into a request. Required.
	Submit Submit
	// Session owns the in-flight submission. Nil creates one.
	Session *stream.Session
	// Theme styles the screen. Nil uses NewTheme("auto").
	Theme *styles.Theme
	// Markdown formats finished answers. Nil shows them as plain text.
	Markdown *MarkdownRenderer
	// StreamOptions are passed to every Run, e.g. a failure message.
	StreamOptions []stream.Option
	// Copy writes to the clipboard. Nil uses the system clipboard.
	Copy func(string) error
	// Updates delivers header changes while the screen runs. Optional.
	Updates <-chan Update
}

// Model is an interactive screen: a prompt, the streamed answer, and a
// status indicator. Its only state besides widgets is the latest
// stream.State of the current submission.
type Model struct {
	cfg Config

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	state  stream.State
	gen    uint64
	events <-chan stream.Event
	prompt string
	notice string

	ctx  context.Context
	stop context.CancelFunc

	width  int
	height int
}

// New creates a screen.
func New(cfg Config) Model {
	if cfg.Session == nil {
		cfg.Session = stream.NewSession(nil)
	}
	if cfg.Theme == nil {
		cfg.Theme = styles.NewTheme("auto")
	}
	if cfg.Copy == nil {
		cfg.Copy = clipboard.WriteAll
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = cfg.Placeholder
	if ti.Placeholder == "" {
		ti.Placeholder = "Ask a question..."
	}
	ti.CharLimit = 8192
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = cfg.Theme.StatusInFlight

	ctx, stop := context.WithCancel(context.Background())
	m := Model{
		cfg:      cfg,
		input:    ti,
		viewport: vp,
		spinner:  sp,
		ctx:      ctx,
		stop:     stop,
		width:    80,
		height:   24,
	}
	m.refresh()
	return m
}

// State returns the state being displayed.
func (m Model) State() stream.State {
	return m.state
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForUpdate(m.cfg.Updates))
}

// Title returns the current header text.
func (m Model) Title() string {
	return m.cfg.Title
}

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		// Stale submissions are drained but not shown.
		if msg.gen == m.gen {
			m.state = msg.ev.State
			m.refresh()
		}
		return m, waitForEvent(msg.ch, msg.gen)

	case streamClosedMsg:
		if msg.gen == m.gen {
			m.events = nil
		}
		return m, nil

	case updateMsg:
		if msg.u.Title != "" {
			m.cfg.Title = msg.u.Title
		}
		if msg.u.Notice != "" {
			m.notice = msg.u.Notice
		}
		return m, waitForUpdate(m.cfg.Updates)

	case copiedMsg:
		if msg.err != nil {
			m.notice = "Copy failed: " + msg.err.Error()
		} else {
			m.notice = "Copied to clipboard."
		}
		return m, nil

	case spinner.TickMsg:
		if m.state.Status != stream.InFlight {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.cfg.Session.Cancel()
		m.stop()
		return m, tea.Quit

	case "esc":
		if m.cfg.Session.Busy() {
			m.cfg.Session.Cancel()
			return m, nil
		}
		m.stop()
		return m, tea.Quit

	case "enter":
		prompt := strings.TrimSpace(m.input.Value())
		if prompt == "" {
			return m, nil
		}
		return m.submit(prompt)

	case "ctrl+y":
		text := m.state.AccumulatedText
		if text == "" {
			m.notice = "Nothing to copy."
			return m, nil
		}
		copyFn := m.cfg.Copy
		return m, func() tea.Msg { return copiedMsg{err: copyFn(text)} }

	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit starts a new submission. The previous one, if still running, is
// cancelled by the session and its remaining events are ignored.
func (m Model) submit(prompt string) (Model, tea.Cmd) {
	req, err := m.cfg.Submit(prompt)
	if err != nil {
		m.notice = err.Error()
		return m, nil
	}

	m.gen++
	m.prompt = prompt
	m.notice = ""
	m.input.Reset()
	m.state = stream.State{Status: stream.InFlight}
	m.refresh()

	ch := m.cfg.Session.Stream(m.ctx, req, m.cfg.StreamOptions...)
	m.events = ch

	return m, tea.Batch(waitForEvent(ch, m.gen), m.spinner.Tick)
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.cfg.Theme.SetSize(width, height)
	m.input.Width = width - 4
	m.viewport.Width = width
	// title, status, blank, input, help
	m.viewport.Height = max(height-6, 3)
	m.refresh()
}

// refresh re-renders the answer into the viewport, keeping the view pinned
// to the bottom while text arrives.
func (m *Model) refresh() {
	var render func(string) string
	if m.cfg.Markdown != nil {
		render = m.cfg.Markdown.Render
	}
	body := Body(m.state, m.viewport.Width, m.cfg.Theme, render)
	if m.prompt != "" {
		body = m.cfg.Theme.Prompt.Render("> "+m.prompt) + "\n\n" + body
	}
	m.viewport.SetContent(body)
	if m.state.Status == stream.InFlight {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m Model) View() string {
	th := m.cfg.Theme
	var b strings.Builder

	b.WriteString(th.Title.Render(m.cfg.Title))
	b.WriteString("  ")
	b.WriteString(StatusLine(m.state, m.spinner.View(), th))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(th.Warning.Render(m.notice))
	} else {
		b.WriteString(th.Help.Render("enter send · esc cancel · ctrl+y copy · ctrl+c quit"))
	}
	return b.String()
}
