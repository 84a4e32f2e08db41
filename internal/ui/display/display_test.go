// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package display

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/secureai-tui/internal/stream"
	"github.com/jeranaias/secureai-tui/internal/ui/styles"
)

// =============================================================================
// HELPERS
// =============================================================================

func textResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func staticRequest(status int, body string) stream.Request {
	return func(ctx context.Context) (*http.Response, error) {
		return textResponse(status, body), nil
	}
}

func testTheme() *styles.Theme {
	return styles.NewTheme("dark")
}

// runToEnd drives a submission through Update until its channel closes.
func runToEnd(t *testing.T, m Model) Model {
	t.Helper()
	ch, gen := m.events, m.gen
	require.NotNil(t, ch)
	for ev := range ch {
		next, _ := m.Update(eventMsg{gen: gen, ev: ev, ch: ch})
		m = next.(Model)
	}
	next, _ := m.Update(streamClosedMsg{gen: gen})
	return next.(Model)
}

func quietSession() *stream.Session {
	return stream.NewSession(log.New(io.Discard, "", 0))
}

// =============================================================================
// RENDER TESTS
// =============================================================================

func TestStatusLabels(t *testing.T) {
	tests := []struct {
		status stream.Status
		label  string
		glyph  string
	}{
		{stream.Idle, "Ready", styles.GlyphIdle},
		{stream.InFlight, "Generating...", styles.GlyphInFlight},
		{stream.Done, "Done", styles.GlyphDone},
		{stream.Errored, "Error", styles.GlyphError},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.label, StatusLabel(tt.status))
			assert.Equal(t, tt.glyph, StatusGlyph(tt.status))
			assert.Contains(t, StatusLine(stream.State{Status: tt.status}, "", testTheme()), tt.label)
		})
	}
}

func TestStatusLine_SpinnerOnlyInFlight(t *testing.T) {
	th := testTheme()
	assert.Contains(t, StatusLine(stream.State{Status: stream.InFlight}, "/", th), "/ Generating...")
	assert.NotContains(t, StatusLine(stream.State{Status: stream.Done}, "/", th), "/")
}

func TestBody(t *testing.T) {
	th := testTheme()
	upper := strings.ToUpper

	assert.Contains(t, Body(stream.State{}, 0, th, nil), IdleHint)
	assert.Equal(t, "partial", Body(stream.State{Status: stream.InFlight, AccumulatedText: "partial"}, 0, th, upper),
		"text still arriving is never formatted")
	assert.Equal(t, "DONE", Body(stream.State{Status: stream.Done, AccumulatedText: "done"}, 0, th, upper))
	assert.Equal(t, "done", Body(stream.State{Status: stream.Done, AccumulatedText: "done"}, 0, th, nil))

	errored := stream.State{
		Status:          stream.Errored,
		AccumulatedText: "Partial ans",
		Err:             &stream.StreamError{Message: stream.GenerationMessage},
	}
	body := Body(errored, 0, th, upper)
	assert.True(t, strings.HasPrefix(body, "Partial ans"), "partial text is kept and not formatted")
	assert.Contains(t, body, stream.GenerationMessage)

	empty := stream.State{Status: stream.Errored, Err: &stream.StreamError{Message: stream.EmptyBodyMessage}}
	assert.Contains(t, Body(empty, 0, th, nil), stream.EmptyBodyMessage)
}

func TestBody_Wraps(t *testing.T) {
	out := Body(stream.State{Status: stream.InFlight, AccumulatedText: "one two three four five six"}, 10, testTheme(), nil)
	assert.Greater(t, strings.Count(out, "\n"), 0)
}

// =============================================================================
// MARKDOWN AND HIGHLIGHT TESTS
// =============================================================================

func TestMarkdownRenderer(t *testing.T) {
	r := NewMarkdownRenderer(60, "notty")
	out := r.Render("# Title\n\nSome **bold** text.")
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "bold")
	assert.NotContains(t, out, "**")

	var nilRenderer *MarkdownRenderer
	assert.Equal(t, "raw", nilRenderer.Render("raw"))
	assert.Equal(t, "", r.Render(""))
}

func TestHighlight(t *testing.T) {
	out := Highlight("func main() {}", "go")
	assert.Contains(t, out, "\x1b[")
	assert.Contains(t, out, "main")

	// Unknown language still returns the code.
	assert.Contains(t, Highlight("plain words", "no-such-lang"), "plain words")
}

func TestHighlightFences(t *testing.T) {
	text := "Intro line.\n```go\nx := 1\n```\nOutro line."
	out := HighlightFences(text)
	assert.True(t, strings.HasPrefix(out, "Intro line.\n```go\n"))
	assert.True(t, strings.HasSuffix(out, "\n```\nOutro line."))
	assert.Contains(t, out, "\x1b[")

	assert.Equal(t, "no fences here", HighlightFences("no fences here"))
}

// =============================================================================
// SINK TESTS
// =============================================================================

func TestSink_LiveWritesDeltas(t *testing.T) {
	var out, status bytes.Buffer
	sink := NewSink(&out, WithStatus(&status))

	st := stream.Consume(context.Background(), textResponse(http.StatusOK, "streamed answer"), sink.Handle)

	assert.Equal(t, stream.Done, st.Status)
	assert.Equal(t, "streamed answer\n", out.String())
	assert.Empty(t, status.String())
	assert.NoError(t, sink.Err())
	assert.Equal(t, "streamed answer", sink.State().AccumulatedText)
}

func TestSink_ErrorGoesToStatus(t *testing.T) {
	var out, status bytes.Buffer
	sink := NewSink(&out, WithStatus(&status))

	stream.Consume(context.Background(), &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, sink.Handle)

	assert.Empty(t, out.String())
	assert.Equal(t, stream.EmptyBodyMessage+"\n", status.String())
	assert.Error(t, sink.Err())
}

func TestSink_FormatterBuffersUntilDone(t *testing.T) {
	var out, status bytes.Buffer
	sink := NewSink(&out, WithStatus(&status), WithFormatter(strings.ToUpper), WithProgress())

	sink.Handle(stream.Event{State: stream.State{Status: stream.InFlight}})
	sink.Handle(stream.Event{Delta: "hello", State: stream.State{Status: stream.InFlight, AccumulatedText: "hello"}})
	assert.Empty(t, out.String())
	assert.Contains(t, status.String(), StatusLabel(stream.InFlight))

	sink.Handle(stream.Event{State: stream.State{Status: stream.Done, AccumulatedText: "hello"}})
	assert.Equal(t, "HELLO\n", out.String())
	assert.True(t, strings.HasSuffix(status.String(), "\r\x1b[K"))
}

func TestSink_FormatterKeepsPartialOnError(t *testing.T) {
	var out, status bytes.Buffer
	sink := NewSink(&out, WithStatus(&status), WithFormatter(strings.ToUpper))

	sink.Handle(stream.Event{State: stream.State{
		Status:          stream.Errored,
		AccumulatedText: "Partial ans",
		Err:             &stream.StreamError{Message: stream.GenerationMessage, Cause: errors.New("reset")},
	}})
	assert.Equal(t, "Partial ans\n", out.String())
	assert.Equal(t, stream.GenerationMessage+"\n", status.String())
}

// =============================================================================
// MODEL TESTS
// =============================================================================

func newTestModel(submit Submit, copyFn func(string) error) Model {
	return New(Config{
		Title:   "Ask",
		Submit:  submit,
		Session: quietSession(),
		Theme:   testTheme(),
		Copy:    copyFn,
	})
}

func TestModel_IdleView(t *testing.T) {
	m := newTestModel(nil, nil)
	assert.Equal(t, stream.Idle, m.State().Status)
	assert.Contains(t, m.View(), IdleHint)
	assert.Contains(t, m.View(), "Ready")
}

func TestModel_SubmitStreamsToDone(t *testing.T) {
	var prompts []string
	m := newTestModel(func(prompt string) (stream.Request, error) {
		prompts = append(prompts, prompt)
		return staticRequest(http.StatusOK, "The answer is 42."), nil
	}, nil)

	m, cmd := m.submit("what is it?")
	require.NotNil(t, cmd)
	assert.Equal(t, stream.InFlight, m.State().Status)
	assert.Contains(t, m.View(), "Generating...")

	m = runToEnd(t, m)
	assert.Equal(t, []string{"what is it?"}, prompts)
	assert.Equal(t, stream.Done, m.State().Status)
	assert.Equal(t, "The answer is 42.", m.State().AccumulatedText)
	assert.Contains(t, m.View(), "The answer is 42.")
	assert.Contains(t, m.View(), "> what is it?")
	assert.Nil(t, m.events)
}

func TestModel_ErrorKeepsPartialText(t *testing.T) {
	m := newTestModel(func(string) (stream.Request, error) {
		return staticRequest(http.StatusOK, "Partial\n[Error: model crashed]"), nil
	}, nil)

	m, _ = m.submit("q")
	m = runToEnd(t, m)
	assert.Equal(t, stream.Errored, m.State().Status)
	assert.Contains(t, m.View(), "Partial")
	assert.Contains(t, m.View(), "model crashed")
	assert.Contains(t, m.View(), "Error")
}

func TestModel_SubmitRejected(t *testing.T) {
	m := newTestModel(func(string) (stream.Request, error) {
		return nil, errors.New("File too large. Max allowed size is 25 MB.")
	}, nil)

	m, cmd := m.submit("q")
	assert.Nil(t, cmd)
	assert.Equal(t, stream.Idle, m.State().Status)
	assert.Contains(t, m.View(), "25 MB")
}

func TestModel_StaleEventsIgnored(t *testing.T) {
	m := newTestModel(nil, nil)
	m.gen = 2
	m.state = stream.State{Status: stream.InFlight, AccumulatedText: "current"}

	ch := make(chan stream.Event)
	close(ch)
	next, cmd := m.Update(eventMsg{gen: 1, ev: stream.Event{State: stream.State{Status: stream.Done, AccumulatedText: "old"}}, ch: ch})
	m = next.(Model)
	assert.Equal(t, "current", m.State().AccumulatedText)
	require.NotNil(t, cmd, "stale channel is still drained")
	assert.Equal(t, streamClosedMsg{gen: 1}, cmd())
}

func TestModel_EnterSubmitsInput(t *testing.T) {
	m := newTestModel(func(string) (stream.Request, error) {
		return staticRequest(http.StatusOK, "ok"), nil
	}, nil)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "empty prompt does nothing")
	m = next.(Model)

	m.input.SetValue("  hello  ")
	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	assert.NotNil(t, cmd)
	assert.Equal(t, "hello", m.prompt)
	assert.Empty(t, m.input.Value())
	runToEnd(t, m)
}

func TestModel_CopyAnswer(t *testing.T) {
	var copied string
	m := newTestModel(nil, func(s string) error {
		copied = s
		return nil
	})

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	m = next.(Model)
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "Nothing to copy.")

	m.state = stream.State{Status: stream.Done, AccumulatedText: "answer text"}
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	require.NotNil(t, cmd)
	next, _ = m.Update(cmd())
	m = next.(Model)
	assert.Equal(t, "answer text", copied)
	assert.Contains(t, m.View(), "Copied to clipboard.")
}

func TestModel_CtrlCQuits(t *testing.T) {
	m := newTestModel(nil, nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModel_Resize(t *testing.T) {
	m := newTestModel(nil, nil)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = next.(Model)
	assert.Equal(t, 100, m.viewport.Width)
	assert.Equal(t, 24, m.viewport.Height)
}

func TestModel_UpdatesChangeHeader(t *testing.T) {
	updates := make(chan Update, 1)
	m := New(Config{
		Title:   "SecureAI · llama",
		Session: quietSession(),
		Theme:   testTheme(),
		Updates: updates,
	})
	require.NotNil(t, m.Init())

	updates <- Update{Title: "SecureAI · mistral", Notice: "Settings reloaded."}
	msg := waitForUpdate(updates)()
	next, cmd := m.Update(msg)
	m = next.(Model)

	assert.Equal(t, "SecureAI · mistral", m.Title())
	assert.Contains(t, m.View(), "SecureAI · mistral")
	assert.Contains(t, m.View(), "Settings reloaded.")
	assert.NotNil(t, cmd, "keeps listening")

	close(updates)
	assert.Nil(t, waitForUpdate(updates)())
	assert.Nil(t, waitForUpdate(nil))
}
