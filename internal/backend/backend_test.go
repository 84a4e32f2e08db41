// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/secureai-tui/internal/stream"
	"github.com/jeranaias/secureai-tui/internal/submission"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestClient(t *testing.T, h http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClientWithConfig(&ClientConfig{
		BaseURL: srv.URL + "/",
		Timeout: 5 * time.Second,
		Logger:  log.New(io.Discard, "", 0),
	})
	return c, srv
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func TestNewClientWithConfig_Defaults(t *testing.T) {
	c := NewClientWithConfig(&ClientConfig{})
	if c.BaseURL() != "http://localhost:5050" {
		t.Errorf("BaseURL = %q", c.BaseURL())
	}
	if c.Cache() == nil {
		t.Error("cache should be enabled by default")
	}

	c = NewClientWithConfig(&ClientConfig{BaseURL: "http://h:1///", CacheSize: -1})
	if c.URL("ask") != "http://h:1/ask" {
		t.Errorf("URL = %q", c.URL("ask"))
	}
	if c.Cache() != nil {
		t.Error("negative CacheSize should disable the cache")
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: url, Logger: log.New(io.Discard, "", 0)})
	_, err := c.ListFiles(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnreachable(err), "got %v", err)
}

func TestClientError_Is(t *testing.T) {
	err := fmt.Errorf("wrap: %w", &ClientError{Type: ErrTypeNotFound, Message: "File not found", StatusCode: 404})
	assert.True(t, IsNotFound(err))
	assert.False(t, errors.Is(err, ErrBadRequest))
	assert.False(t, IsNotFound(errors.New("plain")))
}

// =============================================================================
// GENERATION TESTS
// =============================================================================

func TestAsk_StreamsMultipart(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/ask" {
			http.NotFound(w, r)
			return
		}
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "What is RAG?", r.FormValue("prompt"))
		assert.Equal(t, []string{"llama"}, r.MultipartForm.Value["models"])

		w.Header().Set("Content-Type", "text/plain")
		for _, p := range []string{"Retrieval ", "augmented ", "generation."} {
			_, _ = io.WriteString(w, p)
			w.(http.Flusher).Flush()
		}
	}))

	sub, err := submission.NewBuilder().Build("What is RAG?", nil, "llama")
	require.NoError(t, err)

	session := stream.NewSession(log.New(io.Discard, "", 0))
	st := session.Run(context.Background(), c.AskRequest(sub), nil)

	assert.Equal(t, stream.Done, st.Status)
	assert.Equal(t, "Retrieval augmented generation.", st.AccumulatedText)
}

func TestAsk_CacheHitJSON(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]interface{}{"model": "llama", "answer": "Cached answer", "time_ms": 0})
	}))
	sub, _ := submission.NewBuilder().Build("q", nil, "llama")

	resp, err := c.Ask(context.Background(), sub)
	require.NoError(t, err)
	st := stream.Consume(context.Background(), resp, nil)

	assert.Equal(t, stream.Done, st.Status)
	assert.Equal(t, "Cached answer", st.AccumulatedText)
}

func TestAnalyzeImage_FailureMessage(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "bakllava", r.FormValue("image_model"))
		assert.Equal(t, submission.DefaultImagePrompt, r.FormValue("image_prompt"))
		if _, fh, err := r.FormFile("image"); assert.NoError(t, err) {
			assert.Equal(t, "cat.png", fh.Filename)
		}

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(500)
		_, _ = io.WriteString(w, "❌ Error: model crashed")
	}))

	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
	sub, err := submission.NewImageBuilder().Build("", submission.FromBytes("cat.png", png), "bakllava")
	require.NoError(t, err)

	st := stream.NewSession(nil).Run(context.Background(), c.ImageRequest(sub), nil,
		stream.WithFailureMessage(stream.ImageFailMessage))

	assert.Equal(t, stream.Errored, st.Status)
	assert.Empty(t, st.AccumulatedText)
	assert.Equal(t, stream.ImageFailMessage, st.ErrorText())

	var se *stream.StreamError
	require.True(t, errors.As(st.Err, &se))
	assert.Equal(t, "❌ Error: model crashed", se.Detail)
}

func TestAnalyzeImage_BackendDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := NewClientWithConfig(&ClientConfig{BaseURL: url, Logger: log.New(io.Discard, "", 0)})

	sub, err := submission.NewImageBuilder().Build("", &submission.Attachment{Name: "a.png", Size: 3, MIMEType: "image/png", Content: []byte("abc")}, "bakllava")
	require.NoError(t, err)

	st := stream.NewSession(nil).Run(context.Background(), c.ImageRequest(sub), nil,
		stream.WithFailureMessage(stream.ImageFailMessage))
	assert.Equal(t, stream.Errored, st.Status)
	assert.Equal(t, stream.ImageFailMessage, st.Display())
}

func TestRunStep(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/project/risk-audit/run-step/plan", r.URL.Path)
		var ins Instruction
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&ins))
		assert.Equal(t, Instruction{System: "You are an auditor.", User: "Draft a plan."}, ins)
		_, _ = io.WriteString(w, "1. Scope")
	}))

	resp, err := c.RunStep(context.Background(), "risk-audit", StepPlan, Instruction{System: "You are an auditor.", User: "Draft a plan."})
	require.NoError(t, err)
	st := stream.Consume(context.Background(), resp, nil)
	assert.Equal(t, "1. Scope", st.AccumulatedText)

	_, err = c.RunStep(context.Background(), "risk-audit", Step("deploy"), Instruction{})
	assert.ErrorIs(t, err, ErrBadRequest)
}

// =============================================================================
// FILE TESTS
// =============================================================================

func TestListFiles_ShapesAndCache(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/list-files":
			calls.Add(1)
			writeJSON(w, 200, map[string]interface{}{"files": []map[string]interface{}{
				{"name": "scan.png", "source": "Image Analysis", "type": "PNG", "size": "12.5 KB", "upload_date": "2025-01-02", "folder": "images"},
				{"name": "policy.pdf", "source": "Manual Upload", "size": 2048, "folder": "files"},
				{"name": "notes.txt", "source": "Something Else"},
			}})
		case "/upload":
			w.WriteHeader(200)
		default:
			http.NotFound(w, r)
		}
	}))

	files, err := c.ListFiles(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 3)

	// Sorted by folder, then name.
	assert.Equal(t, "notes.txt", files[0].Name)
	assert.Equal(t, SourceOther, files[0].Source)
	assert.Equal(t, FolderFiles, files[0].Folder)
	assert.Equal(t, "TXT", files[0].Type)

	assert.Equal(t, "policy.pdf", files[1].Name)
	assert.Equal(t, SizeLabel("2.0 KB"), files[1].Size)

	assert.Equal(t, "scan.png", files[2].Name)
	assert.Equal(t, SourceImageAnalysis, files[2].Source)
	assert.Equal(t, SizeLabel("12.5 KB"), files[2].Size)

	_, err = c.ListFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "second listing served from cache")

	require.NoError(t, c.Upload(context.Background(), []*submission.Attachment{submission.FromBytes("a.txt", []byte("a"))}))
	_, err = c.ListFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "upload invalidates the listing")
}

func TestListFiles_BareArray(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"name":"a.pdf","source":"PDF Analysis","folder":"rag"}]`)
	}))
	files, err := c.ListFiles(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, SourcePDFAnalysis, files[0].Source)
}

func TestUpload_RejectsBatchWithoutRequest(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	big := &submission.Attachment{Name: "big.pdf", Size: 30 * 1024 * 1024, MIMEType: submission.MIMEPDF}
	err := c.Upload(context.Background(), []*submission.Attachment{submission.FromBytes("ok.txt", []byte("x")), big})

	require.Error(t, err)
	assert.Equal(t, submission.UploadRejectedMessage, submission.UserMessage(err))
	assert.Equal(t, int32(0), calls.Load())
}

func TestUpload_Failure(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Len(t, r.MultipartForm.File["files"], 2)
		w.WriteHeader(500)
	}))

	err := c.Upload(context.Background(), []*submission.Attachment{
		submission.FromBytes("a.txt", []byte("a")),
		submission.FromBytes("b.txt", []byte("b")),
	})
	require.Error(t, err)

	var ce *ClientError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, UploadFailedMessage, ce.Message)
}

func TestDeleteFile(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["filename"] == "missing.pdf" {
			writeJSON(w, 404, map[string]string{"error": "File not found"})
			return
		}
		assert.Equal(t, "rag", body["folder"])
		writeJSON(w, 200, map[string]string{"message": "File deleted successfully"})
	}))

	assert.NoError(t, c.DeleteFile(context.Background(), "doc.pdf", FolderRAG))

	err := c.DeleteFile(context.Background(), "missing.pdf", FolderRAG)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "File not found")

	err = c.DeleteFile(context.Background(), "doc.pdf", Folder("tmp"))
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestRebuildIndex(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rebuild-index", r.URL.Path)
		writeJSON(w, 200, map[string]string{"message": "Index rebuilt with 12 chunks"})
	}))
	msg, err := c.RebuildIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Index rebuilt with 12 chunks", msg)
}

// =============================================================================
// PROJECT TESTS
// =============================================================================

func TestCreateProject(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["name"] == "Taken" {
			writeJSON(w, 409, map[string]interface{}{"success": false, "error": "Project already exists"})
			return
		}
		writeJSON(w, 200, map[string]interface{}{"success": true, "slug": "risk-audit"})
	}))

	p, err := c.CreateProject(context.Background(), "Risk Audit")
	require.NoError(t, err)
	assert.Equal(t, "risk-audit", p.Slug)
	assert.Equal(t, "/project/risk-audit", ProjectPath(p.Slug))

	_, err = c.CreateProject(context.Background(), "Taken")
	require.Error(t, err)
	assert.Equal(t, "Project already exists", err.Error())

	_, err = c.CreateProject(context.Background(), "  ")
	assert.Equal(t, "Project name is required.", submission.UserMessage(err))
}

func TestCreateProject_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := NewClientWithConfig(&ClientConfig{BaseURL: url, Logger: log.New(io.Discard, "", 0)})

	_, err := c.CreateProject(context.Background(), "Risk Audit")
	var ce *ClientError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, CreateFailedMessage, ce.Message)
}

func TestProjects_Shapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []Project
	}{
		{"objects", `[{"name":"Risk Audit","slug":"risk-audit"}]`, []Project{{"Risk Audit", "risk-audit"}}},
		{"names", `["Risk Audit","Q3 Review"]`, []Project{{"Risk Audit", "risk-audit"}, {"Q3 Review", "q3-review"}}},
		{"wrapped", `{"projects":[{"project_name":"Gap Study"}]}`, []Project{{"Gap Study", "gap-study"}}},
		{"empty wrapper", `{}`, []Project{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeProjects(json.RawMessage(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProject_FallsBackToSlug(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/project/known" {
			writeJSON(w, 200, map[string]string{"project_name": "Known Project"})
			return
		}
		writeJSON(w, 200, map[string]string{})
	}))

	p, err := c.Project(context.Background(), "known")
	require.NoError(t, err)
	assert.Equal(t, "Known Project", p.Name)

	p, err = c.Project(context.Background(), "unnamed")
	require.NoError(t, err)
	assert.Equal(t, "unnamed", p.Name)
}

func TestProjectFiles_DeleteInvalidates(t *testing.T) {
	var lists atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/project/risk-audit/files":
			lists.Add(1)
			writeJSON(w, 200, []ProjectFile{{Filename: "notes.txt", Category: "Site Notes", SizeKB: 1.5, UploadedAt: "2025-03-01"}})
		case "/project/risk-audit/delete-file":
			writeJSON(w, 200, map[string]string{"message": "deleted"})
		default:
			http.NotFound(w, r)
		}
	}))

	files, err := c.ProjectFiles(context.Background(), "risk-audit")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "Site Notes", files[0].Category)

	_, _ = c.ProjectFiles(context.Background(), "risk-audit")
	assert.Equal(t, int32(1), lists.Load())

	require.NoError(t, c.DeleteProjectFile(context.Background(), "risk-audit", "notes.txt"))
	_, _ = c.ProjectFiles(context.Background(), "risk-audit")
	assert.Equal(t, int32(2), lists.Load())

	assert.Equal(t, `Delete file "notes.txt"?`, DeleteFilePrompt("notes.txt"))
}

func TestUploadProjectFile(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload-project-file", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "risk-audit", r.FormValue("project_name"))
		assert.Equal(t, "Gap Analysis", r.FormValue("category"))
		w.WriteHeader(200)
	}))

	att := submission.FromBytes("gaps.txt", []byte("gap"))
	assert.NoError(t, c.UploadProjectFile(context.Background(), "risk-audit", "Gap Analysis", att))
	assert.ErrorIs(t, c.UploadProjectFile(context.Background(), "risk-audit", "Misc", att), ErrBadRequest)
}

func TestInstructions(t *testing.T) {
	var saved map[string]Instruction
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&saved))
			writeJSON(w, 200, map[string]string{"status": "ok"})
			return
		}
		_, _ = io.WriteString(w, `{"plan":{"system":"S","user":"U"},"bogus":{"system":"x"}}`)
	}))

	ins, err := c.Instructions(context.Background(), "risk-audit")
	require.NoError(t, err)
	assert.Len(t, ins, 1)
	assert.Equal(t, Instruction{System: "S", User: "U"}, ins[StepPlan])

	require.NoError(t, c.SaveInstructions(context.Background(), "risk-audit", StepCheck, Instruction{System: "a", User: "b"}))
	assert.Equal(t, map[string]Instruction{"check": {System: "a", User: "b"}}, saved)
}

func TestParseStep(t *testing.T) {
	for _, s := range []string{"plan", "Write", " check "} {
		_, err := ParseStep(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseStep("review")
	assert.Error(t, err)
}

// =============================================================================
// STATS TESTS
// =============================================================================

func TestRecent_LastTwentyReversed(t *testing.T) {
	var entries []StatEntry
	for i := 0; i < 25; i++ {
		entries = append(entries, StatEntry{Question: fmt.Sprintf("q%02d", i), Model: "llama"})
	}

	got := Recent(entries, RecentLimit)
	require.Len(t, got, 20)
	assert.Equal(t, "q24", got[0].Question)
	assert.Equal(t, "q05", got[19].Question)
	assert.Equal(t, "q00", entries[0].Question, "input untouched")
}

func TestRecent_Dedupe(t *testing.T) {
	entries := []StatEntry{
		{Question: "a", Model: "llama", Timestamp: "1"},
		{Question: "a", Model: "phi", Timestamp: "2"},
		{Question: "a", Model: "llama", Timestamp: "3"},
		{Question: "b", Model: "llama", Timestamp: "4"},
	}
	got := Recent(entries, RecentLimit)
	require.Len(t, got, 3)
	assert.Equal(t, "4", got[0].Timestamp)
	assert.Equal(t, "2", got[1].Timestamp)
	assert.Equal(t, "1", got[2].Timestamp, "first occurrence kept")

	assert.Empty(t, Recent(nil, RecentLimit))
}

func TestStats_RecentFromBackend(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stats", r.URL.Path)
		var sb strings.Builder
		sb.WriteString("[")
		for i := 0; i < 22; i++ {
			if i > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, `{"question":"q%d","model":"llama","timestamp":"t%d"}`, i, i)
		}
		sb.WriteString("]")
		_, _ = io.WriteString(w, sb.String())
	}))

	entries, err := c.Stats(context.Background())
	require.NoError(t, err)
	got := Recent(entries, RecentLimit)
	require.Len(t, got, 20)
	assert.Equal(t, "q21", got[0].Question)
}

// =============================================================================
// CACHE TESTS
// =============================================================================

func TestListingCache(t *testing.T) {
	c := NewListingCache(8, time.Minute)
	c.Add("files", 1)
	c.Add(projectKey("a", "files"), 2)
	c.Add(projectKey("b", "files"), 3)

	_, ok := c.Get("files")
	assert.True(t, ok)
	_, ok = c.Get("nope")
	assert.False(t, ok)

	c.InvalidatePrefix(projectKey("a", ""))
	_, ok = c.Get(projectKey("a", "files"))
	assert.False(t, ok)
	_, ok = c.Get(projectKey("b", "files"))
	assert.True(t, ok)

	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(2), misses)

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestListingCache_Expires(t *testing.T) {
	c := NewListingCache(8, 20*time.Millisecond)
	c.Add("stats", []StatEntry{})
	time.Sleep(60 * time.Millisecond)
	_, ok := c.Get("stats")
	assert.False(t, ok)
}
