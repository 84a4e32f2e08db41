// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/jeranaias/secureai-tui/internal/submission"
	"github.com/jeranaias/secureai-tui/internal/util"
)

// =============================================================================
// FILE RECORDS
// =============================================================================

// Source says how a file reached the backend.
type Source string

const (
	SourceManualUpload  Source = "Manual Upload"
	SourcePDFAnalysis   Source = "PDF Analysis"
	SourceImageAnalysis Source = "Image Analysis"
	SourceOther         Source = "Other"
)

// ParseSource maps a backend label to a Source; unknown labels are Other.
func ParseSource(label string) Source {
	switch Source(strings.TrimSpace(label)) {
	case SourceManualUpload:
		return SourceManualUpload
	case SourcePDFAnalysis:
		return SourcePDFAnalysis
	case SourceImageAnalysis:
		return SourceImageAnalysis
	default:
		return SourceOther
	}
}

// Folder is a backend storage folder.
type Folder string

const (
	FolderFiles  Folder = "files"
	FolderRAG    Folder = "rag"
	FolderImages Folder = "images"
)

// Folders lists every valid folder.
var Folders = []Folder{FolderFiles, FolderRAG, FolderImages}

// Valid reports whether f is a folder the backend knows.
func (f Folder) Valid() bool {
	switch f {
	case FolderFiles, FolderRAG, FolderImages:
		return true
	}
	return false
}

// DefaultFolder returns the folder a file with the given source lives in.
func (s Source) DefaultFolder() Folder {
	switch s {
	case SourcePDFAnalysis:
		return FolderRAG
	case SourceImageAnalysis:
		return FolderImages
	default:
		return FolderFiles
	}
}

// SizeLabel is a file size as displayed. The backend reports either a
// preformatted string ("12.5 KB") or a byte count.
type SizeLabel string

// UnmarshalJSON accepts a string or a number of bytes.
func (s *SizeLabel) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = SizeLabel(str)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = SizeLabel(util.FormatBytes(int64(n)))
	return nil
}

// FileRecord is one entry of the upload manager listing.
type FileRecord struct {
	Name       string    `json:"name"`
	Size       SizeLabel `json:"size"`
	Type       string    `json:"type"`
	Source     Source    `json:"source"`
	Folder     Folder    `json:"folder"`
	UploadedAt string    `json:"upload_date,omitempty"`
}

func (r *FileRecord) normalize() {
	r.Source = ParseSource(string(r.Source))
	if !r.Folder.Valid() {
		r.Folder = r.Source.DefaultFolder()
	}
	if r.Type == "" {
		if i := strings.LastIndexByte(r.Name, '.'); i >= 0 {
			r.Type = strings.ToUpper(r.Name[i+1:])
		}
	}
}

// =============================================================================
// FILE OPERATIONS
// =============================================================================

// UploadFailedMessage is shown when the upload request fails.
const UploadFailedMessage = "❌ Upload failed"

// ListFiles returns every uploaded file across all folders, sorted by
// folder then name.
func (c *Client) ListFiles(ctx context.Context) ([]FileRecord, error) {
	return cached(c, keyFiles, func() ([]FileRecord, error) {
		var raw json.RawMessage
		if err := c.getJSON(ctx, "/list-files", &raw); err != nil {
			return nil, err
		}
		records, err := decodeFileList(raw)
		if err != nil {
			return nil, err
		}
		for i := range records {
			records[i].normalize()
		}
		sort.SliceStable(records, func(i, j int) bool {
			if records[i].Folder != records[j].Folder {
				return records[i].Folder < records[j].Folder
			}
			return records[i].Name < records[j].Name
		})
		return records, nil
	})
}

// decodeFileList accepts a bare array or {"files": [...]}.
func decodeFileList(raw json.RawMessage) ([]FileRecord, error) {
	raw = bytes.TrimSpace(raw)
	var records []FileRecord
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode file list", Cause: err}
		}
		return records, nil
	}
	var wrapped struct {
		Files []FileRecord `json:"files"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode file list", Cause: err}
	}
	return wrapped.Files, nil
}

// Upload sends a batch of files. Every file is validated first; if any
// fails, nothing is sent and the error carries the rejection message.
func (c *Client) Upload(ctx context.Context, files []*submission.Attachment) error {
	if err := submission.CheckBatch(files); err != nil {
		return err
	}
	form, err := submission.UploadForm(files)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/upload", form.Body, form.ContentType)
	if err != nil {
		return err
	}
	if err := c.doJSON(req, nil); err != nil {
		c.logger.Printf("UPLOAD_FAILED | files=%d error=%v", len(files), err)
		return &ClientError{Type: errorType(err), Message: UploadFailedMessage, Cause: err}
	}
	c.logger.Printf("UPLOAD | files=%d", len(files))
	c.invalidate(keyFiles)
	return nil
}

// DeleteFile removes name from folder. An invalid folder is rejected
// without a request.
func (c *Client) DeleteFile(ctx context.Context, name string, folder Folder) error {
	if !folder.Valid() {
		return &ClientError{Type: ErrTypeBadRequest, Message: "Invalid folder"}
	}
	if strings.TrimSpace(name) == "" {
		return &ClientError{Type: ErrTypeBadRequest, Message: "File name is required"}
	}
	payload := map[string]string{"filename": name, "folder": string(folder)}
	if err := c.postJSON(ctx, "/delete-file", payload, nil); err != nil {
		return err
	}
	c.logger.Printf("FILE_DELETED | name=%s folder=%s", name, folder)
	c.invalidate(keyFiles)
	return nil
}

// RebuildIndex asks the backend to re-embed the document folders and
// returns its status message.
func (c *Client) RebuildIndex(ctx context.Context) (string, error) {
	var resp struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	}
	if err := c.postJSON(ctx, "/rebuild-index", struct{}{}, &resp); err != nil {
		return "", err
	}
	c.logger.Printf("INDEX_REBUILT | message=%q", resp.Message)
	if resp.Message != "" {
		return resp.Message, nil
	}
	if resp.Status != "" {
		return resp.Status, nil
	}
	return "Index rebuilt.", nil
}

func errorType(err error) ErrorType {
	if ce, ok := err.(*ClientError); ok {
		return ce.Type
	}
	return ErrTypeUnknown
}
