// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package submission

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// =============================================================================
// MULTIPART ENCODING
// =============================================================================

// Form is an encoded multipart body ready to send.
type Form struct {
	Body        *bytes.Buffer
	ContentType string
}

type formBuilder struct {
	buf bytes.Buffer
	w   *multipart.Writer
	err error
}

func newFormBuilder() *formBuilder {
	fb := &formBuilder{}
	fb.w = multipart.NewWriter(&fb.buf)
	return fb
}

func (fb *formBuilder) field(name, value string) {
	if fb.err != nil {
		return
	}
	fb.err = fb.w.WriteField(name, value)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (fb *formBuilder) file(field string, a *Attachment) {
	if fb.err != nil || a == nil {
		return
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(a.Name)))
	ct := a.MIMEType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := fb.w.CreatePart(h)
	if err != nil {
		fb.err = err
		return
	}
	_, fb.err = part.Write(a.Content)
}

func (fb *formBuilder) finish() (*Form, error) {
	if fb.err != nil {
		return nil, fmt.Errorf("encode form: %w", fb.err)
	}
	if err := fb.w.Close(); err != nil {
		return nil, fmt.Errorf("encode form: %w", err)
	}
	return &Form{Body: &fb.buf, ContentType: fb.w.FormDataContentType()}, nil
}

// AskForm encodes a prompt submission: prompt, one models field per selected
// model, model (the primary one), and the optional file.
func AskForm(s Submission) (*Form, error) {
	fb := newFormBuilder()
	fb.field("prompt", s.Prompt)
	for _, m := range s.Models {
		fb.field("models", m)
	}
	fb.field("model", s.Model())
	fb.file("file", s.Attachment)
	return fb.finish()
}

// ImageForm encodes an image analysis submission: image, image_model,
// image_prompt, plus model as an alias read by older backends.
func ImageForm(s Submission) (*Form, error) {
	if s.Attachment == nil {
		return nil, reject(ErrUnsupportedType, "Please choose an image file.")
	}
	fb := newFormBuilder()
	fb.file("image", s.Attachment)
	fb.field("image_model", s.Model())
	fb.field("model", s.Model())
	fb.field("image_prompt", s.Prompt)
	return fb.finish()
}

// UploadForm encodes a batch for the upload manager, one "files" part each.
func UploadForm(files []*Attachment) (*Form, error) {
	fb := newFormBuilder()
	for _, f := range files {
		fb.file("files", f)
	}
	return fb.finish()
}

// ProjectFileForm encodes a single file upload into a project category.
func ProjectFileForm(a *Attachment, projectName, category string) (*Form, error) {
	fb := newFormBuilder()
	fb.file("file", a)
	fb.field("project_name", projectName)
	fb.field("category", category)
	return fb.finish()
}
