// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/jeranaias/secureai-tui/internal/stream"
	"github.com/jeranaias/secureai-tui/internal/submission"
)

// =============================================================================
// GENERATION (STREAMED)
// =============================================================================

// Generation endpoints hand the response back unread, whatever its status:
// the stream consumer owns the body and turns non-OK answers into an
// Errored state.

// Ask posts a prompt submission to /ask.
func (c *Client) Ask(ctx context.Context, sub submission.Submission) (*http.Response, error) {
	form, err := submission.AskForm(sub)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/ask", form.Body, form.ContentType)
	if err != nil {
		return nil, err
	}
	c.logger.Printf("ASK | id=%s model=%s attachment=%t", sub.ID, sub.Model(), sub.HasAttachment())
	return c.stream(req, keyStats, keyListStat)
}

// AnalyzeImage posts an image submission to /analyze-image.
func (c *Client) AnalyzeImage(ctx context.Context, sub submission.Submission) (*http.Response, error) {
	form, err := submission.ImageForm(sub)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/analyze-image", form.Body, form.ContentType)
	if err != nil {
		return nil, err
	}
	c.logger.Printf("ANALYZE_IMAGE | id=%s model=%s size=%d", sub.ID, sub.Model(), sub.Attachment.Size)
	return c.stream(req, keyStats, keyListStat, keyFiles)
}

// RunStep runs one project step with the given instructions.
func (c *Client) RunStep(ctx context.Context, slug string, step Step, ins Instruction) (*http.Response, error) {
	if err := step.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(ins)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}
	req, err := c.newRequest(ctx, http.MethodPost, pathf("/project/%s/run-step/%s", slug, string(step)),
		bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	c.logger.Printf("RUN_STEP | project=%s step=%s", slug, step)
	return c.stream(req)
}

func (c *Client) stream(req *http.Request, invalidates ...string) (*http.Response, error) {
	resp, err := c.send(c.streamClient, req)
	if err != nil {
		return nil, err
	}
	c.invalidate(invalidates...)
	return resp, nil
}

// =============================================================================
// SESSION ADAPTERS
// =============================================================================

// AskRequest adapts Ask for stream.Session.Run.
func (c *Client) AskRequest(sub submission.Submission) stream.Request {
	return func(ctx context.Context) (*http.Response, error) {
		return c.Ask(ctx, sub)
	}
}

// ImageRequest adapts AnalyzeImage for stream.Session.Run.
func (c *Client) ImageRequest(sub submission.Submission) stream.Request {
	return func(ctx context.Context) (*http.Response, error) {
		return c.AnalyzeImage(ctx, sub)
	}
}

// StepRequest adapts RunStep for stream.Session.Run.
func (c *Client) StepRequest(slug string, step Step, ins Instruction) stream.Request {
	return func(ctx context.Context) (*http.Response, error) {
		return c.RunStep(ctx, slug, step, ins)
	}
}
