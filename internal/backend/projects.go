// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jeranaias/secureai-tui/internal/submission"
	"github.com/jeranaias/secureai-tui/internal/util"
)

// =============================================================================
// PROJECT TYPES
// =============================================================================

// Project is a named workspace on the backend.
type Project struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ProjectPath returns the route a newly created project navigates to.
func ProjectPath(slug string) string {
	return "/project/" + slug
}

// ProjectFile is one file inside a project.
type ProjectFile struct {
	Filename   string  `json:"filename"`
	Category   string  `json:"category"`
	SizeKB     float64 `json:"size_kb"`
	UploadedAt string  `json:"uploaded_at"`
}

// Categories a project file can be tagged with.
var Categories = []string{
	"Site Notes",
	"Gap Analysis",
	"Recommendations",
	"Template",
}

// DefaultCategory is preselected for project uploads.
const DefaultCategory = "Site Notes"

// ValidCategory reports whether c is one of Categories.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Step is one stage of the project workflow.
type Step string

const (
	StepPlan  Step = "plan"
	StepWrite Step = "write"
	StepCheck Step = "check"
)

// Steps in workflow order.
var Steps = []Step{StepPlan, StepWrite, StepCheck}

// ParseStep parses a step name.
func ParseStep(s string) (Step, error) {
	st := Step(strings.ToLower(strings.TrimSpace(s)))
	if err := st.Validate(); err != nil {
		return "", err
	}
	return st, nil
}

// Validate rejects unknown steps.
func (s Step) Validate() error {
	switch s {
	case StepPlan, StepWrite, StepCheck:
		return nil
	}
	return &ClientError{Type: ErrTypeBadRequest, Message: fmt.Sprintf("unknown step %q (want plan, write or check)", string(s))}
}

// Title returns the heading shown for the step.
func (s Step) Title() string {
	switch s {
	case StepPlan:
		return "Plan"
	case StepWrite:
		return "Write"
	case StepCheck:
		return "Check"
	}
	return string(s)
}

// Instruction is the prompt pair for one step.
type Instruction struct {
	System string `json:"system"`
	User   string `json:"user"`
}

// Empty reports whether no prompt has been set.
func (i Instruction) Empty() bool {
	return strings.TrimSpace(i.System) == "" && strings.TrimSpace(i.User) == ""
}

// Instructions maps steps to their saved prompts.
type Instructions map[Step]Instruction

// =============================================================================
// PROJECT MESSAGES
// =============================================================================

const (
	// CreateFailedMessage is shown when the create request fails outright.
	CreateFailedMessage = "Failed to create project."
	// CreateRejectedMessage is shown when the backend refuses without a reason.
	CreateRejectedMessage = "Something went wrong."
)

// DeleteFilePrompt is the confirmation asked before deleting a project file.
func DeleteFilePrompt(name string) string {
	return `Delete file "` + name + `"?`
}

// =============================================================================
// PROJECT OPERATIONS
// =============================================================================

// Projects lists every project.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	return cached(c, keyProjects, func() ([]Project, error) {
		var raw json.RawMessage
		if err := c.getJSON(ctx, "/projects", &raw); err != nil {
			return nil, err
		}
		return decodeProjects(raw)
	})
}

// decodeProjects accepts an array of objects or names, bare or wrapped in
// {"projects": [...]}. A missing slug is derived from the name.
func decodeProjects(raw json.RawMessage) ([]Project, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var wrapped struct {
			Projects json.RawMessage `json:"projects"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode projects", Cause: err}
		}
		raw = wrapped.Projects
		if len(raw) == 0 {
			return []Project{}, nil
		}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode projects", Cause: err}
	}

	projects := make([]Project, 0, len(items))
	for _, item := range items {
		var p struct {
			Name        string `json:"name"`
			ProjectName string `json:"project_name"`
			Slug        string `json:"slug"`
		}
		var name string
		if json.Unmarshal(item, &name) == nil {
			p.Name = name
		} else if err := json.Unmarshal(item, &p); err != nil {
			return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode projects", Cause: err}
		}
		if p.Name == "" {
			p.Name = p.ProjectName
		}
		if p.Slug == "" {
			p.Slug = util.Slugify(p.Name)
		}
		if p.Name == "" {
			p.Name = p.Slug
		}
		projects = append(projects, Project{Name: p.Name, Slug: p.Slug})
	}
	return projects, nil
}

// CreateProject creates a project and returns it with the slug the backend
// assigned. An empty name is refused without a request.
func (c *Client) CreateProject(ctx context.Context, name string) (Project, error) {
	name, err := submission.CheckProjectName(name)
	if err != nil {
		return Project{}, err
	}

	var resp struct {
		Success bool   `json:"success"`
		Slug    string `json:"slug"`
		Error   string `json:"error"`
	}
	body, _ := json.Marshal(map[string]string{"name": name})
	req, err := c.newRequest(ctx, http.MethodPost, "/projects", bytes.NewReader(body), "application/json")
	if err != nil {
		return Project{}, err
	}
	httpResp, err := c.send(c.httpClient, req)
	if err != nil {
		return Project{}, &ClientError{Type: errorType(err), Message: CreateFailedMessage, Cause: err}
	}
	defer httpResp.Body.Close()

	if decodeErr := json.NewDecoder(httpResp.Body).Decode(&resp); decodeErr != nil {
		return Project{}, &ClientError{Type: ErrTypeInvalidResponse, Message: CreateFailedMessage, Cause: decodeErr}
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 || !resp.Success || resp.Slug == "" {
		msg := resp.Error
		if msg == "" {
			msg = CreateRejectedMessage
		}
		return Project{}, &ClientError{Type: ErrTypeBadRequest, Message: msg, StatusCode: httpResp.StatusCode}
	}

	c.logger.Printf("PROJECT_CREATED | name=%q slug=%s", name, resp.Slug)
	c.invalidate(keyProjects)
	return Project{Name: name, Slug: resp.Slug}, nil
}

// Project fetches a project's display name. The slug stands in for the
// name when the backend does not know one.
func (c *Client) Project(ctx context.Context, slug string) (Project, error) {
	var resp struct {
		ProjectName string `json:"project_name"`
	}
	if err := c.getJSON(ctx, pathf("/project/%s", slug), &resp); err != nil {
		return Project{Name: slug, Slug: slug}, err
	}
	name := resp.ProjectName
	if name == "" {
		name = slug
	}
	return Project{Name: name, Slug: slug}, nil
}

// ProjectFiles lists the files of a project.
func (c *Client) ProjectFiles(ctx context.Context, slug string) ([]ProjectFile, error) {
	return cached(c, projectKey(slug, "files"), func() ([]ProjectFile, error) {
		var files []ProjectFile
		if err := c.getJSON(ctx, pathf("/project/%s/files", slug), &files); err != nil {
			return nil, err
		}
		if files == nil {
			files = []ProjectFile{}
		}
		return files, nil
	})
}

// DeleteProjectFile removes a file from a project. Callers confirm with
// DeleteFilePrompt first.
func (c *Client) DeleteProjectFile(ctx context.Context, slug, filename string) error {
	if strings.TrimSpace(filename) == "" {
		return &ClientError{Type: ErrTypeBadRequest, Message: "File name is required"}
	}
	payload := map[string]string{"filename": filename}
	if err := c.postJSON(ctx, pathf("/project/%s/delete-file", slug), payload, nil); err != nil {
		return err
	}
	c.logger.Printf("PROJECT_FILE_DELETED | project=%s name=%s", slug, filename)
	c.invalidatePrefix(projectKey(slug, ""))
	return nil
}

// UploadProjectFile uploads att into a project under category.
func (c *Client) UploadProjectFile(ctx context.Context, slug, category string, att *submission.Attachment) error {
	if !ValidCategory(category) {
		return &ClientError{Type: ErrTypeBadRequest, Message: fmt.Sprintf("unknown category %q", category)}
	}
	if att == nil {
		return &ClientError{Type: ErrTypeBadRequest, Message: "No file selected"}
	}
	if err := submission.CheckAttachment(att, submission.AllowedMIMETypes, submission.MaxAttachmentSize); err != nil {
		return err
	}
	form, err := submission.ProjectFileForm(att, slug, category)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/upload-project-file", form.Body, form.ContentType)
	if err != nil {
		return err
	}
	if err := c.doJSON(req, nil); err != nil {
		return &ClientError{Type: errorType(err), Message: UploadFailedMessage, Cause: err}
	}
	c.logger.Printf("PROJECT_FILE_UPLOADED | project=%s name=%s category=%q", slug, att.Name, category)
	c.invalidatePrefix(projectKey(slug, ""))
	return nil
}

// =============================================================================
// INSTRUCTIONS
// =============================================================================

// Instructions returns the saved prompts of every step. Steps without
// saved prompts are absent.
func (c *Client) Instructions(ctx context.Context, slug string) (Instructions, error) {
	var raw map[string]Instruction
	if err := c.getJSON(ctx, pathf("/project/%s/instructions", slug), &raw); err != nil {
		return nil, err
	}
	out := make(Instructions, len(raw))
	for k, v := range raw {
		if st, err := ParseStep(k); err == nil {
			out[st] = v
		}
	}
	return out, nil
}

// SaveInstructions stores the prompts of one step.
func (c *Client) SaveInstructions(ctx context.Context, slug string, step Step, ins Instruction) error {
	if err := step.Validate(); err != nil {
		return err
	}
	payload := map[Step]Instruction{step: ins}
	if err := c.postJSON(ctx, pathf("/project/%s/instructions", slug), payload, nil); err != nil {
		return err
	}
	c.logger.Printf("INSTRUCTIONS_SAVED | project=%s step=%s", slug, step)
	return nil
}
