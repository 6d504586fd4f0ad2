package server

import (
	"missionctl/internal/search"
)

// Request payloads

type CreateTaskRequest struct {
	ID          *string `json:"id,omitempty"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" enum:"pending,in-progress,completed"`
	Priority    *string `json:"priority,omitempty" enum:"low,medium,high"`
	Owner       *string `json:"owner,omitempty"`
	DueDate     *string `json:"dueDate,omitempty" format:"date-time"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" enum:"pending,in-progress,completed"`
	Priority    *string `json:"priority,omitempty" enum:"low,medium,high"`
	Owner       *string `json:"owner,omitempty"`
	DueDate     *string `json:"dueDate,omitempty" format:"date-time"`
}

type CreateNoteRequest struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

type UpdateNoteRequest struct {
	Content *string `json:"content,omitempty"`
	Pinned  *bool   `json:"pinned,omitempty"`
}

type CreateActivityRequest struct {
	Type    string         `json:"type"`
	Action  string         `json:"action"`
	Details string         `json:"details,omitempty"`
	Actor   string         `json:"actor,omitempty"`
	Meta    map[string]any `json:"meta,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type CreateOutputRequest struct {
	ID      *string  `json:"id,omitempty"`
	Title   string   `json:"title"`
	Type    string   `json:"type" enum:"document,memory,repo,slides"`
	URL     *string  `json:"url,omitempty"`
	Content *string  `json:"content,omitempty"`
	Owner   *string  `json:"owner,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

type CreateProjectRequest struct {
	ID          *string `json:"id,omitempty"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" enum:"active,paused,archived"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" enum:"active,paused,archived"`
}

type TokenRequest struct {
	APIKey string `json:"api_key"`
}

// Response payloads

// SearchResponse reports total as the post-truncation result count, matching
// what the dashboard has always shown.
type SearchResponse struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
	Total   int             `json:"total"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at" format:"date-time"`
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
