package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"missionctl/internal/config"
	"missionctl/internal/domain"
	"missionctl/internal/events"
	"missionctl/internal/search"
	"missionctl/internal/store"
)

// Engine implements the dashboard operations over the flat-file store.
// Every mutation is also appended to the activity log.
type Engine struct {
	Store  *store.Store
	Events events.Writer
	Config *config.Config
	Log    zerolog.Logger
	Now    func() time.Time
}

func New(st *store.Store, cfg *config.Config, logger zerolog.Logger) Engine {
	return Engine{
		Store:  st,
		Events: events.Writer{Store: st},
		Config: cfg,
		Log:    logger,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// logActivity records a mutation; failures are logged, not propagated, so a
// broken activity file never blocks the mutation that already succeeded.
func (e Engine) logActivity(typ, action, details, actor string) {
	w := e.Events
	if w.Now == nil {
		w.Now = e.Now
	}
	if _, err := w.Append(typ, action, details, actor, nil); err != nil {
		e.Log.Warn().Err(err).Str("type", typ).Str("action", action).Msg("activity log append failed")
	}
}

// --- tasks ---

type TaskCreateOptions struct {
	Scope       domain.TaskScope
	ID          string
	Title       string
	Description string
	Status      string
	Priority    string
	Owner       string
	DueDate     string
	Actor       string
}

type TaskFilters struct {
	Status   string
	Priority string
	Owner    string
}

type TaskUpdateOptions struct {
	Scope       domain.TaskScope
	ID          string
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	Owner       *string
	DueDate     *string
	Actor       string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Title == "" {
		return domain.Task{}, errors.New("title is required")
	}
	if opts.Status == "" {
		opts.Status = domain.StatusPending
	}
	if opts.Priority == "" {
		opts.Priority = domain.PriorityMedium
	}
	if !domain.ValidStatus(opts.Status) {
		return domain.Task{}, fmt.Errorf("invalid status %q", opts.Status)
	}
	if !domain.ValidPriority(opts.Priority) {
		return domain.Task{}, fmt.Errorf("invalid priority %q", opts.Priority)
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	t := domain.Task{
		ID:          id,
		Title:       opts.Title,
		Status:      opts.Status,
		Priority:    opts.Priority,
		Description: opts.Description,
		Owner:       opts.Owner,
		DueDate:     opts.DueDate,
		CreatedAt:   e.timestamp(),
	}
	if t.Status == domain.StatusCompleted {
		t.CompletedAt = t.CreatedAt
	}
	tasks, err := e.Store.Tasks(opts.Scope)
	if err != nil {
		return domain.Task{}, err
	}
	for _, existing := range tasks {
		if existing.ID == t.ID {
			return domain.Task{}, fmt.Errorf("task %s already exists", t.ID)
		}
	}
	tasks = append(tasks, t)
	if err := e.Store.SaveTasks(opts.Scope, tasks); err != nil {
		return domain.Task{}, err
	}
	e.logActivity("task", "create", t.Title, opts.Actor)
	return t, nil
}

func (e Engine) ListTasks(ctx context.Context, scope domain.TaskScope, f TaskFilters) ([]domain.Task, error) {
	tasks, err := e.Store.Tasks(scope)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if f.Owner != "" && t.Owner != f.Owner {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (e Engine) GetTask(ctx context.Context, scope domain.TaskScope, id string) (domain.Task, error) {
	tasks, err := e.Store.Tasks(scope)
	if err != nil {
		return domain.Task{}, err
	}
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Task{}, fmt.Errorf("task %s: %w", id, store.ErrNotFound)
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	if opts.Status != nil && !domain.ValidStatus(*opts.Status) {
		return domain.Task{}, fmt.Errorf("invalid status %q", *opts.Status)
	}
	if opts.Priority != nil && !domain.ValidPriority(*opts.Priority) {
		return domain.Task{}, fmt.Errorf("invalid priority %q", *opts.Priority)
	}
	if opts.Title != nil && *opts.Title == "" {
		return domain.Task{}, errors.New("title is required")
	}
	tasks, err := e.Store.Tasks(opts.Scope)
	if err != nil {
		return domain.Task{}, err
	}
	for i, t := range tasks {
		if t.ID != opts.ID {
			continue
		}
		if opts.Title != nil {
			t.Title = *opts.Title
		}
		if opts.Description != nil {
			t.Description = *opts.Description
		}
		if opts.Owner != nil {
			t.Owner = *opts.Owner
		}
		if opts.DueDate != nil {
			t.DueDate = *opts.DueDate
		}
		if opts.Priority != nil {
			t.Priority = *opts.Priority
		}
		if opts.Status != nil && *opts.Status != t.Status {
			t.Status = *opts.Status
			if t.Status == domain.StatusCompleted {
				t.CompletedAt = e.timestamp()
			} else {
				t.CompletedAt = ""
			}
		}
		tasks[i] = t
		if err := e.Store.SaveTasks(opts.Scope, tasks); err != nil {
			return domain.Task{}, err
		}
		e.logActivity("task", "update", t.Title, opts.Actor)
		return t, nil
	}
	return domain.Task{}, fmt.Errorf("task %s: %w", opts.ID, store.ErrNotFound)
}

func (e Engine) CompleteTask(ctx context.Context, scope domain.TaskScope, id, actor string) (domain.Task, error) {
	tasks, err := e.Store.Tasks(scope)
	if err != nil {
		return domain.Task{}, err
	}
	for i, t := range tasks {
		if t.ID != id {
			continue
		}
		t.Status = domain.StatusCompleted
		t.CompletedAt = e.timestamp()
		tasks[i] = t
		if err := e.Store.SaveTasks(scope, tasks); err != nil {
			return domain.Task{}, err
		}
		e.logActivity("task", "complete", t.Title, actor)
		return t, nil
	}
	return domain.Task{}, fmt.Errorf("task %s: %w", id, store.ErrNotFound)
}

func (e Engine) DeleteTask(ctx context.Context, scope domain.TaskScope, id, actor string) error {
	tasks, err := e.Store.Tasks(scope)
	if err != nil {
		return err
	}
	for i, t := range tasks {
		if t.ID != id {
			continue
		}
		tasks = append(tasks[:i], tasks[i+1:]...)
		if err := e.Store.SaveTasks(scope, tasks); err != nil {
			return err
		}
		e.logActivity("task", "delete", t.Title, actor)
		return nil
	}
	return fmt.Errorf("task %s: %w", id, store.ErrNotFound)
}

// --- notes ---

type NoteCreateOptions struct {
	Author  string
	Content string
}

type NoteUpdateOptions struct {
	ID      string
	Content *string
	Pinned  *bool
	Actor   string
}

func (e Engine) CreateNote(ctx context.Context, opts NoteCreateOptions) (domain.Note, error) {
	if opts.Content == "" {
		return domain.Note{}, errors.New("content is required")
	}
	if opts.Author == "" {
		return domain.Note{}, errors.New("author is required")
	}
	n := domain.Note{
		ID:        uuid.NewString(),
		Author:    opts.Author,
		Content:   opts.Content,
		CreatedAt: e.timestamp(),
	}
	notes, err := e.Store.Notes()
	if err != nil {
		return domain.Note{}, err
	}
	notes = append(notes, n)
	if err := e.Store.SaveNotes(notes); err != nil {
		return domain.Note{}, err
	}
	e.logActivity("note", "create", snippet(n.Content), opts.Author)
	return n, nil
}

func (e Engine) ListNotes(ctx context.Context) ([]domain.Note, error) {
	notes, err := e.Store.Notes()
	if err != nil {
		return nil, err
	}
	// pinned notes first, then newest first
	out := make([]domain.Note, 0, len(notes))
	for _, n := range notes {
		if n.Pinned {
			out = append(out, n)
		}
	}
	for i := len(notes) - 1; i >= 0; i-- {
		if !notes[i].Pinned {
			out = append(out, notes[i])
		}
	}
	return out, nil
}

func (e Engine) UpdateNote(ctx context.Context, opts NoteUpdateOptions) (domain.Note, error) {
	if opts.Content != nil && *opts.Content == "" {
		return domain.Note{}, errors.New("content is required")
	}
	notes, err := e.Store.Notes()
	if err != nil {
		return domain.Note{}, err
	}
	for i, n := range notes {
		if n.ID != opts.ID {
			continue
		}
		if opts.Content != nil {
			n.Content = *opts.Content
			n.UpdatedAt = e.timestamp()
		}
		if opts.Pinned != nil {
			n.Pinned = *opts.Pinned
		}
		notes[i] = n
		if err := e.Store.SaveNotes(notes); err != nil {
			return domain.Note{}, err
		}
		action := "update"
		if opts.Pinned != nil && opts.Content == nil {
			action = "pin"
		}
		e.logActivity("note", action, snippet(n.Content), opts.Actor)
		return n, nil
	}
	return domain.Note{}, fmt.Errorf("note %s: %w", opts.ID, store.ErrNotFound)
}

func (e Engine) DeleteNote(ctx context.Context, id, actor string) error {
	notes, err := e.Store.Notes()
	if err != nil {
		return err
	}
	for i, n := range notes {
		if n.ID != id {
			continue
		}
		notes = append(notes[:i], notes[i+1:]...)
		if err := e.Store.SaveNotes(notes); err != nil {
			return err
		}
		e.logActivity("note", "delete", snippet(n.Content), actor)
		return nil
	}
	return fmt.Errorf("note %s: %w", id, store.ErrNotFound)
}

// --- outputs ---

type OutputCreateOptions struct {
	ID      string
	Title   string
	Type    string
	URL     string
	Content string
	Owner   string
	Tags    []string
}

func (e Engine) CreateOutput(ctx context.Context, opts OutputCreateOptions) (domain.Output, error) {
	if opts.Title == "" {
		return domain.Output{}, errors.New("title is required")
	}
	if !domain.ValidOutputType(opts.Type) {
		return domain.Output{}, fmt.Errorf("invalid output type %q", opts.Type)
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	o := domain.Output{
		ID:        id,
		Title:     opts.Title,
		Type:      opts.Type,
		URL:       opts.URL,
		Content:   opts.Content,
		Owner:     opts.Owner,
		Tags:      opts.Tags,
		CreatedAt: e.timestamp(),
	}
	outputs, err := e.Store.Outputs()
	if err != nil {
		return domain.Output{}, err
	}
	for _, existing := range outputs {
		if existing.ID == o.ID {
			return domain.Output{}, fmt.Errorf("output %s already exists", o.ID)
		}
	}
	outputs = append(outputs, o)
	if err := e.Store.SaveOutputs(outputs); err != nil {
		return domain.Output{}, err
	}
	e.logActivity("output", "create", o.Title, opts.Owner)
	return o, nil
}

func (e Engine) ListOutputs(ctx context.Context, typeFilter string) ([]domain.Output, error) {
	outputs, err := e.Store.Outputs()
	if err != nil {
		return nil, err
	}
	if typeFilter == "" {
		return outputs, nil
	}
	out := make([]domain.Output, 0, len(outputs))
	for _, o := range outputs {
		if o.Type == typeFilter {
			out = append(out, o)
		}
	}
	return out, nil
}

func (e Engine) GetOutput(ctx context.Context, id string) (domain.Output, error) {
	outputs, err := e.Store.Outputs()
	if err != nil {
		return domain.Output{}, err
	}
	for _, o := range outputs {
		if o.ID == id {
			return o, nil
		}
	}
	return domain.Output{}, fmt.Errorf("output %s: %w", id, store.ErrNotFound)
}

func (e Engine) DeleteOutput(ctx context.Context, id, actor string) error {
	outputs, err := e.Store.Outputs()
	if err != nil {
		return err
	}
	for i, o := range outputs {
		if o.ID != id {
			continue
		}
		outputs = append(outputs[:i], outputs[i+1:]...)
		if err := e.Store.SaveOutputs(outputs); err != nil {
			return err
		}
		e.logActivity("output", "delete", o.Title, actor)
		return nil
	}
	return fmt.Errorf("output %s: %w", id, store.ErrNotFound)
}

// --- projects ---

type ProjectCreateOptions struct {
	ID          string
	Name        string
	Description string
	Status      string
	Actor       string
}

type ProjectUpdateOptions struct {
	ID          string
	Name        *string
	Description *string
	Status      *string
	Actor       string
}

func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	if opts.Name == "" {
		return domain.Project{}, errors.New("name is required")
	}
	if opts.Status == "" {
		opts.Status = "active"
	}
	if !validProjectStatus(opts.Status) {
		return domain.Project{}, fmt.Errorf("invalid project status %q", opts.Status)
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	p := domain.Project{
		ID:          id,
		Name:        opts.Name,
		Description: opts.Description,
		Status:      opts.Status,
		CreatedAt:   e.timestamp(),
	}
	projects, err := e.Store.Projects()
	if err != nil {
		return domain.Project{}, err
	}
	for _, existing := range projects {
		if existing.ID == p.ID {
			return domain.Project{}, fmt.Errorf("project %s already exists", p.ID)
		}
	}
	projects = append(projects, p)
	if err := e.Store.SaveProjects(projects); err != nil {
		return domain.Project{}, err
	}
	e.logActivity("project", "create", p.Name, opts.Actor)
	return p, nil
}

func (e Engine) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return e.Store.Projects()
}

func (e Engine) GetProject(ctx context.Context, id string) (domain.Project, error) {
	projects, err := e.Store.Projects()
	if err != nil {
		return domain.Project{}, err
	}
	for _, p := range projects {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Project{}, fmt.Errorf("project %s: %w", id, store.ErrNotFound)
}

func (e Engine) UpdateProject(ctx context.Context, opts ProjectUpdateOptions) (domain.Project, error) {
	if opts.Name != nil && *opts.Name == "" {
		return domain.Project{}, errors.New("name is required")
	}
	if opts.Status != nil && !validProjectStatus(*opts.Status) {
		return domain.Project{}, fmt.Errorf("invalid project status %q", *opts.Status)
	}
	projects, err := e.Store.Projects()
	if err != nil {
		return domain.Project{}, err
	}
	for i, p := range projects {
		if p.ID != opts.ID {
			continue
		}
		if opts.Name != nil {
			p.Name = *opts.Name
		}
		if opts.Description != nil {
			p.Description = *opts.Description
		}
		if opts.Status != nil {
			p.Status = *opts.Status
		}
		projects[i] = p
		if err := e.Store.SaveProjects(projects); err != nil {
			return domain.Project{}, err
		}
		e.logActivity("project", "update", p.Name, opts.Actor)
		return p, nil
	}
	return domain.Project{}, fmt.Errorf("project %s: %w", opts.ID, store.ErrNotFound)
}

func (e Engine) DeleteProject(ctx context.Context, id, actor string) error {
	projects, err := e.Store.Projects()
	if err != nil {
		return err
	}
	for i, p := range projects {
		if p.ID != id {
			continue
		}
		projects = append(projects[:i], projects[i+1:]...)
		if err := e.Store.SaveProjects(projects); err != nil {
			return err
		}
		e.logActivity("project", "delete", p.Name, actor)
		return nil
	}
	return fmt.Errorf("project %s: %w", id, store.ErrNotFound)
}

// --- activities ---

type ActivityFilters struct {
	Type   string
	Action string
	Limit  int
}

func (e Engine) LogActivity(ctx context.Context, typ, action, details, actor string, meta map[string]any) (domain.Activity, error) {
	if typ == "" {
		return domain.Activity{}, errors.New("type is required")
	}
	if action == "" {
		return domain.Activity{}, errors.New("action is required")
	}
	w := e.Events
	if w.Now == nil {
		w.Now = e.Now
	}
	return w.Append(typ, action, details, actor, meta)
}

// ListActivities returns log entries newest first.
func (e Engine) ListActivities(ctx context.Context, f ActivityFilters) ([]domain.Activity, error) {
	items, err := e.Store.Activities()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Activity, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		a := items[i]
		if f.Type != "" && a.Type != f.Type {
			continue
		}
		if f.Action != "" && a.Action != f.Action {
			continue
		}
		out = append(out, a)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

// --- reports, summary, search ---

func (e Engine) ListReports(ctx context.Context) ([]domain.Report, error) {
	return e.Store.Reports()
}

// Summary is the dashboard home payload.
type Summary struct {
	Team             string                `json:"team"`
	TaskCounts       map[string]int        `json:"taskCounts"`
	SharedTaskCounts map[string]int        `json:"sharedTaskCounts"`
	PriorityCounts   map[string]int        `json:"priorityCounts"`
	Notes            int                   `json:"notes"`
	Outputs          int                   `json:"outputs"`
	Projects         int                   `json:"projects"`
	RecentActivity   []domain.Activity     `json:"recentActivity"`
}

const recentActivityLimit = 10

func (e Engine) Summarize(ctx context.Context) (Summary, error) {
	s := Summary{
		Team:             e.Config.Team.Name,
		TaskCounts:       map[string]int{},
		SharedTaskCounts: map[string]int{},
		PriorityCounts:   map[string]int{},
	}
	personal, err := e.Store.Tasks(domain.ScopePersonal)
	if err != nil {
		return Summary{}, err
	}
	shared, err := e.Store.Tasks(domain.ScopeShared)
	if err != nil {
		return Summary{}, err
	}
	for _, t := range personal {
		s.TaskCounts[t.Status]++
		s.PriorityCounts[t.Priority]++
	}
	for _, t := range shared {
		s.SharedTaskCounts[t.Status]++
		s.PriorityCounts[t.Priority]++
	}
	notes, err := e.Store.Notes()
	if err != nil {
		return Summary{}, err
	}
	s.Notes = len(notes)
	outputs, err := e.Store.Outputs()
	if err != nil {
		return Summary{}, err
	}
	s.Outputs = len(outputs)
	projects, err := e.Store.Projects()
	if err != nil {
		return Summary{}, err
	}
	s.Projects = len(projects)
	recent, err := e.ListActivities(ctx, ActivityFilters{Limit: recentActivityLimit})
	if err != nil {
		return Summary{}, err
	}
	s.RecentActivity = recent
	return s, nil
}

// Search loads the activity log and the personal task list and delegates to
// the query scorer. Shared tasks are not part of the search corpus.
func (e Engine) Search(ctx context.Context, q string) ([]search.Result, error) {
	activities, err := e.Store.Activities()
	if err != nil {
		return nil, err
	}
	tasks, err := e.Store.Tasks(domain.ScopePersonal)
	if err != nil {
		return nil, err
	}
	return search.Query(q, activities, tasks)
}

// --- helpers ---

func validProjectStatus(s string) bool {
	switch s {
	case "active", "paused", "archived":
		return true
	}
	return false
}

const snippetLen = 80

func snippet(s string) string {
	if len(s) <= snippetLen {
		return s
	}
	return s[:snippetLen] + "..."
}
