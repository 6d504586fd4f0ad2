package engine_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"missionctl/internal/config"
	"missionctl/internal/domain"
	"missionctl/internal/engine"
	"missionctl/internal/store"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default(dir)
	st := store.New(filepath.Join(dir, "data"), filepath.Join(dir, "data", "reports"), zerolog.Nop())
	if err := st.EnsureWorkspace(); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	eng := engine.New(st, cfg, zerolog.Nop())
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func TestTaskLifecycle(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Scope: domain.ScopePersonal,
		Title: "Write launch checklist",
		Actor: "ana",
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != domain.StatusPending || task.Priority != domain.PriorityMedium {
		t.Fatalf("unexpected defaults: %+v", task)
	}
	if task.CreatedAt != "2024-01-01T00:00:00Z" {
		t.Fatalf("unexpected createdAt: %s", task.CreatedAt)
	}

	status := domain.StatusInProgress
	task, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{
		Scope: domain.ScopePersonal, ID: task.ID, Status: &status, Actor: "ana",
	})
	if err != nil || task.Status != domain.StatusInProgress {
		t.Fatalf("to in-progress: %v (%+v)", err, task)
	}

	task, err = env.Engine.CompleteTask(env.Ctx, domain.ScopePersonal, task.ID, "ana")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if task.Status != domain.StatusCompleted || task.CompletedAt == "" {
		t.Fatalf("expected completed with timestamp: %+v", task)
	}

	// reopening clears completedAt
	reopen := domain.StatusPending
	task, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{
		Scope: domain.ScopePersonal, ID: task.ID, Status: &reopen, Actor: "ana",
	})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if task.CompletedAt != "" {
		t.Fatalf("expected completedAt cleared, got %s", task.CompletedAt)
	}

	if err := env.Engine.DeleteTask(env.Ctx, domain.ScopePersonal, task.ID, "ana"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.Engine.GetTask(env.Ctx, domain.ScopePersonal, task.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Scope: domain.ScopePersonal}); err == nil {
		t.Fatalf("expected title required error")
	}
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Scope: domain.ScopePersonal, Title: "x", Status: "done",
	}); err == nil {
		t.Fatalf("expected invalid status error")
	}
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Scope: domain.ScopePersonal, Title: "x", Priority: "urgent",
	}); err == nil {
		t.Fatalf("expected invalid priority error")
	}
}

func TestScopesAreIsolated(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Scope: domain.ScopeShared, Title: "Team retro prep", Actor: "ana",
	}); err != nil {
		t.Fatalf("create shared: %v", err)
	}
	personal, err := env.Engine.ListTasks(env.Ctx, domain.ScopePersonal, engine.TaskFilters{})
	if err != nil {
		t.Fatalf("list personal: %v", err)
	}
	if len(personal) != 0 {
		t.Fatalf("expected no personal tasks, got %d", len(personal))
	}
	shared, err := env.Engine.ListTasks(env.Ctx, domain.ScopeShared, engine.TaskFilters{})
	if err != nil || len(shared) != 1 {
		t.Fatalf("expected one shared task: %v", err)
	}
}

func TestMutationsAppendActivities(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Scope: domain.ScopePersonal, Title: "evented", Actor: "ana",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CompleteTask(env.Ctx, domain.ScopePersonal, task.ID, "ana"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateNote(env.Ctx, engine.NoteCreateOptions{Author: "ana", Content: "remember the retro"}); err != nil {
		t.Fatal(err)
	}
	acts, err := env.Engine.ListActivities(env.Ctx, engine.ActivityFilters{})
	if err != nil {
		t.Fatalf("list activities: %v", err)
	}
	if len(acts) != 3 {
		t.Fatalf("expected 3 activities, got %d", len(acts))
	}
	// newest first
	if acts[0].Type != "note" || acts[0].Action != "create" {
		t.Fatalf("unexpected newest activity: %+v", acts[0])
	}
	if acts[2].Type != "task" || acts[2].Action != "create" {
		t.Fatalf("unexpected oldest activity: %+v", acts[2])
	}
}

func TestActivityFilters(t *testing.T) {
	env := newTestEnv(t)
	for _, spec := range []struct{ typ, action string }{
		{"file", "edit"}, {"exec", "run"}, {"file", "create"},
	} {
		if _, err := env.Engine.LogActivity(env.Ctx, spec.typ, spec.action, "x", "ana", nil); err != nil {
			t.Fatal(err)
		}
	}
	files, err := env.Engine.ListActivities(env.Ctx, engine.ActivityFilters{Type: "file"})
	if err != nil || len(files) != 2 {
		t.Fatalf("expected 2 file activities: %v", err)
	}
	limited, err := env.Engine.ListActivities(env.Ctx, engine.ActivityFilters{Limit: 1})
	if err != nil || len(limited) != 1 {
		t.Fatalf("expected limit 1: %v", err)
	}
	if limited[0].Type != "file" || limited[0].Action != "create" {
		t.Fatalf("expected newest entry, got %+v", limited[0])
	}
}

func TestNotesPinnedFirst(t *testing.T) {
	env := newTestEnv(t)
	first, err := env.Engine.CreateNote(env.Ctx, engine.NoteCreateOptions{Author: "ana", Content: "first"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateNote(env.Ctx, engine.NoteCreateOptions{Author: "bo", Content: "second"}); err != nil {
		t.Fatal(err)
	}
	pinned := true
	if _, err := env.Engine.UpdateNote(env.Ctx, engine.NoteUpdateOptions{ID: first.ID, Pinned: &pinned, Actor: "ana"}); err != nil {
		t.Fatal(err)
	}
	notes, err := env.Engine.ListNotes(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 2 || notes[0].ID != first.ID || !notes[0].Pinned {
		t.Fatalf("expected pinned note first: %+v", notes)
	}
}

func TestOutputTypeValidated(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateOutput(env.Ctx, engine.OutputCreateOptions{Title: "x", Type: "video"}); err == nil {
		t.Fatalf("expected invalid output type error")
	}
	out, err := env.Engine.CreateOutput(env.Ctx, engine.OutputCreateOptions{
		Title: "Launch deck", Type: domain.OutputSlides, URL: "https://example.com/deck", Owner: "ana",
	})
	if err != nil {
		t.Fatalf("create output: %v", err)
	}
	slides, err := env.Engine.ListOutputs(env.Ctx, domain.OutputSlides)
	if err != nil || len(slides) != 1 || slides[0].ID != out.ID {
		t.Fatalf("expected one slides output: %v", err)
	}
	docs, err := env.Engine.ListOutputs(env.Ctx, domain.OutputDocument)
	if err != nil || len(docs) != 0 {
		t.Fatalf("expected no document outputs: %v", err)
	}
}

func TestSummarize(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Scope: domain.ScopePersonal, Title: "a", Priority: domain.PriorityHigh, Actor: "ana",
	}); err != nil {
		t.Fatal(err)
	}
	done, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Scope: domain.ScopeShared, Title: "b", Actor: "ana",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CompleteTask(env.Ctx, domain.ScopeShared, done.ID, "ana"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateNote(env.Ctx, engine.NoteCreateOptions{Author: "ana", Content: "note"}); err != nil {
		t.Fatal(err)
	}
	sum, err := env.Engine.Summarize(env.Ctx)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.TaskCounts[domain.StatusPending] != 1 {
		t.Fatalf("expected one pending personal task: %+v", sum.TaskCounts)
	}
	if sum.SharedTaskCounts[domain.StatusCompleted] != 1 {
		t.Fatalf("expected one completed shared task: %+v", sum.SharedTaskCounts)
	}
	if sum.Notes != 1 {
		t.Fatalf("expected one note, got %d", sum.Notes)
	}
	if len(sum.RecentActivity) == 0 {
		t.Fatalf("expected recent activity")
	}
}

func TestSearchUsesActivitiesAndPersonalTasks(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Scope: domain.ScopePersonal, Title: "Update the config loader", Actor: "ana",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Scope: domain.ScopeShared, Title: "config rollout", Actor: "ana",
	}); err != nil {
		t.Fatal(err)
	}
	results, err := env.Engine.Search(env.Ctx, "config")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	// Two hits: the personal task and its create-activity. The shared task's
	// create-activity matches too, but the shared task record itself does not.
	types := map[string]int{}
	for _, r := range results {
		types[r.Type]++
	}
	if types["task"] != 1 {
		t.Fatalf("expected exactly one task hit, got %+v", types)
	}
	if types["activity"] != 2 {
		t.Fatalf("expected two activity hits, got %+v", types)
	}
}
