package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"missionctl/internal/domain"
	"missionctl/internal/engine"
	"missionctl/internal/search"
	"missionctl/internal/store"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Logger   zerolog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"bad_request"`
	Message string         `json:"message" example:"query parameter required"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Mission Control API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(requestLogger(cfg.Logger))
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Config))
	hcfg := huma.DefaultConfig("Mission Control API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerSummary(group, cfg.Engine)
	registerTasks(group, cfg.Engine, domain.ScopePersonal, "/tasks")
	registerTasks(group, cfg.Engine, domain.ScopeShared, "/shared-tasks")
	registerNotes(group, cfg.Engine)
	registerActivities(group, cfg.Engine)
	registerOutputs(group, cfg.Engine)
	registerProjects(group, cfg.Engine)
	registerReports(group, cfg.Engine)
	registerSearch(group, cfg.Engine)
	registerAuthToken(group, cfg.Auth, cfg.Engine.Config)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine, cfg.Logger)

	return router, nil
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, search.ErrEmptyQuery) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	if errors.Is(err, store.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "already exists"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Mission Control API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerSummary(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "summary",
		Method:      http.MethodGet,
		Path:        "/summary",
		Summary:     "Dashboard summary",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.Summary `json:"body"`
	}, error) {
		s, err := e.Summarize(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Summary `json:"body"`
		}{Body: s}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine, scope domain.TaskScope, prefix string) {
	name := strings.Trim(prefix, "/")

	huma.Register(api, huma.Operation{
		OperationID:   "create-" + name,
		Method:        http.MethodPost,
		Path:          prefix,
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		opts := engine.TaskCreateOptions{
			Scope:       scope,
			ID:          stringOrEmpty(input.Body.ID),
			Title:       input.Body.Title,
			Description: stringOrEmpty(input.Body.Description),
			Status:      stringOrEmpty(input.Body.Status),
			Priority:    stringOrEmpty(input.Body.Priority),
			Owner:       stringOrEmpty(input.Body.Owner),
			DueDate:     stringOrEmpty(input.Body.DueDate),
			Actor:       actorFromContext(ctx),
		}
		t, err := e.CreateTask(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-" + name,
		Method:      http.MethodGet,
		Path:        prefix,
		Summary:     "List tasks",
	}, func(ctx context.Context, input *struct {
		Status   string `query:"status" enum:"pending,in-progress,completed,"`
		Priority string `query:"priority" enum:"low,medium,high,"`
		Owner    string `query:"owner"`
	}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		tasks, err := e.ListTasks(ctx, scope, engine.TaskFilters{
			Status:   input.Status,
			Priority: input.Priority,
			Owner:    input.Owner,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: tasks}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-" + name,
		Method:      http.MethodGet,
		Path:        prefix + "/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		t, err := e.GetTask(ctx, scope, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-" + name,
		Method:      http.MethodPatch,
		Path:        prefix + "/{id}",
		Summary:     "Update task",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		t, err := e.UpdateTask(ctx, engine.TaskUpdateOptions{
			Scope:       scope,
			ID:          input.ID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Status:      input.Body.Status,
			Priority:    input.Body.Priority,
			Owner:       input.Body.Owner,
			DueDate:     input.Body.DueDate,
			Actor:       actorFromContext(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-" + name,
		Method:      http.MethodPost,
		Path:        prefix + "/{id}/complete",
		Summary:     "Complete task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		t, err := e.CompleteTask(ctx, scope, input.ID, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-" + name,
		Method:      http.MethodDelete,
		Path:        prefix + "/{id}",
		Summary:     "Delete task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteTask(ctx, scope, input.ID, actorFromContext(ctx)); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerNotes(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-note",
		Method:        http.MethodPost,
		Path:          "/notes",
		Summary:       "Create note",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateNoteRequest `json:"body"`
	}) (*struct {
		Body domain.Note `json:"body"`
	}, error) {
		n, err := e.CreateNote(ctx, engine.NoteCreateOptions{
			Author:  input.Body.Author,
			Content: input.Body.Content,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Note `json:"body"`
		}{Body: n}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-notes",
		Method:      http.MethodGet,
		Path:        "/notes",
		Summary:     "List notes (pinned first, then newest first)",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Note `json:"body"`
	}, error) {
		notes, err := e.ListNotes(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Note `json:"body"`
		}{Body: notes}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-note",
		Method:      http.MethodPatch,
		Path:        "/notes/{id}",
		Summary:     "Update note",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateNoteRequest `json:"body"`
	}) (*struct {
		Body domain.Note `json:"body"`
	}, error) {
		n, err := e.UpdateNote(ctx, engine.NoteUpdateOptions{
			ID:      input.ID,
			Content: input.Body.Content,
			Pinned:  input.Body.Pinned,
			Actor:   actorFromContext(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Note `json:"body"`
		}{Body: n}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pin-note",
		Method:      http.MethodPost,
		Path:        "/notes/{id}/pin",
		Summary:     "Pin or unpin note",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			Pinned bool `json:"pinned"`
		} `json:"body"`
	}) (*struct {
		Body domain.Note `json:"body"`
	}, error) {
		n, err := e.UpdateNote(ctx, engine.NoteUpdateOptions{
			ID:     input.ID,
			Pinned: &input.Body.Pinned,
			Actor:  actorFromContext(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Note `json:"body"`
		}{Body: n}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-note",
		Method:      http.MethodDelete,
		Path:        "/notes/{id}",
		Summary:     "Delete note",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteNote(ctx, input.ID, actorFromContext(ctx)); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerActivities(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activities",
		Method:      http.MethodGet,
		Path:        "/activities",
		Summary:     "List activity log entries (newest first)",
	}, func(ctx context.Context, input *struct {
		Type   string `query:"type"`
		Action string `query:"action"`
		Limit  int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.Activity `json:"body"`
	}, error) {
		items, err := e.ListActivities(ctx, engine.ActivityFilters{
			Type:   input.Type,
			Action: input.Action,
			Limit:  input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Activity `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "log-activity",
		Method:        http.MethodPost,
		Path:          "/activities",
		Summary:       "Append an activity log entry",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateActivityRequest `json:"body"`
	}) (*struct {
		Body domain.Activity `json:"body"`
	}, error) {
		actor := input.Body.Actor
		if actor == "" {
			actor = actorFromContext(ctx)
		}
		a, err := e.LogActivity(ctx, input.Body.Type, input.Body.Action, input.Body.Details, actor, input.Body.Meta)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Activity `json:"body"`
		}{Body: a}, nil
	})
}

func registerOutputs(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-output",
		Method:        http.MethodPost,
		Path:          "/outputs",
		Summary:       "Create output deliverable",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateOutputRequest `json:"body"`
	}) (*struct {
		Body domain.Output `json:"body"`
	}, error) {
		owner := stringOrEmpty(input.Body.Owner)
		if owner == "" {
			owner = actorFromContext(ctx)
		}
		o, err := e.CreateOutput(ctx, engine.OutputCreateOptions{
			ID:      stringOrEmpty(input.Body.ID),
			Title:   input.Body.Title,
			Type:    input.Body.Type,
			URL:     stringOrEmpty(input.Body.URL),
			Content: stringOrEmpty(input.Body.Content),
			Owner:   owner,
			Tags:    input.Body.Tags,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Output `json:"body"`
		}{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-outputs",
		Method:      http.MethodGet,
		Path:        "/outputs",
		Summary:     "List outputs",
	}, func(ctx context.Context, input *struct {
		Type string `query:"type" enum:"document,memory,repo,slides,"`
	}) (*struct {
		Body []domain.Output `json:"body"`
	}, error) {
		outputs, err := e.ListOutputs(ctx, input.Type)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Output `json:"body"`
		}{Body: outputs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-output",
		Method:      http.MethodGet,
		Path:        "/outputs/{id}",
		Summary:     "Get output",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Output `json:"body"`
	}, error) {
		o, err := e.GetOutput(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Output `json:"body"`
		}{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-output",
		Method:      http.MethodDelete,
		Path:        "/outputs/{id}",
		Summary:     "Delete output",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteOutput(ctx, input.ID, actorFromContext(ctx)); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
			ID:          stringOrEmpty(input.Body.ID),
			Name:        input.Body.Name,
			Description: stringOrEmpty(input.Body.Description),
			Status:      stringOrEmpty(input.Body.Status),
			Actor:       actorFromContext(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Project `json:"body"`
	}, error) {
		projects, err := e.ListProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Project `json:"body"`
		}{Body: projects}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		p, err := e.GetProject(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{id}",
		Summary:     "Update project",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body UpdateProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		p, err := e.UpdateProject(ctx, engine.ProjectUpdateOptions{
			ID:          input.ID,
			Name:        input.Body.Name,
			Description: input.Body.Description,
			Status:      input.Body.Status,
			Actor:       actorFromContext(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-project",
		Method:      http.MethodDelete,
		Path:        "/projects/{id}",
		Summary:     "Delete project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteProject(ctx, input.ID, actorFromContext(ctx)); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerReports(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-reports",
		Method:      http.MethodGet,
		Path:        "/reports",
		Summary:     "List report files (newest first)",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Report `json:"body"`
	}, error) {
		reports, err := e.ListReports(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Report `json:"body"`
		}{Body: reports}, nil
	})
}

func registerSearch(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "search",
		Method:      http.MethodGet,
		Path:        "/search",
		Summary:     "Search activities and tasks",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Q string `query:"q"`
	}) (*struct {
		Body SearchResponse `json:"body"`
	}, error) {
		results, err := e.Search(ctx, input.Q)
		if err != nil {
			return nil, handleError(err)
		}
		if results == nil {
			results = []search.Result{}
		}
		return &struct {
			Body SearchResponse `json:"body"`
		}{Body: SearchResponse{
			Query:   input.Q,
			Results: results,
			Total:   len(results),
		}}, nil
	})
}
