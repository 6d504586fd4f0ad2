package domain

// Activity is a logged workspace event: a file edit, a command execution,
// a message, or a record mutation made through the API.
type Activity struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp" format:"date-time"`
	Type      string         `json:"type"`
	Action    string         `json:"action"`
	Details   string         `json:"details"`
	Actor     string         `json:"actor,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Status      string `json:"status" enum:"pending,in-progress,completed"`
	Priority    string `json:"priority" enum:"low,medium,high"`
	Description string `json:"description,omitempty"`
	Owner       string `json:"owner,omitempty"`
	DueDate     string `json:"dueDate,omitempty" format:"date-time"`
	CreatedAt   string `json:"createdAt" format:"date-time"`
	CompletedAt string `json:"completedAt,omitempty" format:"date-time"`
}

// Note is a shared memo on the team dashboard.
type Note struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	Pinned    bool   `json:"pinned"`
	CreatedAt string `json:"createdAt" format:"date-time"`
	UpdatedAt string `json:"updatedAt,omitempty" format:"date-time"`
}

// Output is a deliverable produced by the team: a document, a memory entry,
// a repository link, or a slide deck.
type Output struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Type      string   `json:"type" enum:"document,memory,repo,slides"`
	URL       string   `json:"url,omitempty"`
	Content   string   `json:"content,omitempty"`
	Owner     string   `json:"owner,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt string   `json:"createdAt" format:"date-time"`
}

type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status" enum:"active,paused,archived"`
	CreatedAt   string `json:"createdAt" format:"date-time"`
}

// Report is a file in the reports directory, listed but never parsed.
type Report struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modifiedAt" format:"date-time"`
}

// TaskScope selects the personal or shared task collection.
type TaskScope string

const (
	ScopePersonal TaskScope = "personal"
	ScopeShared   TaskScope = "shared"
)

const (
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

const (
	OutputDocument = "document"
	OutputMemory   = "memory"
	OutputRepo     = "repo"
	OutputSlides   = "slides"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

func ValidOutputType(t string) bool {
	switch t {
	case OutputDocument, OutputMemory, OutputRepo, OutputSlides:
		return true
	}
	return false
}
