package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"missionctl/internal/domain"
	"missionctl/internal/store"
)

// Writer appends entries to the activity log. Every mutation made through
// the engine is recorded here, which is also what makes it searchable.
type Writer struct {
	Store *store.Store
	Now   func() time.Time
}

func (w Writer) Append(typ, action, details, actor string, meta map[string]any) (domain.Activity, error) {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	entry := domain.Activity{
		ID:        uuid.NewString(),
		Timestamp: now().UTC().Format(time.RFC3339),
		Type:      typ,
		Action:    action,
		Details:   details,
		Actor:     actor,
		Meta:      meta,
	}
	items, err := w.Store.Activities()
	if err != nil {
		return domain.Activity{}, fmt.Errorf("load activities: %w", err)
	}
	items = append(items, entry)
	if err := w.Store.SaveActivities(items); err != nil {
		return domain.Activity{}, fmt.Errorf("append activity: %w", err)
	}
	return entry, nil
}
