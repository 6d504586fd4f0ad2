package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"missionctl/internal/config"
	"missionctl/internal/domain"
	"missionctl/internal/engine"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
)

// webhookDispatcher tails the activity log and POSTs new entries to each
// configured hook. Cursors are per-hook offsets into the log, seeded at the
// current tail so a restart never replays history.
type webhookDispatcher struct {
	engine   engine.Engine
	webhooks []config.WebhookConfig
	client   *http.Client
	log      zerolog.Logger
	mu       sync.Mutex
	cursors  map[int]int
}

func startWebhookDispatcher(e engine.Engine, logger zerolog.Logger) {
	if e.Config == nil || len(e.Config.Webhooks) == 0 {
		return
	}
	d := &webhookDispatcher{
		engine:   e,
		webhooks: e.Config.Webhooks,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		log:      logger,
		cursors:  make(map[int]int),
	}
	go d.run()
}

func (d *webhookDispatcher) run() {
	ticker := time.NewTicker(defaultWebhookInterval)
	defer ticker.Stop()
	for {
		d.dispatchAll()
		<-ticker.C
	}
}

func (d *webhookDispatcher) dispatchAll() {
	activities, err := d.engine.Store.Activities()
	if err != nil {
		d.log.Warn().Err(err).Msg("webhook: load activities failed")
		return
	}
	for i, hook := range d.webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.dispatchWebhook(i, hook, activities)
	}
}

func (d *webhookDispatcher) dispatchWebhook(idx int, hook config.WebhookConfig, activities []domain.Activity) {
	ctx := context.Background()
	cursor := d.cursorFor(idx, len(activities))
	if cursor >= len(activities) {
		return
	}
	filter := newTypeFilter(hook.Types)
	for i := cursor; i < len(activities); i++ {
		a := activities[i]
		if !filter.match(a.Type) {
			d.setCursor(idx, i+1)
			continue
		}
		if err := d.postActivity(ctx, hook, a); err != nil {
			d.log.Warn().Err(err).Str("url", hook.URL).Msg("webhook: delivery failed")
			return
		}
		d.setCursor(idx, i+1)
	}
}

func (d *webhookDispatcher) cursorFor(idx, tail int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur
	}
	d.cursors[idx] = tail
	return tail
}

func (d *webhookDispatcher) setCursor(idx, value int) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

func (d *webhookDispatcher) postActivity(ctx context.Context, hook config.WebhookConfig, a domain.Activity) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	timeout := defaultWebhookTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	client := d.client
	if timeout != d.client.Timeout {
		client = &http.Client{Timeout: timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-MissionControl-Event", a.Type)
	req.Header.Set("X-MissionControl-Delivery", a.ID)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-MissionControl-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type typeFilter struct {
	all bool
	set map[string]struct{}
}

func newTypeFilter(types []string) typeFilter {
	if len(types) == 0 {
		return typeFilter{all: true}
	}
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		key := strings.TrimSpace(t)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return typeFilter{all: true}
	}
	return typeFilter{set: set}
}

func (f typeFilter) match(t string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[t]
	return ok
}
