// Package store persists dashboard collections as flat JSON array files in a
// data directory. Reads and writes are whole-file read-modify-write with no
// transactional guarantees; a process-local mutex keeps this server's own
// handlers from interleaving writes.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"missionctl/internal/domain"
)

// Collection file names inside the data directory.
const (
	ActivitiesFile  = "activities.json"
	TasksFile       = "tasks.json"
	SharedTasksFile = "shared_tasks.json"
	NotesFile       = "notes.json"
	OutputsFile     = "outputs.json"
	ProjectsFile    = "projects.json"
)

// ErrNotFound is returned by id lookups in the engine layer.
var ErrNotFound = errors.New("not found")

type Store struct {
	dataDir    string
	reportsDir string
	log        zerolog.Logger

	mu      sync.Mutex
	cache   map[string][]byte
	watcher *fsnotify.Watcher
}

func New(dataDir, reportsDir string, logger zerolog.Logger) *Store {
	return &Store{
		dataDir:    dataDir,
		reportsDir: reportsDir,
		log:        logger,
		cache:      map[string][]byte{},
	}
}

// EnsureWorkspace creates the data and reports directories if missing.
func (s *Store) EnsureWorkspace() error {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return err
	}
	return os.MkdirAll(s.reportsDir, 0o755)
}

// Watch starts an fsnotify watcher on the data directory that drops cached
// file contents when the flat files change on disk, so edits made outside
// this process are picked up without a restart.
func (s *Store) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(s.dataDir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", s.dataDir, err)
	}
	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()
	go s.watchLoop(watcher)
	return nil
}

func (s *Store) watchLoop(watcher *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			s.mu.Lock()
			if _, cached := s.cache[name]; cached {
				delete(s.cache, name)
				s.log.Debug().Str("file", name).Msg("store cache invalidated")
			}
			s.mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn().Err(err).Msg("store watcher error")
		}
	}
}

func (s *Store) Close() error {
	s.mu.Lock()
	watcher := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if watcher != nil {
		return watcher.Close()
	}
	return nil
}

// readCollection returns the raw bytes of a collection file, consulting the
// cache first. A missing file reads as an empty array.
func (s *Store) readCollection(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if data, ok := s.cache[name]; ok {
		return data, nil
	}
	data, err := os.ReadFile(filepath.Join(s.dataDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			data = []byte("[]")
		} else {
			return nil, err
		}
	}
	s.cache[name] = data
	return data, nil
}

func (s *Store) writeCollection(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(filepath.Join(s.dataDir, name), data, 0o644); err != nil {
		return err
	}
	s.cache[name] = data
	return nil
}

func load[T any](s *Store, name string) ([]T, error) {
	data, err := s.readCollection(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return items, nil
}

func save[T any](s *Store, name string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	data = append(data, '\n')
	if err := s.writeCollection(name, data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (s *Store) Activities() ([]domain.Activity, error) {
	return load[domain.Activity](s, ActivitiesFile)
}

func (s *Store) SaveActivities(items []domain.Activity) error {
	return save(s, ActivitiesFile, items)
}

func taskFile(scope domain.TaskScope) string {
	if scope == domain.ScopeShared {
		return SharedTasksFile
	}
	return TasksFile
}

func (s *Store) Tasks(scope domain.TaskScope) ([]domain.Task, error) {
	return load[domain.Task](s, taskFile(scope))
}

func (s *Store) SaveTasks(scope domain.TaskScope, items []domain.Task) error {
	return save(s, taskFile(scope), items)
}

func (s *Store) Notes() ([]domain.Note, error) {
	return load[domain.Note](s, NotesFile)
}

func (s *Store) SaveNotes(items []domain.Note) error {
	return save(s, NotesFile, items)
}

func (s *Store) Outputs() ([]domain.Output, error) {
	return load[domain.Output](s, OutputsFile)
}

func (s *Store) SaveOutputs(items []domain.Output) error {
	return save(s, OutputsFile, items)
}

func (s *Store) Projects() ([]domain.Project, error) {
	return load[domain.Project](s, ProjectsFile)
}

func (s *Store) SaveProjects(items []domain.Project) error {
	return save(s, ProjectsFile, items)
}

// Reports lists the files in the reports directory, newest first. Report
// files are opaque to the dashboard; only name, size, and mtime are exposed.
func (s *Store) Reports() ([]domain.Report, error) {
	entries, err := os.ReadDir(s.reportsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Report{}, nil
		}
		return nil, fmt.Errorf("read reports dir: %w", err)
	}
	reports := make([]domain.Report, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		reports = append(reports, domain.Report{
			Name:       entry.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime().UTC().Format(time.RFC3339),
		})
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].ModifiedAt > reports[j].ModifiedAt
	})
	return reports, nil
}
