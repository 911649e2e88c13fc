// Package registry tracks a static list of known workspaces:
// static-workspaces.json (or .yaml/.toml) names every workspace this
// process knows about and where its wsconfig.Definition file lives.
// An fsnotify.Watcher on the registry file's directory picks up
// external edits with a debounced reload.
package registry

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Entry names one workspace known to this registry and the definition
// file wsconfig.Load should read for it.
type Entry struct {
	ID         string `mapstructure:"id"`
	ConfigPath string `mapstructure:"config_path"`
}

// Registry is a loaded, optionally-watched static-workspaces file.
type Registry struct {
	path string

	mu      sync.RWMutex
	entries map[string]Entry

	obsMu   sync.Mutex
	obs     map[int]func([]Entry)
	nextObs int

	watcher      *fsnotify.Watcher
	debounce     time.Duration
	debounceStop func()
}

// Load reads the registry file at path. The format is inferred from
// its extension; the file must declare a top-level "workspaces" list
// of {id, config_path} entries.
func Load(path string) (*Registry, error) {
	r := &Registry{
		path:     path,
		entries:  make(map[string]Entry),
		obs:      make(map[int]func([]Entry)),
		debounce: 200 * time.Millisecond,
	}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) reload() error {
	v := viper.New()
	v.SetConfigFile(r.path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("registry: read %s: %w", r.path, err)
	}

	var parsed struct {
		Workspaces []Entry `mapstructure:"workspaces"`
	}
	if err := v.Unmarshal(&parsed); err != nil {
		return fmt.Errorf("registry: unmarshal %s: %w", r.path, err)
	}

	entries := make(map[string]Entry, len(parsed.Workspaces))
	for _, e := range parsed.Workspaces {
		if e.ID == "" {
			return fmt.Errorf("registry: %s: entry missing id", r.path)
		}
		entries[e.ID] = e
	}

	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()
	return nil
}

// Entries returns every known workspace entry.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

// Get looks up one workspace's entry by id.
func (r *Registry) Get(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// Observe registers a handler invoked with the full entry list after
// every successful reload triggered by Watch.
func (r *Registry) Observe(fn func([]Entry)) (unobserve func()) {
	r.obsMu.Lock()
	id := r.nextObs
	r.nextObs++
	r.obs[id] = fn
	r.obsMu.Unlock()
	return func() {
		r.obsMu.Lock()
		delete(r.obs, id)
		r.obsMu.Unlock()
	}
}

func (r *Registry) fire() {
	entries := r.Entries()
	r.obsMu.Lock()
	fns := make([]func([]Entry), 0, len(r.obs))
	for _, fn := range r.obs {
		fns = append(fns, fn)
	}
	r.obsMu.Unlock()
	for _, fn := range fns {
		fn(entries)
	}
}

// Watch starts watching the registry file's directory for out-of-
// process edits (a new static-workspaces.json written by some other
// tool), debouncing rapid writes the way cmd/bd/list.go debounces
// issues.jsonl changes, and reloading on settle. Call the returned
// stop function to stop watching.
func (r *Registry) Watch() (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("registry: watcher: %w", err)
	}
	dir := filepath.Dir(r.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("registry: watch %s: %w", dir, err)
	}
	r.watcher = watcher

	target := filepath.Base(r.path)
	done := make(chan struct{})
	go func() {
		var timer *time.Timer
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(r.debounce, func() {
					if err := r.reload(); err == nil {
						r.fire()
					}
				})
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-done:
				if timer != nil {
					timer.Stop()
				}
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
