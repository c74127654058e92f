package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/buildmaster/internal/log"
	"github.com/mattjoyce/buildmaster/internal/scripts"
)

// View is what request handlers get for one builder: its snapshot plus the
// script's description.
type View struct {
	Snapshot
	Description scripts.Description
}

// Registry is the set of running builders, keyed by script name.
type Registry struct {
	source   ScriptSource
	opts     Options
	observer Observer
	logger   *slog.Logger
	preload  int

	mu      sync.Mutex
	entries map[string]*Builder
	closed  bool

	descMu sync.Mutex
	descs  map[string]scripts.Description // keyed by fingerprint
}

// Option configures a Registry.
type Option func(*Registry)

// WithObserver sets the lifecycle observer shared by every builder.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithPreloadConcurrency caps how many scripts Preload spawns at once.
func WithPreloadConcurrency(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.preload = n
		}
	}
}

// NewRegistry creates an empty registry over source.
func NewRegistry(source ScriptSource, opts Options, options ...Option) *Registry {
	r := &Registry{
		source:   source,
		opts:     opts,
		observer: Observers(nil),
		logger:   log.WithComponent("registry"),
		preload:  4,
		entries:  make(map[string]*Builder),
		descs:    make(map[string]scripts.Description),
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// GetOrCreate returns the named builder's output, spawning the builder first
// if none is running. It fails with ErrNotFound when there is no such script.
func (r *Registry) GetOrCreate(name string) (View, error) {
	b, err := r.lookupOrSpawn(name)
	if err != nil {
		return View{}, err
	}
	return r.view(b)
}

// Snapshot returns the named builder's output without creating it.
func (r *Registry) Snapshot(name string) (View, bool) {
	r.mu.Lock()
	b := r.entries[name]
	r.mu.Unlock()
	if b == nil {
		return View{}, false
	}
	v, err := r.view(b)
	if err != nil {
		return View{}, false
	}
	return v, true
}

// Status returns the named builder's generation without draining its
// output. It never spawns.
func (r *Registry) Status(name string) (Status, bool) {
	r.mu.Lock()
	b := r.entries[name]
	r.mu.Unlock()
	if b == nil {
		return Status{}, false
	}
	st, err := b.Status()
	if err != nil {
		return Status{}, false
	}
	return st, true
}

// Redeploy restarts the named builder, or deploys it for the first time if it
// is not running. A failed respawn leaves the name absent.
func (r *Registry) Redeploy(name string) error {
	for attempt := 0; attempt < 2; attempt++ {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return ErrClosed
		}
		b := r.entries[name]
		if b == nil || b.Retired() {
			_, err := r.spawnLocked(name)
			r.mu.Unlock()
			return err
		}
		r.mu.Unlock()

		err := b.Redeploy()
		if err == nil {
			r.logger.Info("builder redeployed", "builder", name)
			return nil
		}
		if errors.Is(err, errRetired) {
			// Terminated or failed concurrently; deploy a fresh builder.
			continue
		}
		r.forget(b)
		return err
	}
	return fmt.Errorf("redeploy %s: %w", name, ErrNotFound)
}

// Terminate stops the named builder and removes it.
func (r *Registry) Terminate(name string) error {
	r.mu.Lock()
	b := r.entries[name]
	delete(r.entries, name)
	r.mu.Unlock()

	if b == nil || b.Retired() {
		return fmt.Errorf("terminate %s: %w", name, ErrNotFound)
	}
	b.Terminate()
	r.logger.Info("builder terminated", "builder", name)
	return nil
}

// KnownNames lists the scripts that could be deployed.
func (r *Registry) KnownNames() ([]string, error) {
	return r.source.List()
}

// Running returns the sorted names of live builders.
func (r *Registry) Running() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.entries))
	for name, b := range r.entries {
		if !b.Retired() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Preload deploys every known script. Individual failures are logged and
// skipped; only a failure to list scripts is returned.
func (r *Registry) Preload(ctx context.Context) error {
	names, err := r.KnownNames()
	if err != nil {
		return fmt.Errorf("list scripts: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.preload)
	for _, name := range names {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := r.Redeploy(name); err != nil {
				r.logger.Warn("preload failed", "builder", name, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	r.logger.Info("preload complete", "scripts", len(names), "running", len(r.Running()))
	return nil
}

// Teardown terminates every builder. The registry rejects new work afterwards.
func (r *Registry) Teardown() {
	r.mu.Lock()
	r.closed = true
	builders := make([]*Builder, 0, len(r.entries))
	for _, b := range r.entries {
		builders = append(builders, b)
	}
	r.entries = make(map[string]*Builder)
	r.mu.Unlock()

	for _, b := range builders {
		b.Terminate()
	}
	r.logger.Info("registry torn down", "builders", len(builders))
}

func (r *Registry) lookupOrSpawn(name string) (*Builder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if b := r.entries[name]; b != nil && !b.Retired() {
		return b, nil
	}
	return r.spawnLocked(name)
}

// spawnLocked creates and registers a builder. r.mu must be held.
func (r *Registry) spawnLocked(name string) (*Builder, error) {
	b, err := Spawn(name, r.source, r.opts, r.observer)
	if err != nil {
		delete(r.entries, name)
		return nil, err
	}
	r.entries[name] = b
	return b, nil
}

// forget removes b if it is still the registered builder for its name.
func (r *Registry) forget(b *Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[b.Name()] == b {
		delete(r.entries, b.Name())
	}
}

func (r *Registry) view(b *Builder) (View, error) {
	snap, err := b.Drain()
	if err != nil {
		if errors.Is(err, errRetired) {
			return View{}, fmt.Errorf("%s: %w", b.Name(), ErrNotFound)
		}
		return View{}, err
	}
	return View{Snapshot: snap, Description: r.describe(b.Name(), snap.Fingerprint)}, nil
}

// describe renders the script header, cached per script fingerprint.
func (r *Registry) describe(name, fingerprint string) scripts.Description {
	if fingerprint != "" {
		r.descMu.Lock()
		d, ok := r.descs[fingerprint]
		r.descMu.Unlock()
		if ok {
			return d
		}
	}

	path, err := r.source.Resolve(name)
	if err != nil {
		return scripts.Description{}
	}
	d, err := scripts.Describe(path)
	if err != nil {
		r.logger.Debug("describe failed", "builder", name, "error", err)
		return scripts.Description{}
	}
	if fingerprint != "" {
		r.descMu.Lock()
		r.descs[fingerprint] = d
		r.descMu.Unlock()
	}
	return d
}
