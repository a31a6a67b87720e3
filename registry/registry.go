package registry

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/veilbrowser/extension-host/manifest"
	"github.com/veilbrowser/extension-host/permission"
)

// Store is the external persistence collaborator. It receives immutable
// records on every committed mutation; transient states are never handed to
// it. The registry defines the record schema, not the storage encoding.
type Store interface {
	Put(rec Record) error
	Delete(id InstallID) error
}

// StateObserver is notified when an entry leaves the Enabled state, so the
// sandbox layer can invalidate live contexts immediately.
type StateObserver interface {
	EntryDisabled(id InstallID)
}

// WriteToken gates the mutating operations that only the Loader may call.
// This is a design-level access discipline, not a cryptographic one: the
// token is issued exactly once, at construction, to whoever builds the
// registry, and is expected to be handed to the Loader alone.
type WriteToken struct {
	owner *Registry
}

func (t WriteToken) valid(r *Registry) bool {
	return t.owner == r
}

type entryKey struct {
	name   string
	source Source
}

// Registry is the shared catalog of installed extensions. All mutating
// operations are mutually exclusive with each other and with reads, so a
// reader always observes a fully-old or fully-new entry.
type Registry struct {
	mu       sync.RWMutex
	entries  map[InstallID]*entry
	byKey    map[entryKey]InstallID
	store    Store
	observer StateObserver
	logger   *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithStore sets the external persistence collaborator.
func WithStore(s Store) Option {
	return func(r *Registry) { r.store = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// New creates an empty registry and issues its single write token.
func New(opts ...Option) (*Registry, WriteToken) {
	r := &Registry{
		entries: make(map[InstallID]*entry),
		byKey:   make(map[entryKey]InstallID),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, WriteToken{owner: r}
}

// SetObserver wires the disable observer. Called once during assembly,
// before any entry exists.
func (r *Registry) SetObserver(o StateObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = o
}

// Insert registers a new extension in StateInstalling and assigns a fresh
// install id. A (name, source) pair that already has an id is rejected with
// ErrDuplicate: re-installation of the same logical extension must go
// through the Loader's update path.
func (r *Registry) Insert(tok WriteToken, m *manifest.Manifest, grant *permission.Grant, source Source) (InstallID, error) {
	if !tok.valid(r) {
		return "", ErrInvalidToken
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := entryKey{name: m.Name, source: source}
	if existing, ok := r.byKey[key]; ok {
		return "", &DuplicateError{Name: m.Name, Source: source, Existing: existing}
	}

	id := newInstallID()
	r.entries[id] = &entry{
		id:       id,
		manifest: m,
		grant:    grant,
		state:    StateInstalling,
		source:   source,
		enabled:  false,
	}
	r.byKey[key] = id

	r.logger.Debug("registry insert", "install_id", id, "name", m.Name, "source", source.String())
	return id, nil
}

// SetState performs one state-machine transition. Transient states are not
// persisted; committed states are pushed to the store.
func (r *Registry) SetState(tok WriteToken, id InstallID, to State) error {
	if !tok.valid(r) {
		return ErrInvalidToken
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	if !e.state.canTransition(to) {
		return &InconsistentStateError{ID: id, From: e.state, To: to, Op: "set_state"}
	}

	e.state = to
	e.enabled = to == StateEnabled
	r.persistLocked(e)
	return nil
}

// SetEnabled flips the Enabled/Disabled halves of the state machine. It is
// part of the exposed surface; disabling notifies the observer so live
// sandbox contexts are invalidated immediately.
func (r *Registry) SetEnabled(id InstallID, enabled bool) error {
	r.mu.Lock()

	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return &NotFoundError{ID: id}
	}

	to := StateDisabled
	if enabled {
		to = StateEnabled
	}
	if e.state == to {
		r.mu.Unlock()
		return nil
	}
	if !e.state.canTransition(to) {
		from := e.state
		r.mu.Unlock()
		return &InconsistentStateError{ID: id, From: from, To: to, Op: "set_enabled"}
	}

	e.state = to
	e.enabled = enabled
	r.persistLocked(e)
	observer := r.observer
	r.mu.Unlock()

	if !enabled && observer != nil {
		observer.EntryDisabled(id)
	}
	return nil
}

// ReplaceGrant atomically swaps an entry's manifest and grant, keeping
// install id and enabled state unchanged. This is the commit step of the
// Loader's update path.
func (r *Registry) ReplaceGrant(tok WriteToken, id InstallID, m *manifest.Manifest, grant *permission.Grant) error {
	if !tok.valid(r) {
		return ErrInvalidToken
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	if e.state.transient() {
		return &InconsistentStateError{ID: id, From: e.state, To: e.state, Op: "replace_grant"}
	}
	if m.Name != e.manifest.Name {
		return &InconsistentStateError{ID: id, From: e.state, To: e.state, Op: "replace_grant"}
	}

	e.manifest = m
	e.grant = grant
	r.persistLocked(e)
	return nil
}

// Remove deletes an entry that has reached StateUninstalling. An absent id
// reports NotFound; the Loader decides whether that is fatal for its call.
func (r *Registry) Remove(tok WriteToken, id InstallID) error {
	if !tok.valid(r) {
		return ErrInvalidToken
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	if e.state != StateUninstalling {
		return &InconsistentStateError{ID: id, From: e.state, To: StateUninstalling, Op: "remove"}
	}

	delete(r.entries, id)
	delete(r.byKey, entryKey{name: e.manifest.Name, source: e.source})
	if r.store != nil {
		if err := r.store.Delete(id); err != nil {
			r.logger.Warn("store delete failed", "install_id", id, "error", err)
		}
	}
	return nil
}

// Get returns an immutable view of one entry.
func (r *Registry) Get(id InstallID) (View, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return View{}, &NotFoundError{ID: id}
	}
	return e.view(), nil
}

// List returns views of all entries, ordered by install id.
func (r *Registry) List() []View {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]View, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.view())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// persistLocked pushes committed states to the store. Callers hold r.mu.
func (r *Registry) persistLocked(e *entry) {
	if r.store == nil || e.state.transient() {
		return
	}
	if err := r.store.Put(e.record()); err != nil {
		r.logger.Warn("store put failed", "install_id", e.id, "error", err)
	}
}
