// Package store provides the shared reactive store an App fans out to, with
// named actions and optional persistence.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/conneroisu/melodi/internal/component"
	"github.com/conneroisu/melodi/internal/errors"
	"github.com/conneroisu/melodi/internal/logging"
	"github.com/conneroisu/melodi/internal/reactive"
)

// ErrUnknownAction is returned by Dispatch for an action that was never
// registered. Match it with errors.Is.
var ErrUnknownAction = errors.NewValidationError(errors.ErrCodeUnknownAction, "unknown action")

// Action mutates the store in response to a dispatch.
type Action func(s *Store, payload any) error

// Options configures a Store
type Options struct {
	// State returns the initial state.
	State   func() map[string]any
	Actions map[string]Action
	// Persister, when set, seeds state at construction and saves a snapshot
	// after every successful dispatch.
	Persister Persister
	Logger    logging.Logger
}

// Store is a reactive record plus named actions.
type Store struct {
	state     *reactive.Record
	persister Persister
	logger    logging.Logger

	mu      sync.RWMutex
	actions map[string]Action
}

// New creates a store. Persisted state, when present, overrides the initial
// state key by key.
func New(ctx context.Context, opts Options) (*Store, error) {
	initial := map[string]any{}
	if opts.State != nil {
		for k, v := range opts.State() {
			initial[k] = v
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	if opts.Persister != nil {
		saved, err := opts.Persister.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load persisted state: %w", err)
		}
		for k, v := range saved {
			initial[k] = v
		}
	}

	s := &Store{
		state:     reactive.NewRecord(initial),
		persister: opts.Persister,
		logger:    logger.WithComponent("store"),
		actions:   make(map[string]Action, len(opts.Actions)),
	}
	for name, action := range opts.Actions {
		s.actions[name] = action
	}
	return s, nil
}

// Get returns the value stored under key
func (s *Store) Get(key string) (any, bool) {
	return s.state.Get(key)
}

// Set writes key. Every write notifies subscribers.
func (s *Store) Set(key string, value any) {
	s.state.Set(key, value)
}

// State returns the underlying record
func (s *Store) State() *reactive.Record {
	return s.state
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() map[string]any {
	return s.state.Snapshot()
}

// OnChange subscribes to every write
func (s *Store) OnChange(fn func(reactive.Change)) (cancel func()) {
	return s.state.OnChange(fn)
}

// Subscribe is OnChange under the name store users expect.
func (s *Store) Subscribe(fn func(reactive.Change)) (cancel func()) {
	return s.OnChange(fn)
}

// Register adds or replaces an action
func (s *Store) Register(name string, action Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[name] = action
}

// Actions returns the registered action names sorted
func (s *Store) Actions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.actions))
	for name := range s.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the named action. Panics in the action are returned as
// errors. A configured persister saves the state after a successful action.
func (s *Store) Dispatch(ctx context.Context, name string, payload any) error {
	s.mu.RLock()
	action, ok := s.actions[name]
	s.mu.RUnlock()
	if !ok {
		return errors.NewValidationError(errors.ErrCodeUnknownAction,
			fmt.Sprintf("unknown action %q", name)).WithComponent("store")
	}

	if err := errors.Safely(func() error { return action(s, payload) }); err != nil {
		s.logger.Debug(ctx, "action failed", "action", name, "error", err)
		return fmt.Errorf("action %s: %w", name, err)
	}

	if s.persister != nil {
		if err := s.persister.Save(ctx, s.Snapshot()); err != nil {
			s.logger.Warn(ctx, err, "persist state", "action", name)
			return fmt.Errorf("persist after %s: %w", name, err)
		}
	}
	s.logger.Debug(ctx, "dispatched", "action", name)
	return nil
}

// Install implements component.Plugin
func (s *Store) Install(app *component.App) error {
	app.SetStore(s)
	return nil
}

var _ component.Store = (*Store)(nil)
var _ component.Plugin = (*Store)(nil)
