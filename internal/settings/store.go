package settings

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"sync"

	"dwd/internal/logging"
	"dwd/internal/metrics"
	"dwd/internal/storage"
)

const keyLockShards = 64

// Definition describes a registered setting.
type Definition struct {
	Key         string
	Default     any
	Persistent  bool
	Validator   Validator
	Description string
}

// Category returns the first dotted segment of the key.
func (d Definition) Category() string {
	return categoryOf(d.Key)
}

// ChangeCallback observes accepted writes. oldValue is the value the backend
// held before the write, or nil when the key was never written.
type ChangeCallback func(key string, oldValue, newValue any)

// CallbackID identifies a registered change callback.
type CallbackID uint64

type callbackEntry struct {
	id CallbackID
	fn ChangeCallback
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder for accepted writes.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Store) {
		s.recorder = metrics.OrNoop(r)
	}
}

// RegisterOption adjusts a definition during Register.
type RegisterOption func(*Definition)

// Persistent selects the durable backend (true, the default) or the
// transient one (false).
func Persistent(persistent bool) RegisterOption {
	return func(d *Definition) { d.Persistent = persistent }
}

// WithValidator attaches a validator.
func WithValidator(v Validator) RegisterOption {
	return func(d *Definition) { d.Validator = v }
}

// WithDescription attaches a human readable description.
func WithDescription(description string) RegisterOption {
	return func(d *Definition) { d.Description = description }
}

// Store is the settings registry and its backends. It is safe for
// concurrent use; writes to different keys do not serialize.
type Store struct {
	persistent storage.Backend
	transient  storage.Backend
	logger     *slog.Logger
	recorder   metrics.Recorder

	regMu sync.RWMutex
	defs  map[string]Definition

	keyLocks [keyLockShards]sync.Mutex

	cbMu      sync.Mutex
	callbacks []callbackEntry
	nextCB    CallbackID
}

// New creates a store. A nil transient backend defaults to memory; a nil
// persistent backend also defaults to memory, which suits tests.
func New(persistent, transient storage.Backend, opts ...Option) *Store {
	if persistent == nil {
		persistent = storage.NewMemoryBackend()
	}
	if transient == nil {
		transient = storage.NewMemoryBackend()
	}
	s := &Store{
		persistent: persistent,
		transient:  transient,
		logger:     logging.NewNop(),
		recorder:   metrics.NoopRecorder{},
		defs:       make(map[string]Definition),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logging.String(logging.FieldComponent, "settings"))
	return s
}

// Register declares key with a default value. Registering the same key again
// with an equal default and persistence is a no-op; any other
// re-registration fails with ErrConflictingRegistration.
func (s *Store) Register(key string, defaultValue any, opts ...RegisterOption) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrInvalidKey
	}
	def := Definition{Key: key, Default: defaultValue, Persistent: true}
	for _, opt := range opts {
		opt(&def)
	}
	if err := validate(def, defaultValue); err != nil {
		return err
	}

	s.regMu.Lock()
	defer s.regMu.Unlock()
	if existing, ok := s.defs[key]; ok {
		if existing.Persistent == def.Persistent && reflect.DeepEqual(existing.Default, def.Default) {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrConflictingRegistration, key)
	}
	s.defs[key] = def
	return nil
}

// RegisterSchema registers every definition, stopping at the first error.
func (s *Store) RegisterSchema(defs []Definition) error {
	for _, def := range defs {
		err := s.Register(def.Key, def.Default,
			Persistent(def.Persistent),
			WithValidator(def.Validator),
			WithDescription(def.Description),
		)
		if err != nil {
			return fmt.Errorf("register %q: %w", def.Key, err)
		}
	}
	return nil
}

// Definition returns the registration for key.
func (s *Store) Definition(key string) (Definition, bool) {
	s.regMu.RLock()
	defer s.regMu.RUnlock()
	def, ok := s.defs[key]
	return def, ok
}

// Definitions returns every registration sorted by key.
func (s *Store) Definitions() []Definition {
	s.regMu.RLock()
	defs := make([]Definition, 0, len(s.defs))
	for _, def := range s.defs {
		defs = append(defs, def)
	}
	s.regMu.RUnlock()
	sort.Slice(defs, func(i, j int) bool { return defs[i].Key < defs[j].Key })
	return defs
}

// Get returns the effective value of key: the stored value if one exists,
// otherwise the registered default. Unregistered keys return fallback.
func (s *Store) Get(key string, fallback any) any {
	def, ok := s.Definition(key)
	if !ok {
		return fallback
	}
	return s.effective(def)
}

// Lookup is Get with an explicit registration result.
func (s *Store) Lookup(key string) (any, bool) {
	def, ok := s.Definition(key)
	if !ok {
		return nil, false
	}
	return s.effective(def), true
}

// Value returns the effective value of key as T, or fallback when the key is
// unregistered or holds another type.
func Value[T any](s *Store, key string, fallback T) T {
	if typed, ok := s.Get(key, fallback).(T); ok {
		return typed
	}
	return fallback
}

func (s *Store) effective(def Definition) any {
	value, found, err := s.backendFor(def).Read(def.Key)
	if err != nil {
		s.logger.Warn("setting read failed; using default",
			logging.String(logging.FieldSettingKey, def.Key),
			logging.Error(err),
		)
		return def.Default
	}
	if !found {
		return def.Default
	}
	return coerce(value, def.Default)
}

// Set validates and stores value, then notifies change callbacks.
func (s *Store) Set(key string, value any) error {
	def, ok := s.Definition(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotRegistered, key)
	}
	value = coerce(value, def.Default)

	mu := s.keyLock(key)
	mu.Lock()
	defer mu.Unlock()

	if err := validate(def, value); err != nil {
		return err
	}
	return s.write(def, value, true)
}

// write stores value for def and fires callbacks. The caller holds the key lock.
func (s *Store) write(def Definition, value any, always bool) error {
	backend := s.backendFor(def)
	old, found, err := backend.Read(def.Key)
	if err != nil {
		s.logger.Warn("setting read failed before write",
			logging.String(logging.FieldSettingKey, def.Key),
			logging.Error(err),
		)
		old, found = nil, false
	}
	if err := backend.Write(def.Key, value); err != nil {
		return fmt.Errorf("write setting %q: %w", def.Key, err)
	}
	s.recorder.IncSettingChange(def.Category())
	s.logger.Debug("setting updated",
		logging.String(logging.FieldSettingKey, def.Key),
		logging.Any("value", value),
	)
	if !always && (!found || reflect.DeepEqual(coerce(old, def.Default), value)) {
		return nil
	}
	s.notify(def.Key, old, value)
	return nil
}

// GetCategory returns the effective value of every registered key under
// prefix, keyed by full dotted key.
func (s *Store) GetCategory(prefix string) map[string]any {
	out := make(map[string]any)
	for _, def := range s.categoryDefinitions(prefix) {
		out[def.Key] = s.effective(def)
	}
	return out
}

// SetCategory writes values keyed relative to prefix. All keys must be
// registered and all values valid before anything is written.
func (s *Store) SetCategory(prefix string, values map[string]any) error {
	base := strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	full := make(map[string]any, len(values))
	for rel, value := range values {
		key := rel
		if base != "" {
			key = base + "." + rel
		}
		full[key] = value
	}
	if err := s.checkAll(full, false); err != nil {
		return err
	}
	return s.setAll(full)
}

// ResetToDefaults writes the registered default for each key, or for every
// registered key when none are given. Callbacks fire only for keys whose
// stored value differed from the default.
func (s *Store) ResetToDefaults(keys ...string) error {
	var defs []Definition
	if len(keys) == 0 {
		defs = s.Definitions()
	} else {
		for _, key := range keys {
			def, ok := s.Definition(key)
			if !ok {
				return fmt.Errorf("%w: %q", ErrNotRegistered, key)
			}
			defs = append(defs, def)
		}
	}
	for _, def := range defs {
		mu := s.keyLock(def.Key)
		mu.Lock()
		err := s.write(def, def.Default, false)
		mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// Export returns the effective value of every registered key, optionally
// limited to persistent keys.
func (s *Store) Export(persistentOnly bool) map[string]any {
	out := make(map[string]any)
	for _, def := range s.Definitions() {
		if persistentOnly && !def.Persistent {
			continue
		}
		out[def.Key] = s.effective(def)
	}
	return out
}

// Import applies values through Set after validating every registered key.
// Unregistered keys are skipped and logged.
func (s *Store) Import(values map[string]any) error {
	if err := s.checkAll(values, true); err != nil {
		return err
	}
	known := make(map[string]any, len(values))
	for key, value := range values {
		if _, ok := s.Definition(key); !ok {
			s.logger.Warn("skipping unregistered setting on import",
				logging.String(logging.FieldSettingKey, key),
			)
			continue
		}
		known[key] = value
	}
	return s.setAll(known)
}

// AddChangeCallback registers fn for every accepted write. Callbacks run in
// registration order on the writing goroutine.
func (s *Store) AddChangeCallback(fn ChangeCallback) CallbackID {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.nextCB++
	s.callbacks = append(s.callbacks, callbackEntry{id: s.nextCB, fn: fn})
	return s.nextCB
}

// RemoveChangeCallback unregisters a callback. It reports whether id was found.
func (s *Store) RemoveChangeCallback(id CallbackID) bool {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	for i, entry := range s.callbacks {
		if entry.id == id {
			s.callbacks = append(s.callbacks[:i:i], s.callbacks[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Store) notify(key string, oldValue, newValue any) {
	s.cbMu.Lock()
	callbacks := append([]callbackEntry(nil), s.callbacks...)
	s.cbMu.Unlock()
	for _, entry := range callbacks {
		s.invoke(entry, key, oldValue, newValue)
	}
}

func (s *Store) invoke(entry callbackEntry, key string, oldValue, newValue any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("setting change callback panicked",
				logging.String(logging.FieldSettingKey, key),
				logging.Any("panic", r),
			)
		}
	}()
	entry.fn(key, oldValue, newValue)
}

// checkAll validates values without writing. Unregistered keys fail unless
// skipUnknown is set.
func (s *Store) checkAll(values map[string]any, skipUnknown bool) error {
	for _, key := range sortedKeys(values) {
		def, ok := s.Definition(key)
		if !ok {
			if skipUnknown {
				continue
			}
			return fmt.Errorf("%w: %q", ErrNotRegistered, key)
		}
		if err := validate(def, coerce(values[key], def.Default)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) setAll(values map[string]any) error {
	for _, key := range sortedKeys(values) {
		if err := s.Set(key, values[key]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) categoryDefinitions(prefix string) []Definition {
	base := strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	var out []Definition
	for _, def := range s.Definitions() {
		if base == "" || strings.HasPrefix(def.Key, base+".") {
			out = append(out, def)
		}
	}
	return out
}

func (s *Store) backendFor(def Definition) storage.Backend {
	if def.Persistent {
		return s.persistent
	}
	return s.transient
}

func (s *Store) keyLock(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.keyLocks[h.Sum32()%keyLockShards]
}

func validate(def Definition, value any) (err error) {
	if def.Validator == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &ValidationError{Key: def.Key, Value: value, Reason: fmt.Sprintf("validator panicked: %v", r)}
		}
	}()
	if verr := def.Validator(value); verr != nil {
		return &ValidationError{Key: def.Key, Value: value, Reason: verr.Error()}
	}
	return nil
}

func categoryOf(key string) string {
	if idx := strings.Index(key, "."); idx > 0 {
		return key[:idx]
	}
	return key
}

func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
