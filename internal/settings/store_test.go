package settings

import (
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"dwd/internal/storage"
)

func newSchemaStore(t *testing.T) *Store {
	t.Helper()
	s := New(storage.NewMemoryBackend(), storage.NewMemoryBackend())
	if err := s.RegisterSchema(DefaultSchema()); err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}
	return s
}

func TestGetReturnsDefaultUntilSet(t *testing.T) {
	s := newSchemaStore(t)
	if got := s.Get(KeyTheme, nil); got != "dark" {
		t.Fatalf("expected default dark, got %v", got)
	}
	if err := s.Set(KeyTheme, "light"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := s.Get(KeyTheme, nil); got != "light" {
		t.Fatalf("expected light, got %v", got)
	}
}

func TestGetUnregisteredReturnsFallback(t *testing.T) {
	s := newSchemaStore(t)
	if got := s.Get("nope.key", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %v", got)
	}
	if _, ok := s.Lookup("nope.key"); ok {
		t.Fatal("expected Lookup to report unregistered key")
	}
}

func TestSetUnregistered(t *testing.T) {
	s := newSchemaStore(t)
	if err := s.Set("nope.key", 1); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestSetRejectsInvalidValue(t *testing.T) {
	s := newSchemaStore(t)
	calls := 0
	s.AddChangeCallback(func(string, any, any) { calls++ })

	err := s.Set(KeyFontSize, 5)
	var verr *ValidationError
	if !errors.As(err, &verr) || !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Key != KeyFontSize {
		t.Fatalf("unexpected key %q", verr.Key)
	}
	if got := s.Get(KeyFontSize, nil); got != 12 {
		t.Fatalf("expected default to remain, got %v", got)
	}
	if calls != 0 {
		t.Fatalf("expected no callbacks on rejected write, got %d", calls)
	}

	if err := s.Set(KeyFontSize, 12); err != nil {
		t.Fatalf("Set valid: %v", err)
	}
}

func TestCallbackReceivesRawOldValue(t *testing.T) {
	s := newSchemaStore(t)
	type change struct {
		key      string
		old, new any
	}
	var got []change
	s.AddChangeCallback(func(key string, oldValue, newValue any) {
		got = append(got, change{key, oldValue, newValue})
	})

	if err := s.Set(KeyTheme, "light"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(KeyTheme, "dark"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	want := []change{
		{KeyTheme, nil, "light"},
		{KeyTheme, "light", "dark"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("callbacks = %#v, want %#v", got, want)
	}
}

func TestCallbacksRunInRegistrationOrderAndCanBeRemoved(t *testing.T) {
	s := newSchemaStore(t)
	var order []int
	s.AddChangeCallback(func(string, any, any) { order = append(order, 1) })
	second := s.AddChangeCallback(func(string, any, any) { order = append(order, 2) })
	s.AddChangeCallback(func(string, any, any) { order = append(order, 3) })

	if err := s.Set(KeyLanguage, "de"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !reflect.DeepEqual(order, []int{1, 2, 3}) {
		t.Fatalf("unexpected order %v", order)
	}

	if !s.RemoveChangeCallback(second) {
		t.Fatal("expected callback removal")
	}
	if s.RemoveChangeCallback(second) {
		t.Fatal("expected second removal to report false")
	}
	order = nil
	if err := s.Set(KeyLanguage, "fr"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !reflect.DeepEqual(order, []int{1, 3}) {
		t.Fatalf("unexpected order after removal %v", order)
	}
}

func TestPanickingCallbackDoesNotStopOthers(t *testing.T) {
	s := newSchemaStore(t)
	called := false
	s.AddChangeCallback(func(string, any, any) { panic("boom") })
	s.AddChangeCallback(func(string, any, any) { called = true })
	if err := s.Set(KeyTheme, "light"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !called {
		t.Fatal("expected later callback to run")
	}
}

func TestRegisterPolicy(t *testing.T) {
	s := New(nil, nil)
	if err := s.Register("a.b", 1, WithValidator(IntRange(0, 5))); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register("a.b", 1); err != nil {
		t.Fatalf("identical re-registration should be a no-op, got %v", err)
	}
	if err := s.Register("a.b", 2); !errors.Is(err, ErrConflictingRegistration) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := s.Register("a.b", 1, Persistent(false)); !errors.Is(err, ErrConflictingRegistration) {
		t.Fatalf("expected conflict on persistence change, got %v", err)
	}
	if err := s.Register("a.c", 9, WithValidator(IntRange(0, 5))); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected invalid default to be rejected, got %v", err)
	}
	if err := s.Register("  ", 1); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestTransientKeysUseTransientBackend(t *testing.T) {
	persistent := storage.NewMemoryBackend()
	transient := storage.NewMemoryBackend()
	s := New(persistent, transient)
	if err := s.RegisterSchema(DefaultSchema()); err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}
	if err := s.Set(KeyCurrentTab, "effects"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ok, _ := persistent.Exists(KeyCurrentTab); ok {
		t.Fatal("transient key leaked into persistent backend")
	}
	if ok, _ := transient.Exists(KeyCurrentTab); !ok {
		t.Fatal("expected transient backend to hold key")
	}
}

func TestCategoryOperations(t *testing.T) {
	s := newSchemaStore(t)
	if err := s.SetCategory("ui", map[string]any{"theme": "light", "font_size": 14}); err != nil {
		t.Fatalf("SetCategory: %v", err)
	}
	got := s.GetCategory("ui")
	want := map[string]any{KeyTheme: "light", KeyFontSize: 14, KeyLanguage: "en"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("GetCategory = %#v, want %#v", got, want)
	}
}

func TestSetCategoryIsAllOrNothing(t *testing.T) {
	s := newSchemaStore(t)
	err := s.SetCategory("ui", map[string]any{"theme": "light", "font_size": 5})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := s.Get(KeyTheme, nil); got != "dark" {
		t.Fatalf("expected no partial write, got theme %v", got)
	}
	if err := s.SetCategory("ui", map[string]any{"missing": 1}); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestResetToDefaults(t *testing.T) {
	s := newSchemaStore(t)
	if err := s.Set(KeyTheme, "light"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var changed []string
	s.AddChangeCallback(func(key string, _, _ any) { changed = append(changed, key) })

	if err := s.ResetToDefaults(); err != nil {
		t.Fatalf("ResetToDefaults: %v", err)
	}
	if got := s.Get(KeyTheme, nil); got != "dark" {
		t.Fatalf("expected default after reset, got %v", got)
	}
	if !reflect.DeepEqual(changed, []string{KeyTheme}) {
		t.Fatalf("expected callback only for changed key, got %v", changed)
	}
	if err := s.ResetToDefaults("nope"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestExportImport(t *testing.T) {
	s := newSchemaStore(t)
	if err := s.Set(KeyTheme, "light"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(KeyCurrentTab, "effects"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	exported := s.Export(true)
	if _, ok := exported[KeyCurrentTab]; ok {
		t.Fatal("persistent export should exclude transient keys")
	}
	if exported[KeyTheme] != "light" {
		t.Fatalf("expected exported theme light, got %v", exported[KeyTheme])
	}
	if _, ok := s.Export(false)[KeyCurrentTab]; !ok {
		t.Fatal("full export should include transient keys")
	}

	if err := s.ResetToDefaults(); err != nil {
		t.Fatalf("ResetToDefaults: %v", err)
	}
	exported["unknown.key"] = "ignored"
	if err := s.Import(exported); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if got := s.Get(KeyTheme, nil); got != "light" {
		t.Fatalf("expected imported theme, got %v", got)
	}
}

func TestImportValidatesBeforeWriting(t *testing.T) {
	s := newSchemaStore(t)
	err := s.Import(map[string]any{KeyTheme: "light", KeyFontSize: 99})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := s.Get(KeyTheme, nil); got != "dark" {
		t.Fatalf("expected nothing applied, got %v", got)
	}
}

func TestFileBackendRoundTripKeepsDefaultTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	backend, err := storage.NewFileBackend(path)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	s := New(backend, nil)
	if err := s.RegisterSchema(DefaultSchema()); err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}
	if err := s.Set(KeySampleRate, 48000); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(KeyVolume, 1); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reopened, err := storage.NewFileBackend(path)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	s2 := New(reopened, nil)
	if err := s2.RegisterSchema(DefaultSchema()); err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}
	if got := Value(s2, KeySampleRate, 0); got != 48000 {
		t.Fatalf("expected int 48000 after reload, got %#v", s2.Get(KeySampleRate, nil))
	}
	if got := Value(s2, KeyVolume, 0.0); got != 1.0 {
		t.Fatalf("expected float volume, got %#v", s2.Get(KeyVolume, nil))
	}
}

func TestConcurrentSetsOnDifferentKeys(t *testing.T) {
	s := newSchemaStore(t)
	var mu sync.Mutex
	seen := map[string]int{}
	s.AddChangeCallback(func(key string, _, _ any) {
		mu.Lock()
		seen[key]++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = s.Set(KeyFontSize, 8+i%20)
		}(i)
		go func(i int) {
			defer wg.Done()
			_ = s.Set(KeyWindowWidth, 400+i)
		}(i)
	}
	wg.Wait()

	if seen[KeyFontSize] != 50 || seen[KeyWindowWidth] != 50 {
		t.Fatalf("expected 50 callbacks per key, got %v", seen)
	}
}
