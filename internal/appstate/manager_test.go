package appstate

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"dwd/internal/jobstate"
)

func TestSetGetDelete(t *testing.T) {
	m := New()
	if _, ok := m.Get(CategoryUI, "tab"); ok {
		t.Fatal("expected empty manager")
	}
	m.Set(CategoryUI, "tab", "audio")
	m.Set(CategoryUI, "tab", "effects")
	if got, ok := m.Get(CategoryUI, "tab"); !ok || got != "effects" {
		t.Fatalf("expected last write to win, got %v %v", got, ok)
	}
	if !m.Delete(CategoryUI, "tab") {
		t.Fatal("expected delete to report existing key")
	}
	if m.Delete(CategoryUI, "tab") {
		t.Fatal("expected second delete to report false")
	}
}

func TestEntryTimestamp(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m := New(WithClock(func() time.Time { return fixed }))
	m.Set(CategoryAudio, "device", "default")
	entry, ok := m.Entry(CategoryAudio, "device")
	if !ok || !entry.UpdatedAt.Equal(fixed) || entry.Category != CategoryAudio {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestCategorySnapshotAndClear(t *testing.T) {
	m := New()
	m.Set(CategoryProcessing, "active", 2)
	m.Set(CategoryProcessing, "queued", 5)
	m.Set("custom", "flag", true)

	snap := m.Category(CategoryProcessing)
	if !reflect.DeepEqual(snap, map[string]any{"active": 2, "queued": 5}) {
		t.Fatalf("unexpected snapshot %v", snap)
	}
	snap["active"] = 99
	if got, _ := m.Get(CategoryProcessing, "active"); got != 2 {
		t.Fatal("snapshot mutation leaked into manager")
	}

	if got := m.Categories(); !reflect.DeepEqual(got, []string{"custom", "processing"}) {
		t.Fatalf("unexpected categories %v", got)
	}
	m.Clear(CategoryProcessing)
	if got := m.Categories(); !reflect.DeepEqual(got, []string{"custom"}) {
		t.Fatalf("unexpected categories after clear %v", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cat := []string{CategoryUI, CategoryAudio, CategorySystem}[i%3]
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", j%10)
				m.Set(cat, key, j)
				m.Get(cat, key)
				m.Category(cat)
			}
		}(i)
	}
	wg.Wait()
	if n := len(m.Category(CategoryUI)); n != 10 {
		t.Fatalf("expected 10 keys, got %d", n)
	}
}

func TestJobObserverMirrorsStates(t *testing.T) {
	m := New()
	machine := jobstate.New(jobstate.WithObserver(JobObserver(m)))
	if !machine.CreateJob("job-1", nil) {
		t.Fatal("CreateJob failed")
	}
	machine.SendEvent("job-1", jobstate.EventStart)
	if got, _ := m.Get(CategoryJobs, "job-1"); got != string(jobstate.StateQueued) {
		t.Fatalf("expected queued mirror, got %v", got)
	}
	machine.SendEvent("job-1", jobstate.EventComplete)
	if got, _ := m.Get(CategoryJobs, "job-1"); got != string(jobstate.StateCompleted) {
		t.Fatalf("expected completed mirror, got %v", got)
	}
}

func TestJobRemovalHookDropsMirror(t *testing.T) {
	m := New()
	machine := jobstate.New(
		jobstate.WithObserver(JobObserver(m)),
		jobstate.WithRemovalHook(JobRemovalHook(m)),
	)
	machine.CreateJob("job-1", nil)
	machine.SendEvent("job-1", jobstate.EventStart)
	machine.Remove("job-1")
	if _, ok := m.Get(CategoryJobs, "job-1"); ok {
		t.Fatal("expected mirror removed with job")
	}
}
