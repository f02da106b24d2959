package tfidf

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
)

type loadObserverFake struct {
	outcomes []string
}

func (f *loadObserverFake) ObserveIndexLoad(outcome string) {
	f.outcomes = append(f.outcomes, outcome)
}

func writeArtifact(t *testing.T, path, payload string, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func mustLoad(t *testing.T, cache *Cache, path string) *Index {
	t.Helper()
	index, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load(%s) error = %v", path, err)
	}
	return index
}

func TestCacheReturnsIdenticalInstanceWhileUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	writeArtifact(t, path, catDogArtifact, time.Now().Add(-time.Hour))
	observer := &loadObserverFake{}
	cache := NewCache(observer)

	first := mustLoad(t, cache, path)
	second := mustLoad(t, cache, path)

	if first != second {
		t.Fatalf("expected the cached instance on an unchanged artifact")
	}
	if !slices.Equal(observer.outcomes, []string{LoadMiss, LoadHit}) {
		t.Fatalf("unexpected load outcomes %v", observer.outcomes)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", cache.Len())
	}
}

func TestCacheReloadsWhenModificationTimeChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	base := time.Now().Add(-time.Hour)
	writeArtifact(t, path, catDogArtifact, base)
	observer := &loadObserverFake{}
	cache := NewCache(observer)

	first := mustLoad(t, cache, path)
	if n := len(first.Search("dog", 4, 0)); n != 1 {
		t.Fatalf("expected 1 dog hit before reload, got %d", n)
	}

	writeArtifact(t, path, rankingArtifact, base.Add(time.Minute))
	second := mustLoad(t, cache, path)

	if first == second {
		t.Fatalf("expected a fresh instance after the artifact changed")
	}
	if n := len(second.Search("dog", 4, 0)); n != 0 {
		t.Fatalf("reloaded index still answers dog: %d hits", n)
	}
	if len(second.Search("gamma", 4, 0)) == 0 {
		t.Fatalf("reloaded index must answer gamma")
	}
	if !slices.Equal(observer.outcomes, []string{LoadMiss, LoadReload}) {
		t.Fatalf("unexpected load outcomes %v", observer.outcomes)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", cache.Len())
	}
}

func TestCacheKeysOnCanonicalPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")
	writeArtifact(t, path, catDogArtifact, time.Now().Add(-time.Hour))
	link := filepath.Join(dir, "current.json")
	if err := os.Symlink(path, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	cache := NewCache(nil)

	direct := mustLoad(t, cache, path)
	viaLink := mustLoad(t, cache, link)
	relative := mustLoad(t, cache, filepath.Join(dir, ".", "sub", "..", "index.json"))

	if direct != viaLink || direct != relative {
		t.Fatalf("all spellings of the path must share one cache entry")
	}
}

func TestCacheMissingArtifact(t *testing.T) {
	cache := NewCache(nil)

	index, err := cache.Load(filepath.Join(t.TempDir(), "missing.json"))

	if index != nil {
		t.Fatalf("expected no index")
	}
	if !errors.Is(err, domain.ErrIndexNotFound) || !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestCacheDoesNotServeStaleIndexOnInvalidReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	base := time.Now().Add(-time.Hour)
	writeArtifact(t, path, catDogArtifact, base)
	cache := NewCache(nil)
	mustLoad(t, cache, path)

	writeArtifact(t, path, `{"vocabulary": ["a"], "idf": []}`, base.Add(time.Minute))
	index, err := cache.Load(path)

	if index != nil {
		t.Fatalf("stale index served after an invalid reload")
	}
	if !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestCacheOpenReturnsSearchableIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	writeArtifact(t, path, catDogArtifact, time.Now().Add(-time.Hour))
	cache := NewCache(nil)

	index, err := cache.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if n := len(index.Search("cat", 4, 0)); n != 1 {
		t.Fatalf("expected 1 cat hit, got %d", n)
	}

	if _, err := cache.Open(filepath.Join(t.TempDir(), "nope.json")); !errors.Is(err, domain.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}
