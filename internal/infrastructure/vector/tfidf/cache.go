package tfidf

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
	"github.com/kirillkom/domain-knowledge-rag/internal/core/ports"
)

// Load outcomes reported to a LoadObserver.
const (
	LoadHit    = "hit"
	LoadMiss   = "miss"
	LoadReload = "reload"
	LoadError  = "error"
)

// LoadObserver receives one outcome per Cache.Load call.
type LoadObserver interface {
	ObserveIndexLoad(outcome string)
}

type cacheEntry struct {
	index *Index
	mtime int64
}

// Cache keeps one parsed index per canonical artifact path and reparses an
// artifact only when its modification time changes.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]cacheEntry
	observer LoadObserver
}

func NewCache(observer LoadObserver) *Cache {
	return &Cache{
		entries:  make(map[string]cacheEntry),
		observer: observer,
	}
}

// Load returns the index stored at path. A cached instance is returned as-is
// while the artifact's modification time is unchanged.
func (c *Cache) Load(path string) (*Index, error) {
	canonical, info, err := resolveArtifact(path)
	if err != nil {
		c.observe(LoadError)
		return nil, err
	}
	mtime := info.ModTime().UnixNano()

	c.mu.RLock()
	entry, cached := c.entries[canonical]
	c.mu.RUnlock()
	if cached && entry.mtime == mtime {
		c.observe(LoadHit)
		return entry.index, nil
	}

	data, err := os.ReadFile(canonical)
	if err != nil {
		c.observe(LoadError)
		return nil, domain.WrapError(domain.ErrIndexNotFound, "read semantic index", err)
	}
	index, err := Parse(data)
	if err != nil {
		c.observe(LoadError)
		return nil, fmt.Errorf("load %s: %w", canonical, err)
	}

	c.mu.Lock()
	c.entries[canonical] = cacheEntry{index: index, mtime: mtime}
	c.mu.Unlock()

	if cached {
		c.observe(LoadReload)
	} else {
		c.observe(LoadMiss)
	}
	slog.Debug("index_loaded", "path", canonical, "chunks", len(index.chunks), "vocabulary", len(index.vocabulary))
	return index, nil
}

// Open satisfies ports.IndexLoader.
func (c *Cache) Open(path string) (ports.SemanticIndex, error) {
	index, err := c.Load(path)
	if err != nil {
		return nil, err
	}
	return index, nil
}

// Len reports the number of cached artifacts.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) observe(outcome string) {
	if c.observer != nil {
		c.observer.ObserveIndexLoad(outcome)
	}
}

func resolveArtifact(path string) (string, os.FileInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, domain.WrapError(domain.ErrIndexNotFound, "resolve semantic index "+path, err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", nil, domain.WrapError(domain.ErrIndexNotFound, "resolve semantic index "+path, err)
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return "", nil, domain.WrapError(domain.ErrIndexNotFound, "stat semantic index "+path, err)
	}
	if info.IsDir() {
		return "", nil, fmt.Errorf("semantic index %s is a directory: %w", path, domain.ErrIndexNotFound)
	}
	return canonical, info, nil
}
