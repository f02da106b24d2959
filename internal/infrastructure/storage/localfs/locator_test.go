package localfs

import (
	"context"
	"path/filepath"
	"slices"
	"testing"
)

func touchIndex(t *testing.T, root, name string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	mustMkdirAll(t, dir)
	path := filepath.Join(dir, "index.json")
	mustWriteFile(t, path, "{}")
	return path
}

func TestIndexLocatorCandidates(t *testing.T) {
	root := t.TempDir()
	full := touchIndex(t, root, "shop.example.com")
	label := touchIndex(t, root, "shop")
	locator := NewIndexLocator(root, "/srv/global/index.json", nil)

	paths, err := locator.DomainIndexPaths(context.Background(), "https://www.Shop.Example.com/faq")
	if err != nil {
		t.Fatalf("DomainIndexPaths() error = %v", err)
	}
	if !slices.Equal(paths, []string{full, label}) {
		t.Fatalf("unexpected candidates %v", paths)
	}
	if got := locator.GlobalIndexPath(); got != "/srv/global/index.json" {
		t.Fatalf("unexpected global path %q", got)
	}
}

func TestIndexLocatorPrefersMarketingSlug(t *testing.T) {
	root := t.TempDir()
	slug := touchIndex(t, root, "promo")
	locator := NewIndexLocator(root, "", StaticMarketingDomains{"promo.example.com"})

	paths, err := locator.DomainIndexPaths(context.Background(), "promo.example.com")
	if err != nil {
		t.Fatalf("DomainIndexPaths() error = %v", err)
	}
	if !slices.Equal(paths, []string{slug}) {
		t.Fatalf("expected only the marketing slug, got %v", paths)
	}
}

func TestIndexLocatorSkipsMissingArtifactsWithoutCreatingDirs(t *testing.T) {
	root := t.TempDir()
	locator := NewIndexLocator(root, "", nil)

	paths, err := locator.DomainIndexPaths(context.Background(), "example.com")
	if err != nil || len(paths) != 0 {
		t.Fatalf("expected no candidates, got %v (err %v)", paths, err)
	}
	requireMissing(t, filepath.Join(root, "example.com"))

	paths, err = locator.DomainIndexPaths(context.Background(), "  ")
	if err != nil || len(paths) != 0 {
		t.Fatalf("expected no candidates for a blank domain, got %v (err %v)", paths, err)
	}
}
