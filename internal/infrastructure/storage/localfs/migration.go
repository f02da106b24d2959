package localfs

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
)

// MigrationStrategy moves an alias directory into the canonical location.
type MigrationStrategy interface {
	Name() string
	// RequiresFreshDestination reports whether the strategy only applies
	// while the canonical directory does not exist yet.
	RequiresFreshDestination() bool
	Migrate(fsys FileSystem, src, dst string) error
}

// DefaultStrategies returns rename, symlink and merge-copy in that order.
func DefaultStrategies() []MigrationStrategy {
	return []MigrationStrategy{RenameStrategy{}, SymlinkStrategy{}, MergeCopyStrategy{}}
}

type RenameStrategy struct{}

func (RenameStrategy) Name() string                   { return "rename" }
func (RenameStrategy) RequiresFreshDestination() bool { return true }

func (RenameStrategy) Migrate(fsys FileSystem, src, dst string) error {
	return fsys.Rename(src, dst)
}

type SymlinkStrategy struct{}

func (SymlinkStrategy) Name() string                   { return "symlink" }
func (SymlinkStrategy) RequiresFreshDestination() bool { return true }

func (SymlinkStrategy) Migrate(fsys FileSystem, src, dst string) error {
	target, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	return fsys.Symlink(target, dst)
}

// MergeCopyStrategy copies the alias tree file by file and never replaces a
// file that already exists in the destination.
type MergeCopyStrategy struct{}

func (MergeCopyStrategy) Name() string                   { return "merge_copy" }
func (MergeCopyStrategy) RequiresFreshDestination() bool { return false }

func (s MergeCopyStrategy) Migrate(fsys FileSystem, src, dst string) error {
	if err := fsys.MkdirAll(dst, 0o775); err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	entries, err := fsys.ReadDir(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}

	var errs []error
	for _, entry := range entries {
		origin := filepath.Join(src, entry.Name())
		target := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			if samePath(fsys, origin, target) {
				continue
			}
			if err := s.Migrate(fsys, origin, target); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		if _, err := fsys.Lstat(target); err == nil {
			continue
		}
		data, err := fsys.ReadFile(origin)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", origin, err))
			continue
		}
		if err := fsys.WriteFile(target, data, 0o664); err != nil && !errors.Is(err, fs.ErrExist) {
			errs = append(errs, fmt.Errorf("write %s: %w", target, err))
		}
	}
	return errors.Join(errs...)
}

func samePath(fsys FileSystem, a, b string) bool {
	ra, err := fsys.EvalSymlinks(a)
	if err != nil {
		return false
	}
	rb, err := fsys.EvalSymlinks(b)
	if err != nil {
		return false
	}
	return ra == rb
}

// Migrator applies strategies in order until one succeeds.
type Migrator struct {
	fs         FileSystem
	strategies []MigrationStrategy
}

func NewMigrator(fsys FileSystem, strategies ...MigrationStrategy) *Migrator {
	if fsys == nil {
		fsys = OSFileSystem{}
	}
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Migrator{fs: fsys, strategies: strategies}
}

// Migrate folds src into dst and returns the name of the strategy that
// succeeded. It returns an empty name when there was nothing to do.
func (m *Migrator) Migrate(src, dst string) (string, error) {
	info, err := m.fs.Stat(src)
	if err != nil || !info.IsDir() {
		return "", nil
	}
	if err := m.fs.MkdirAll(filepath.Dir(dst), 0o775); err != nil {
		return "", fmt.Errorf("create parent of %s: %w", dst, err)
	}

	existing, err := m.fs.Lstat(dst)
	destinationExists := err == nil
	if destinationExists && existing.Mode()&fs.ModeSymlink != 0 {
		return "", nil
	}

	var errs []error
	for _, strategy := range m.strategies {
		if destinationExists && strategy.RequiresFreshDestination() {
			continue
		}
		if err := strategy.Migrate(m.fs, src, dst); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", strategy.Name(), err))
			continue
		}
		return strategy.Name(), nil
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("no migration strategy applies to %s", src)
	}
	return "", errors.Join(errs...)
}
