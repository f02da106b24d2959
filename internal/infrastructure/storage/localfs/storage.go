package localfs

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
	"github.com/kirillkom/domain-knowledge-rag/internal/core/ports"
)

const (
	uploadsDirName = "uploads"
	indexFile      = "index.json"
	corpusFile     = "corpus.jsonl"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Options configures a Store. Zero values fall back to production defaults.
type Options struct {
	LegacyRoots []string
	Marketing   ports.MarketingDomainProvider
	FileSystem  FileSystem
	Strategies  []MigrationStrategy
	Logger      *slog.Logger
	Now         func() time.Time
}

// Store keeps raw knowledge documents and their metadata per domain under
// {root}/{domain}/.
type Store struct {
	basePath    string
	legacyRoots []string
	marketing   ports.MarketingDomainProvider
	migrator    *Migrator
	logger      *slog.Logger
	now         func() time.Time
	locks       domainLocks
}

func New(basePath string, opts Options) (*Store, error) {
	if basePath == "" {
		basePath = "./data/rag-chatbot/domains"
	}
	if err := os.MkdirAll(basePath, 0o775); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		basePath:    basePath,
		legacyRoots: opts.LegacyRoots,
		marketing:   opts.Marketing,
		migrator:    NewMigrator(opts.FileSystem, opts.Strategies...),
		logger:      opts.Logger,
		now:         opts.Now,
	}, nil
}

func (s *Store) BasePath() string { return s.basePath }

func (s *Store) ListDocuments(ctx context.Context, domainName string) ([]domain.Document, error) {
	slug, err := s.NormaliseDomain(ctx, domainName)
	if err != nil {
		return nil, err
	}
	domainDir := s.domainPath(slug)
	entries, err := readMetadata(domainDir)
	if err != nil {
		return nil, err
	}

	uploadsDir := filepath.Join(domainDir, uploadsDirName)
	docs := make([]domain.Document, 0, len(entries))
	for id, entry := range entries {
		doc := entryToDocument(id, entry)
		if info, err := os.Stat(filepath.Join(uploadsDir, entry.Filename)); err == nil && info.Mode().IsRegular() {
			doc.Size = info.Size()
			doc.UpdatedAt = info.ModTime().UTC()
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].UploadedAt.Equal(docs[j].UploadedAt) {
			return docs[i].UploadedAt.After(docs[j].UploadedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

func (s *Store) StoreDocument(ctx context.Context, domainName string, file domain.UploadedFile) (*domain.Document, error) {
	slug, err := s.NormaliseDomain(ctx, domainName)
	if err != nil {
		return nil, err
	}
	if file.Err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUploadFailed, file.Err)
	}
	if file.Body == nil {
		return nil, domain.ErrUploadFailed
	}

	clientName := strings.TrimSpace(file.Filename)
	if clientName == "" {
		return nil, domain.ErrInvalidFilename
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(clientName), "."))
	if ext == "" || !domain.IsAllowedExtension(ext) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedExtension, ext)
	}
	if file.Size > domain.MaxDocumentSize {
		return nil, domain.ErrSizeExceeded
	}

	uploadsDir := filepath.Join(s.domainPath(slug), uploadsDirName)
	if err := os.MkdirAll(uploadsDir, 0o775); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}

	id := newDocumentID()
	stem := strings.TrimSuffix(filepath.Base(clientName), filepath.Ext(clientName))
	storedName := fmt.Sprintf("%s-%s.%s", id, sanitizeBaseName(stem), ext)
	target := filepath.Join(uploadsDir, storedName)

	if err := moveUpload(file.Body, uploadsDir, target); err != nil {
		return nil, err
	}
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("stat stored document: %w", err)
	}
	if info.Size() > domain.MaxDocumentSize {
		_ = os.Remove(target)
		return nil, domain.ErrSizeExceeded
	}

	mimeType := strings.TrimSpace(file.MediaType)
	if mimeType == "" {
		mimeType = mime.TypeByExtension("." + ext)
	}
	now := formatTimestamp(s.now())
	entry := metadataEntry{
		Name:       clientName,
		Filename:   storedName,
		MimeType:   mimeType,
		Size:       info.Size(),
		UploadedAt: now,
		UpdatedAt:  now,
	}

	unlock := s.locks.lock(slug)
	defer unlock()
	entries, err := readMetadata(s.domainPath(slug))
	if err != nil {
		_ = os.Remove(target)
		return nil, err
	}
	entries[id] = entry
	if err := writeMetadata(s.domainPath(slug), entries); err != nil {
		_ = os.Remove(target)
		return nil, err
	}

	s.logger.Info("document_stored", "domain", slug, "document_id", id, "size", entry.Size)
	doc := entryToDocument(id, entry)
	return &doc, nil
}

func (s *Store) DeleteDocument(ctx context.Context, domainName, id string) error {
	slug, err := s.NormaliseDomain(ctx, domainName)
	if err != nil {
		return err
	}
	domainDir := s.domainPath(slug)

	unlock := s.locks.lock(slug)
	defer unlock()
	entries, err := readMetadata(domainDir)
	if err != nil {
		return err
	}
	entry, ok := entries[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	delete(entries, id)
	if err := writeMetadata(domainDir, entries); err != nil {
		return err
	}

	path := filepath.Join(domainDir, uploadsDirName, entry.Filename)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("document_file_remove_failed", "domain", slug, "document_id", id, "error", err)
	}
	s.logger.Info("document_deleted", "domain", slug, "document_id", id)
	return nil
}

func (s *Store) OpenDocument(ctx context.Context, domainName, id string) (*domain.Document, io.ReadCloser, error) {
	slug, err := s.NormaliseDomain(ctx, domainName)
	if err != nil {
		return nil, nil, err
	}
	domainDir := s.domainPath(slug)
	entries, err := readMetadata(domainDir)
	if err != nil {
		return nil, nil, err
	}
	entry, ok := entries[id]
	if !ok {
		return nil, nil, domain.ErrDocumentNotFound
	}

	f, err := os.Open(filepath.Join(domainDir, uploadsDirName, entry.Filename))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, domain.ErrDocumentNotFound
		}
		return nil, nil, fmt.Errorf("open document: %w", err)
	}
	doc := entryToDocument(id, entry)
	if info, err := f.Stat(); err == nil {
		doc.Size = info.Size()
		doc.UpdatedAt = info.ModTime().UTC()
	}
	return &doc, f, nil
}

func (s *Store) UploadsDir(ctx context.Context, domainName string) (string, error) {
	return s.ensureDomainPath(ctx, domainName, uploadsDirName)
}

func (s *Store) IndexPath(ctx context.Context, domainName string) (string, error) {
	dir, err := s.ensureDomainPath(ctx, domainName, "")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, indexFile), nil
}

func (s *Store) CorpusPath(ctx context.Context, domainName string) (string, error) {
	dir, err := s.ensureDomainPath(ctx, domainName, "")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, corpusFile), nil
}

func (s *Store) DomainDirectory(ctx context.Context, domainName string) (string, error) {
	return s.ensureDomainPath(ctx, domainName, "")
}

// DocumentFiles lists the stored files referenced by metadata. Orphaned
// entries whose file is gone are skipped, not removed.
func (s *Store) DocumentFiles(ctx context.Context, domainName string) ([]string, error) {
	slug, err := s.NormaliseDomain(ctx, domainName)
	if err != nil {
		return nil, err
	}
	domainDir := s.domainPath(slug)
	entries, err := readMetadata(domainDir)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		candidate := filepath.Join(domainDir, uploadsDirName, entry.Filename)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			paths = append(paths, candidate)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *Store) RemoveIndex(ctx context.Context, domainName string) error {
	slug, err := s.NormaliseDomain(ctx, domainName)
	if err != nil {
		return err
	}
	for _, name := range []string{indexFile, corpusFile} {
		err := os.Remove(filepath.Join(s.domainPath(slug), name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

// NormaliseDomain canonicalises domainName and folds every alias directory
// it can find into the canonical one.
func (s *Store) NormaliseDomain(ctx context.Context, domainName string) (string, error) {
	hosts := s.marketingHosts(ctx)
	slug := domain.CanonicalSlug(domainName, hosts)
	if slug == "" {
		return "", domain.ErrInvalidDomain
	}

	aliases := domain.MarketingAliases(domainName, hosts)
	if legacy := domain.NormalizeHost(domainName, true); legacy != "" && legacy != slug {
		aliases = append(aliases, legacy)
	}
	aliases = append(aliases, s.prefixedDirectories(slug)...)

	seen := make(map[string]struct{}, len(aliases))
	canonicalPath := s.domainPath(slug)
	for _, alias := range aliases {
		alias = strings.TrimSpace(alias)
		lower := strings.ToLower(alias)
		if alias == "" || lower == slug || strings.ContainsAny(alias, `/\`) {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		s.migrate(filepath.Join(s.basePath, alias), canonicalPath, slug)
	}

	for _, root := range s.legacyRoots {
		for _, name := range append([]string{slug}, keys(seen)...) {
			s.migrate(filepath.Join(root, name), canonicalPath, slug)
		}
	}
	return slug, nil
}

func (s *Store) migrate(src, dst, slug string) {
	strategy, err := s.migrator.Migrate(src, dst)
	if err != nil {
		s.logger.Warn("domain_migration_failed", "domain", slug, "source", src, "error", err)
		return
	}
	if strategy != "" {
		s.logger.Info("domain_migrated", "domain", slug, "source", src, "strategy", strategy)
	}
}

// prefixedDirectories finds directories named "<slug>.<anything>" under the
// store root.
func (s *Store) prefixedDirectories(slug string) []string {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil
	}
	prefix := slug + "."
	var out []string
	for _, entry := range entries {
		lower := strings.ToLower(entry.Name())
		if lower == slug || !strings.HasPrefix(lower, prefix) || !entry.IsDir() {
			continue
		}
		out = append(out, entry.Name())
	}
	return out
}

func (s *Store) marketingHosts(ctx context.Context) []string {
	if s.marketing == nil {
		return nil
	}
	hosts, err := s.marketing.MarketingDomains(ctx)
	if err != nil {
		s.logger.Warn("marketing_domains_unavailable", "error", err)
		return nil
	}
	return hosts
}

func (s *Store) ensureDomainPath(ctx context.Context, domainName, sub string) (string, error) {
	slug, err := s.NormaliseDomain(ctx, domainName)
	if err != nil {
		return "", err
	}
	dir := s.domainPath(slug)
	if sub != "" {
		dir = filepath.Join(dir, sub)
	}
	if err := os.MkdirAll(dir, 0o775); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return dir, nil
}

func (s *Store) domainPath(slug string) string {
	return filepath.Join(s.basePath, slug)
}

// moveUpload streams body into a temp file inside dir and renames it to
// target. Bodies larger than the document limit are discarded.
func moveUpload(body io.Reader, dir, target string) error {
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create upload temp file: %w", err)
	}
	tmpName := tmp.Name()
	written, copyErr := io.Copy(tmp, io.LimitReader(body, domain.MaxDocumentSize+1))
	closeErr := tmp.Close()
	if copyErr != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", domain.ErrUploadFailed, copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close upload temp file: %w", closeErr)
	}
	if written > domain.MaxDocumentSize {
		_ = os.Remove(tmpName)
		return domain.ErrSizeExceeded
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("move upload: %w", err)
	}
	return nil
}

func entryToDocument(id string, entry metadataEntry) domain.Document {
	return domain.Document{
		ID:         id,
		Name:       entry.Name,
		Filename:   entry.Filename,
		MimeType:   entry.MimeType,
		Size:       entry.Size,
		UploadedAt: parseTimestamp(entry.UploadedAt),
		UpdatedAt:  parseTimestamp(entry.UpdatedAt),
	}
}

func newDocumentID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:8])
}

func sanitizeBaseName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.Trim(nonSlugChars.ReplaceAllString(name, "-"), "-")
	if name == "" {
		return "document"
	}
	return name
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

const rebuildLockFile = "rebuild.lock"

// LastRebuild reports the modification time of the domain's rebuild.lock.
func (s *Store) LastRebuild(ctx context.Context, domainName string) (time.Time, bool, error) {
	slug, err := s.NormaliseDomain(ctx, domainName)
	if err != nil {
		return time.Time{}, false, err
	}
	info, err := os.Stat(filepath.Join(s.domainPath(slug), rebuildLockFile))
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("stat rebuild lock: %w", err)
	}
	return info.ModTime(), true, nil
}

// MarkRebuild touches the domain's rebuild.lock with the given time.
func (s *Store) MarkRebuild(ctx context.Context, domainName string, at time.Time) error {
	dir, err := s.ensureDomainPath(ctx, domainName, "")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, rebuildLockFile)
	if err := os.WriteFile(path, []byte(formatTimestamp(at)+"\n"), 0o664); err != nil {
		return fmt.Errorf("write rebuild lock: %w", err)
	}
	if err := os.Chtimes(path, at, at); err != nil {
		return fmt.Errorf("touch rebuild lock: %w", err)
	}
	return nil
}
