package localfs

import (
	"context"
	"os"
	"path/filepath"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
	"github.com/kirillkom/domain-knowledge-rag/internal/core/ports"
)

// IndexLocator resolves the index artifacts that can answer for a domain.
// Unlike Store it never creates directories or migrates aliases.
type IndexLocator struct {
	basePath   string
	globalPath string
	marketing  ports.MarketingDomainProvider
}

func NewIndexLocator(basePath, globalPath string, marketing ports.MarketingDomainProvider) *IndexLocator {
	return &IndexLocator{basePath: basePath, globalPath: globalPath, marketing: marketing}
}

// DomainIndexPaths returns existing artifacts for the canonical slug, the
// normalised host and its first label, in that order.
func (l *IndexLocator) DomainIndexPaths(ctx context.Context, domainName string) ([]string, error) {
	host := domain.NormalizeHost(domainName, true)
	if host == "" {
		return nil, nil
	}
	var hosts []string
	if l.marketing != nil {
		if list, err := l.marketing.MarketingDomains(ctx); err == nil {
			hosts = list
		}
	}

	candidates := []string{domain.CanonicalSlug(domainName, hosts), host, domain.FirstLabel(host)}
	seen := make(map[string]struct{}, len(candidates))
	var paths []string
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		path := filepath.Join(l.basePath, candidate, indexFile)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

func (l *IndexLocator) GlobalIndexPath() string { return l.globalPath }
