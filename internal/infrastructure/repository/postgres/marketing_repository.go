package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
)

const DefaultMarketingCacheTTL = time.Minute

// MarketingDomainRepository lists marketing hosts from the marketing_domains
// table and caches the list for ttl.
type MarketingDomainRepository struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	cached   []string
	loadedAt time.Time
}

func NewMarketingDomainRepository(db *sql.DB, ttl time.Duration) *MarketingDomainRepository {
	if ttl <= 0 {
		ttl = DefaultMarketingCacheTTL
	}
	return &MarketingDomainRepository{db: db, ttl: ttl, now: time.Now}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *MarketingDomainRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS marketing_domains (
	id SERIAL PRIMARY KEY,
	host TEXT NOT NULL,
	normalized_host TEXT NOT NULL UNIQUE,
	label TEXT
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// MarketingDomains returns the configured hosts. When the database is
// unreachable a previously loaded list is served.
func (r *MarketingDomainRepository) MarketingDomains(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil && r.now().Sub(r.loadedAt) < r.ttl {
		return append([]string(nil), r.cached...), nil
	}

	hosts, err := r.queryHosts(ctx)
	if err != nil {
		if r.cached != nil {
			return append([]string(nil), r.cached...), nil
		}
		return nil, domain.WrapError(domain.ErrTemporary, "list marketing domains", err)
	}
	r.cached = hosts
	r.loadedAt = r.now()
	return append([]string(nil), hosts...), nil
}

func (r *MarketingDomainRepository) queryHosts(ctx context.Context) ([]string, error) {
	const query = `SELECT host, normalized_host FROM marketing_domains ORDER BY host ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query marketing domains: %w", err)
	}
	defer rows.Close()

	hosts := make([]string, 0)
	seen := make(map[string]struct{})
	for rows.Next() {
		var host, normalized string
		if err := rows.Scan(&host, &normalized); err != nil {
			return nil, fmt.Errorf("scan marketing domain: %w", err)
		}
		value := strings.TrimSpace(host)
		if value == "" {
			value = strings.TrimSpace(normalized)
		}
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		hosts = append(hosts, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate marketing domains: %w", err)
	}
	return hosts, nil
}
