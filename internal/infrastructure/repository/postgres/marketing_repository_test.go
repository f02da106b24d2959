package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
)

func newRepoWithMock(t *testing.T, ttl time.Duration) (*MarketingDomainRepository, sqlmock.Sqlmock, *time.Time, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMarketingDomainRepository(db, ttl)
	repo.now = func() time.Time { return now }
	return repo, mock, &now, func() { _ = db.Close() }
}

func TestMarketingDomainsPrefersHostOverNormalized(t *testing.T) {
	repo, mock, _, done := newRepoWithMock(t, time.Minute)
	defer done()

	mock.ExpectQuery("SELECT host, normalized_host FROM marketing_domains").
		WillReturnRows(sqlmock.NewRows([]string{"host", "normalized_host"}).
			AddRow("calserver.com", "calserver.com").
			AddRow("", "promo.example.com").
			AddRow("calserver.com", "calserver.com").
			AddRow(" ", ""))

	hosts, err := repo.MarketingDomains(context.Background())
	if err != nil {
		t.Fatalf("MarketingDomains() error = %v", err)
	}
	if len(hosts) != 2 || hosts[0] != "calserver.com" || hosts[1] != "promo.example.com" {
		t.Fatalf("unexpected hosts: %v", hosts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarketingDomainsCachesWithinTTL(t *testing.T) {
	repo, mock, now, done := newRepoWithMock(t, time.Minute)
	defer done()

	mock.ExpectQuery("SELECT host, normalized_host FROM marketing_domains").
		WillReturnRows(sqlmock.NewRows([]string{"host", "normalized_host"}).AddRow("a.example", "a.example"))
	mock.ExpectQuery("SELECT host, normalized_host FROM marketing_domains").
		WillReturnRows(sqlmock.NewRows([]string{"host", "normalized_host"}).AddRow("b.example", "b.example"))

	first, err := repo.MarketingDomains(context.Background())
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	*now = now.Add(30 * time.Second)
	second, err := repo.MarketingDomains(context.Background())
	if err != nil {
		t.Fatalf("cached load: %v", err)
	}
	if first[0] != "a.example" || second[0] != "a.example" {
		t.Fatalf("expected cached list, got %v then %v", first, second)
	}

	*now = now.Add(time.Minute)
	third, err := repo.MarketingDomains(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if third[0] != "b.example" {
		t.Fatalf("expected refreshed list, got %v", third)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarketingDomainsServesStaleListOnFailure(t *testing.T) {
	repo, mock, now, done := newRepoWithMock(t, time.Second)
	defer done()

	mock.ExpectQuery("SELECT host, normalized_host FROM marketing_domains").
		WillReturnRows(sqlmock.NewRows([]string{"host", "normalized_host"}).AddRow("a.example", "a.example"))
	mock.ExpectQuery("SELECT host, normalized_host FROM marketing_domains").
		WillReturnError(errors.New("connection refused"))

	if _, err := repo.MarketingDomains(context.Background()); err != nil {
		t.Fatalf("first load: %v", err)
	}
	*now = now.Add(time.Minute)
	hosts, err := repo.MarketingDomains(context.Background())
	if err != nil {
		t.Fatalf("expected stale list, got %v", err)
	}
	if len(hosts) != 1 || hosts[0] != "a.example" {
		t.Fatalf("unexpected hosts: %v", hosts)
	}
}

func TestMarketingDomainsReturnsTemporaryErrorWithoutCache(t *testing.T) {
	repo, mock, _, done := newRepoWithMock(t, time.Minute)
	defer done()

	mock.ExpectQuery("SELECT host, normalized_host FROM marketing_domains").
		WillReturnError(errors.New("connection refused"))

	_, err := repo.MarketingDomains(context.Background())
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestEnsureSchemaCreatesTableUnderAdvisoryLock(t *testing.T) {
	repo, mock, _, done := newRepoWithMock(t, time.Minute)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(int64(2026101901)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS marketing_domains").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
