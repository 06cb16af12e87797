//go:build integration

package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"rwagate/internal/compliance/ledger"
	"rwagate/internal/compliance/models"
	"rwagate/internal/compliance/ports"
	"rwagate/pkg/domain"
	"rwagate/pkg/testutil/containers"
)

// ledgerSuite runs the same behaviour checks against a durable ledger.
type ledgerSuite struct {
	suite.Suite
	ledger ports.Ledger
	reset  func()
	now    time.Time
}

func (s *ledgerSuite) SetupTest() {
	s.reset()
}

func (s *ledgerSuite) append(user domain.UserID, amount domain.Amount, at time.Time, ref string) {
	s.Require().NoError(s.ledger.Append(context.Background(), models.LedgerEntry{
		UserID: user, Amount: amount, OccurredAt: at, Reference: ref,
	}))
}

func (s *ledgerSuite) TestWindowSum() {
	ctx := context.Background()
	dayStart := time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)

	s.append("user-1", 4_00_000, dayStart.Add(-time.Minute), "t-1")
	s.append("user-1", 3_00_000, dayStart, "t-2")
	s.append("user-1", 2_50_000, s.now, "t-3")
	s.append("user-2", 9_00_000, s.now, "t-4")

	total, err := s.ledger.SumSince(ctx, "user-1", dayStart)
	s.Require().NoError(err)
	s.Equal(domain.Amount(5_50_000), total)

	total, err = s.ledger.SumSince(ctx, "user-3", dayStart)
	s.Require().NoError(err)
	s.Zero(total)
}

func (s *ledgerSuite) TestRepeatedEntriesAreCountedSeparately() {
	ctx := context.Background()
	s.append("user-1", 4_50_000, s.now, "retry")
	s.append("user-1", 4_50_000, s.now, "retry")

	total, err := s.ledger.SumSince(ctx, "user-1", s.now.Add(-time.Hour))
	s.Require().NoError(err)
	s.Equal(domain.Amount(9_00_000), total)

	history, err := s.ledger.History(ctx, "user-1")
	s.Require().NoError(err)
	s.Len(history, 2)
}

func (s *ledgerSuite) TestHistory() {
	ctx := context.Background()
	s.append("user-1", 20, s.now, "second")
	s.append("user-1", 10, s.now.Add(-time.Hour), "first")

	history, err := s.ledger.History(ctx, "user-1")
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal("first", history[0].Reference)
	s.Equal(domain.Amount(10), history[0].Amount)
	s.True(s.now.Add(-time.Hour).Equal(history[0].OccurredAt))
	s.Equal("second", history[1].Reference)
	s.Equal(domain.UserID("user-1"), history[1].UserID)
}

func TestRedisLedger(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.NewRedisContainer(t)
	l, err := ledger.NewRedis(rc.Client)
	if err != nil {
		t.Fatal(err)
	}
	suite.Run(t, &ledgerSuite{
		ledger: l,
		reset:  func() { _ = rc.FlushAll(context.Background()) },
		now:    time.Date(2025, time.March, 14, 10, 30, 0, 0, time.UTC),
	})
}

func TestPostgresLedger(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pg := containers.NewPostgresContainer(t)
	pool, err := pgxpool.New(context.Background(), pg.DSN)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)
	l, err := ledger.NewPostgres(pool)
	if err != nil {
		t.Fatal(err)
	}
	suite.Run(t, &ledgerSuite{
		ledger: l,
		reset:  func() { pg.Truncate(t, "ledger_entries") },
		now:    time.Date(2025, time.March, 14, 10, 30, 0, 0, time.UTC),
	})
}
