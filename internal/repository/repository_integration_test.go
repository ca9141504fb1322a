//go:build integration

package repository_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/bossnet/party-signup/internal/database"
	"github.com/bossnet/party-signup/internal/model"
	"github.com/bossnet/party-signup/internal/repository"
)

type RegistrationRepositorySuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	pool      *pgxpool.Pool
	repo      *repository.RegistrationRepository
}

func TestRegistrationRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RegistrationRepositorySuite))
}

func (s *RegistrationRepositorySuite) SetupSuite() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("party"),
		tcpostgres.WithUsername("party"),
		tcpostgres.WithPassword("party"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err, "start postgres container")
	s.container = container

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.Require().NoError(database.Migrate(url, logger))

	s.pool, err = database.NewPool(ctx, database.PoolConfig{URL: url, MaxConns: 20}, logger)
	s.Require().NoError(err)
	s.repo = repository.NewRegistrationRepository(s.pool)
}

func (s *RegistrationRepositorySuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *RegistrationRepositorySuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), `TRUNCATE registrations RESTART IDENTITY`)
	s.Require().NoError(err)
}

func newRegistration(email string) model.Registration {
	return model.Registration{
		Nickname:   "Trinity",
		Email:      email,
		TicketType: model.TicketAdult,
		Shirt:      true,
		Guests:     2,
		Consent:    true,
	}
}

var provenance = model.Provenance{IPAddress: "203.0.113.7", UserAgent: "go-test"}

func (s *RegistrationRepositorySuite) TestUpsertInsertsThenOverwrites() {
	ctx := context.Background()

	first, err := s.repo.Upsert(ctx, newRegistration("trin@example.com"), provenance)
	s.Require().NoError(err)
	s.True(first.Created)

	s.Require().NoError(s.repo.SetPaid(ctx, "trin@example.com", 1))
	before, err := s.repo.GetByEmail(ctx, "trin@example.com")
	s.Require().NoError(err)

	update := newRegistration("trin@example.com")
	update.Nickname = "Trinity2"
	update.TicketType = model.TicketMinor
	update.Guests = 0
	second, err := s.repo.Upsert(ctx, update, model.Provenance{IPAddress: "unknown"})
	s.Require().NoError(err)
	s.False(second.Created)
	s.Equal(first.ID, second.ID)

	after, err := s.repo.GetByEmail(ctx, "trin@example.com")
	s.Require().NoError(err)
	s.Equal("Trinity2", after.Nickname)
	s.Equal(model.TicketMinor, after.TicketType)
	s.Equal(0, after.Guests)
	s.Equal(1, after.Paid, "paid flag survives re-registration")
	s.True(before.CreatedAt.Equal(after.CreatedAt), "created_at is immutable")

	n, err := s.repo.Count(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *RegistrationRepositorySuite) TestListPublicHidesNonConsenting() {
	ctx := context.Background()

	_, err := s.repo.Upsert(ctx, newRegistration("a@example.com"), provenance)
	s.Require().NoError(err)
	hidden := newRegistration("b@example.com")
	hidden.Nickname = "Hidden"
	hidden.Consent = false
	_, err = s.repo.Upsert(ctx, hidden, provenance)
	s.Require().NoError(err)
	time.Sleep(10 * time.Millisecond)
	latest := newRegistration("c@example.com")
	latest.Nickname = "Morpheus"
	_, err = s.repo.Upsert(ctx, latest, provenance)
	s.Require().NoError(err)

	list, err := s.repo.ListPublic(ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("Morpheus", list[0].Nickname, "newest first")
	for _, r := range list {
		s.NotEqual("Hidden", r.Nickname)
	}
}

func (s *RegistrationRepositorySuite) TestConcurrentSameEmailKeepsOneRow() {
	ctx := context.Background()
	const writers = 20

	var wg sync.WaitGroup
	var unexpected atomic.Int32
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.repo.Upsert(ctx, newRegistration("race@example.com"), provenance)
			if err != nil && !errors.Is(err, repository.ErrAlreadyRegistered) {
				unexpected.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Zero(unexpected.Load())
	n, err := s.repo.Count(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *RegistrationRepositorySuite) TestConstraintViolationsMapToInvalidInput() {
	ctx := context.Background()

	badTicket := newRegistration("x@example.com")
	badTicket.TicketType = "VIP"
	_, err := s.repo.Upsert(ctx, badTicket, provenance)
	s.ErrorIs(err, repository.ErrInvalidInput)

	longNick := newRegistration("y@example.com")
	longNick.Nickname = strings.Repeat("n", 60)
	_, err = s.repo.Upsert(ctx, longNick, provenance)
	s.ErrorIs(err, repository.ErrInvalidInput)

	n, err := s.repo.Count(ctx)
	s.Require().NoError(err)
	s.Zero(n, "failed transactions leave no rows")
}

func (s *RegistrationRepositorySuite) TestSetPaidUnknownEmail() {
	err := s.repo.SetPaid(context.Background(), "nobody@example.com", 1)
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *RegistrationRepositorySuite) TestPing() {
	s.NoError(s.repo.Ping(context.Background()))
}
