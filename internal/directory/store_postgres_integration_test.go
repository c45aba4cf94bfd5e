//go:build integration

package directory_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"gatebot/internal/directory"
	"gatebot/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *directory.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = directory.NewPostgres(s.postgres.Pool)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "enrollments"))
}

func (s *PostgresStoreSuite) TestInsertAndLookup() {
	ctx := context.Background()

	rec, err := s.store.Insert(ctx, directory.Record{FullName: " Ivanov  Ivan  Ivanovich ", PhoneSuffix: "5411"})
	s.Require().NoError(err)
	s.NotEmpty(rec.ID)
	s.Equal("Ivanov Ivan Ivanovich", rec.FullName)

	s.Run("find by normalized name", func() {
		found, err := s.store.FindByName(ctx, "Ivanov\tIvan   Ivanovich")
		s.NoError(err)
		s.Equal(rec.ID, found.ID)
	})

	s.Run("duplicate name is rejected by the unique constraint", func() {
		_, err := s.store.Insert(ctx, directory.Record{FullName: "Ivanov Ivan Ivanovich"})
		s.ErrorIs(err, directory.ErrDuplicateName)
	})

	s.Run("missing name returns ErrNotFound", func() {
		_, err := s.store.FindByName(ctx, "Nobody Here")
		s.ErrorIs(err, directory.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestBindLifecycle() {
	ctx := context.Background()

	_, err := s.store.Insert(ctx, directory.Record{FullName: "Petrov Petr Petrovich", PhoneSuffix: "1234"})
	s.Require().NoError(err)

	s.Require().NoError(s.store.Bind(ctx, "Petrov Petr Petrovich", "42"))

	s.Run("identity lookup returns the bound record", func() {
		rec, err := s.store.FindByIdentity(ctx, "42")
		s.NoError(err)
		s.Equal("Petrov Petr Petrovich", rec.FullName)
	})

	s.Run("rebind is rejected without overwrite", func() {
		s.ErrorIs(s.store.Bind(ctx, "Petrov Petr Petrovich", "99"), directory.ErrAlreadyBound)
		rec, err := s.store.FindByIdentity(ctx, "42")
		s.NoError(err)
		s.Equal("42", rec.BoundIdentity)
	})

	s.Run("bind on missing name reports ErrNotFound", func() {
		s.ErrorIs(s.store.Bind(ctx, "Nobody Here", "7"), directory.ErrNotFound)
	})

	s.Run("unbind makes the record claimable again", func() {
		s.Require().NoError(s.store.Unbind(ctx, "Petrov Petr Petrovich"))
		s.NoError(s.store.Bind(ctx, "Petrov Petr Petrovich", "99"))
	})
}

// TestConcurrentBind verifies the conditional UPDATE admits exactly one
// binder under real database concurrency.
func (s *PostgresStoreSuite) TestConcurrentBind() {
	ctx := context.Background()

	_, err := s.store.Insert(ctx, directory.Record{FullName: "Contended Name", PhoneSuffix: "5411"})
	s.Require().NoError(err)

	const goroutines = 20
	var wg sync.WaitGroup
	var wins atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(identity string) {
			defer wg.Done()
			if err := s.store.Bind(ctx, "Contended Name", identity); err == nil {
				wins.Add(1)
			}
		}(fmt.Sprintf("identity-%d", i))
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
}

func (s *PostgresStoreSuite) TestListAllOrdering() {
	ctx := context.Background()

	for _, name := range []string{"Charlie", "Alice", "Bob"} {
		_, err := s.store.Insert(ctx, directory.Record{FullName: name})
		s.Require().NoError(err)
	}

	records, err := s.store.ListAll(ctx)
	s.NoError(err)
	s.Require().Len(records, 3)
	s.Equal("Alice", records[0].FullName)
	s.Equal("Charlie", records[2].FullName)
}
