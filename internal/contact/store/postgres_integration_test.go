//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"contactgraph/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	ContractSuite
	postgres *containers.PostgresContainer
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "contacts"))
	s.reset(func(opts ...Option) backend {
		return NewPostgres(s.postgres.DB, append([]Option{WithTxTimeout(5 * time.Second)}, opts...)...)
	})
}
