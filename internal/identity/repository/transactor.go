package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"tenant-rollups/backend/internal/db"
	"tenant-rollups/backend/internal/identity/service"
	"tenant-rollups/backend/internal/identity/store"
	membershiprepo "tenant-rollups/backend/internal/membership/repository"
	refreshrepo "tenant-rollups/backend/internal/refreshtoken/repository"
	"tenant-rollups/backend/internal/security"
	tenantrepo "tenant-rollups/backend/internal/tenant/repository"
	userrepo "tenant-rollups/backend/internal/user/repository"
)

// PostgresTransactor binds the registration stores to one pgx transaction.
type PostgresTransactor struct {
	pool   db.Beginner
	hasher *security.Hasher
}

// NewPostgresTransactor returns a transactor that begins transactions on pool.
func NewPostgresTransactor(pool db.Beginner, hasher *security.Hasher) *PostgresTransactor {
	return &PostgresTransactor{pool: pool, hasher: hasher}
}

// InTx runs fn against tx-bound repositories and commits when fn returns nil.
func (p *PostgresTransactor) InTx(ctx context.Context, fn func(service.Stores) error) error {
	return db.InTx(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(service.Stores{
			Identities:  store.New(userrepo.NewPostgresRepository(tx), NewPostgresRepository(tx), p.hasher),
			Tenants:     tenantrepo.NewPostgresRepository(tx),
			Memberships: membershiprepo.NewPostgresRepository(tx),
			Refresh:     refreshrepo.NewPostgresRepository(tx),
		})
	})
}
