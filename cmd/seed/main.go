// seed inserts development sample data for local testing: one tenant with an owner, a member
// and an ingestion API key. Idempotent: skips everything if the owner email already exists.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	apikeyrepo "tenant-rollups/backend/internal/apikey/repository"
	apikeyservice "tenant-rollups/backend/internal/apikey/service"
	"tenant-rollups/backend/internal/config"
	"tenant-rollups/backend/internal/db"
	identityrepo "tenant-rollups/backend/internal/identity/repository"
	identityservice "tenant-rollups/backend/internal/identity/service"
	"tenant-rollups/backend/internal/identity/store"
	membershipdomain "tenant-rollups/backend/internal/membership/domain"
	membershiprepo "tenant-rollups/backend/internal/membership/repository"
	"tenant-rollups/backend/internal/platform/logger"
	refreshrepo "tenant-rollups/backend/internal/refreshtoken/repository"
	"tenant-rollups/backend/internal/security"
	tenantrepo "tenant-rollups/backend/internal/tenant/repository"
	userrepo "tenant-rollups/backend/internal/user/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	ownerEmail := flags.String("owner-email", "dev@example.com", "email of the demo tenant owner")
	memberEmail := flags.String("member-email", "member@example.com", "email of the demo tenant member")
	password := flags.String("password", "password123", "password for both demo users")
	tenantName := flags.String("tenant", "Acme Dev", "demo tenant name")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel, "seed")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	pool, err := db.Open(ctx, db.PoolConfig{DSN: cfg.DatabaseURL, MaxConns: 2, MinConns: 1})
	if err != nil {
		return err
	}
	defer pool.Close()

	tokens, err := security.NewTokenProvider([]byte(cfg.SigningSecret), cfg.Issuer, cfg.AccessTTL)
	if err != nil {
		return err
	}
	hasher := security.NewHasher(cfg.BcryptCost)
	users := store.New(userrepo.NewPostgresRepository(pool), identityrepo.NewPostgresRepository(pool), hasher)
	tenants := tenantrepo.NewPostgresRepository(pool)
	members := membershiprepo.NewPostgresRepository(pool)
	auth := identityservice.NewAuthService(users, tenants, members, refreshrepo.NewPostgresRepository(pool), tokens, cfg.RefreshTTL).
		WithTransactor(identityrepo.NewPostgresTransactor(pool, hasher))
	keys := apikeyservice.NewManager(apikeyrepo.NewPostgresRepository(pool), tenants, nil)

	existing, err := users.GetByEmail(ctx, *ownerEmail)
	if err != nil {
		return fmt.Errorf("seed check: %w", err)
	}
	if existing != nil {
		log.Info("seed already applied, skipping", zap.String("owner", *ownerEmail))
		return nil
	}

	res, err := auth.Register(ctx, identityservice.RegisterInput{
		Email:      *ownerEmail,
		Password:   *password,
		FirstName:  "Dev",
		LastName:   "Owner",
		TenantName: *tenantName,
		IP:         "seed",
	})
	if err != nil {
		return fmt.Errorf("register owner: %w", err)
	}
	if !res.Success {
		return fmt.Errorf("register owner: %s", res.Error)
	}
	tenantID := res.Tenant.ID

	member, err := users.Create(ctx, store.NewUser{Email: *memberEmail, Password: *password, FirstName: "Dev", LastName: "Member"})
	if err != nil {
		return fmt.Errorf("create member: %w", err)
	}
	if err := members.Create(ctx, &membershipdomain.Membership{
		ID:       uuid.New().String(),
		UserID:   member.ID,
		TenantID: tenantID,
		Role:     membershipdomain.RoleMember,
		JoinedAt: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("create membership: %w", err)
	}

	_, plaintext, err := keys.Create(ctx, tenantID, "seed ingestion", nil)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	log.Info("seed applied",
		zap.String("tenant_id", tenantID),
		zap.String("tenant_slug", res.Tenant.Slug),
		zap.String("owner", *ownerEmail),
		zap.String("member", *memberEmail))
	// The plaintext key is shown once, on stdout, never in the log stream.
	fmt.Printf("API key for tenant %s: %s\n", res.Tenant.Slug, plaintext)
	return nil
}
