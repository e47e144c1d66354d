// admin applies operator changes to tenants: deactivate, reactivate and set-role. Reactivation
// lives here because a deactivated tenant refuses every scoped API request.
//
//	go run ./cmd/admin deactivate --tenant acme
//	go run ./cmd/admin reactivate --tenant acme
//	go run ./cmd/admin set-role --tenant acme --email dev@example.com --role admin
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"tenant-rollups/backend/internal/audit"
	auditrepo "tenant-rollups/backend/internal/audit/repository"
	"tenant-rollups/backend/internal/config"
	"tenant-rollups/backend/internal/db"
	"tenant-rollups/backend/internal/identity/store"
	membershipdomain "tenant-rollups/backend/internal/membership/domain"
	membershiprepo "tenant-rollups/backend/internal/membership/repository"
	"tenant-rollups/backend/internal/platform/logger"
	tenantdomain "tenant-rollups/backend/internal/tenant/domain"
	tenantrepo "tenant-rollups/backend/internal/tenant/repository"
	tenantservice "tenant-rollups/backend/internal/tenant/service"
	userdomain "tenant-rollups/backend/internal/user/domain"
	userrepo "tenant-rollups/backend/internal/user/repository"
)

const usage = "usage: admin deactivate|reactivate|set-role --tenant <id or slug> [--email <user email> --role owner|admin|member]"

// TenantAdmin is the subset of the tenant admin service the commands use.
type TenantAdmin interface {
	SetActive(ctx context.Context, tenantID string, active bool) error
	AssignRole(ctx context.Context, tenantID, userID string, role membershipdomain.Role) (*membershipdomain.Membership, error)
}

// Lookup resolves command-line identifiers.
type Lookup interface {
	TenantByIDOrSlug(ctx context.Context, ref string) (*tenantdomain.Tenant, error)
	UserByEmail(ctx context.Context, email string) (*userdomain.User, error)
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "admin:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		fmt.Println(usage)
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel, "admin")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := logger.WithLogger(context.Background(), log)
	pool, err := db.Open(ctx, db.PoolConfig{DSN: cfg.DatabaseURL, MaxConns: 2, MinConns: 1})
	if err != nil {
		return err
	}
	defer pool.Close()

	tenants := tenantrepo.NewPostgresRepository(pool)
	admin := tenantservice.NewAdmin(tenants, membershiprepo.NewPostgresRepository(pool)).
		WithAudit(audit.NewLogger(auditrepo.NewPostgresRepository(pool), nil))
	lookup := pgLookup{tenants: tenants, users: userrepo.NewPostgresRepository(pool)}
	return execute(ctx, admin, lookup, args, os.Stdout)
}

func execute(ctx context.Context, admin TenantAdmin, lookup Lookup, args []string, out io.Writer) error {
	cmd := args[0]
	switch cmd {
	case "deactivate", "reactivate", "set-role":
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	flags := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	tenantRef := flags.String("tenant", "", "tenant id or slug")
	email := flags.String("email", "", "user email (set-role)")
	roleName := flags.String("role", "", "owner, admin or member (set-role)")
	if err := flags.Parse(args[1:]); err != nil {
		return fmt.Errorf("%w\n%s", err, usage)
	}
	if *tenantRef == "" {
		return errors.New("--tenant is required")
	}
	t, err := lookup.TenantByIDOrSlug(ctx, *tenantRef)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("tenant %q: %w", *tenantRef, tenantservice.ErrTenantNotFound)
	}
	log := logger.FromContext(ctx).With(zap.String("tenant_id", t.ID), zap.String("command", cmd))

	switch cmd {
	case "deactivate", "reactivate":
		if err := admin.SetActive(ctx, t.ID, cmd == "reactivate"); err != nil {
			return err
		}
		log.Info("tenant status changed")
		fmt.Fprintf(out, "tenant %s %sd\n", t.Slug, cmd)
		return nil
	case "set-role":
		role, err := membershipdomain.ParseRole(*roleName)
		if err != nil {
			return fmt.Errorf("--role %q: %w", *roleName, err)
		}
		u, err := lookup.UserByEmail(ctx, store.NormalizeEmail(*email))
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("user %q not found", *email)
		}
		if _, err := admin.AssignRole(ctx, t.ID, u.ID, role); err != nil {
			return err
		}
		log.Info("member role changed", zap.String("user_id", u.ID), zap.String("role", role.String()))
		fmt.Fprintf(out, "%s is now %s in %s\n", u.Email, role, t.Slug)
		return nil
	}
	return fmt.Errorf("unknown command %q\n%s", cmd, usage)
}

type pgLookup struct {
	tenants *tenantrepo.PostgresRepository
	users   *userrepo.PostgresRepository
}

func (l pgLookup) TenantByIDOrSlug(ctx context.Context, ref string) (*tenantdomain.Tenant, error) {
	t, err := l.tenants.GetByID(ctx, ref)
	if err != nil || t != nil {
		return t, err
	}
	return l.tenants.GetBySlug(ctx, ref)
}

func (l pgLookup) UserByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	return l.users.GetByEmail(ctx, email)
}
