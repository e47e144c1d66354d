package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"tenant-rollups/backend/internal/audit"
	"tenant-rollups/backend/internal/identity/store"
	membershipdomain "tenant-rollups/backend/internal/membership/domain"
	"tenant-rollups/backend/internal/platform/logger"
	"tenant-rollups/backend/internal/platform/metrics"
	refreshdomain "tenant-rollups/backend/internal/refreshtoken/domain"
	"tenant-rollups/backend/internal/security"
	tenantdomain "tenant-rollups/backend/internal/tenant/domain"
	userdomain "tenant-rollups/backend/internal/user/domain"
)

// ErrUnauthorized is returned by Refresh for every unusable refresh token. The cause is not exposed.
var ErrUnauthorized = errors.New("unauthorized")

// Failure reasons returned in AuthResult.Error.
const (
	ReasonEmailTaken          = "email already registered"
	ReasonInvalidCredentials  = "invalid email or password"
	ReasonNoMemberships       = "user has no tenant memberships"
	ReasonNotAuthorized       = "not authorized for tenant"
	ReasonTenantInactive      = "tenant is deactivated"
	ReasonTenantNameRequired  = "tenant name is required"
	ReasonInvalidEmail        = "invalid email format"
	ReasonPasswordTooShort    = "password must be at least 8 characters"
	ReasonPasswordComposition = "password must contain a letter and a digit"
)

const (
	minPasswordLength = 8
	slugAttempts      = 5
	tracerName        = "tenant-rollups/backend/internal/identity/service"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// UserSummary is the user part of an AuthResult.
type UserSummary struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// TenantSummary is the tenant part of an AuthResult, with the caller's role in it.
type TenantSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Role string `json:"role"`
}

// AuthResult is the outcome of every auth flow. Business failures set Success false and Error;
// the returned error is then nil.
type AuthResult struct {
	Success      bool
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         *UserSummary
	Tenant       *TenantSummary
	Error        string
}

func failure(reason string) *AuthResult {
	return &AuthResult{Error: reason}
}

// RegisterInput is the input to Register.
type RegisterInput struct {
	Email      string
	Password   string
	FirstName  string
	LastName   string
	TenantName string
	IP         string
}

// LoginInput is the input to Login. TenantID is optional.
type LoginInput struct {
	Email    string
	Password string
	TenantID string
	IP       string
}

// IdentityStore is the identity-record collaborator.
type IdentityStore interface {
	Create(ctx context.Context, in store.NewUser) (*userdomain.User, error)
	VerifyPassword(ctx context.Context, email, password string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// TenantRepo is the minimal tenant repository needed by the auth service.
type TenantRepo interface {
	GetByID(ctx context.Context, id string) (*tenantdomain.Tenant, error)
	Create(ctx context.Context, t *tenantdomain.Tenant) error
}

// MembershipRepo is the minimal membership repository needed by the auth service.
type MembershipRepo interface {
	GetByUserAndTenant(ctx context.Context, userID, tenantID string) (*membershipdomain.Membership, error)
	ListByUser(ctx context.Context, userID string) ([]*membershipdomain.Membership, error)
	Create(ctx context.Context, m *membershipdomain.Membership) error
}

// RefreshTokenRepo is the minimal refresh token repository needed by the auth service.
type RefreshTokenRepo interface {
	Create(ctx context.Context, t *refreshdomain.RefreshToken) error
	GetByHash(ctx context.Context, tokenHash string) (*refreshdomain.RefreshToken, error)
	Rotate(ctx context.Context, parentID, revokedByIP string, at time.Time, next *refreshdomain.RefreshToken) error
	Revoke(ctx context.Context, id, revokedByIP string, at time.Time) error
}

// AuthService implements password register, login, refresh rotation and logout.
type AuthService struct {
	identities  IdentityStore
	tenants     TenantRepo
	memberships MembershipRepo
	refresh     RefreshTokenRepo
	tokens      *security.TokenProvider
	refreshTTL  time.Duration
	tx          Transactor

	audit   audit.AuditLogger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(
	identities IdentityStore,
	tenants TenantRepo,
	memberships MembershipRepo,
	refresh RefreshTokenRepo,
	tokens *security.TokenProvider,
	refreshTTL time.Duration,
) *AuthService {
	return &AuthService{
		identities:  identities,
		tenants:     tenants,
		memberships: memberships,
		refresh:     refresh,
		tokens:      tokens,
		refreshTTL:  refreshTTL,
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
	}
}

// WithAudit records every flow outcome through l.
func (s *AuthService) WithAudit(l audit.AuditLogger) *AuthService {
	s.audit = l
	return s
}

// WithMetrics counts login outcomes and refresh rotations on m.
func (s *AuthService) WithMetrics(m *metrics.Metrics) *AuthService {
	s.metrics = m
	return s
}

// WithTracer replaces the global tracer.
func (s *AuthService) WithTracer(t trace.Tracer) *AuthService {
	s.tracer = t
	return s
}

// Register creates a user, a new tenant named in.TenantName with the user as Owner, and
// returns a token pair for that tenant.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (_ *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.Register")
	defer func() { endSpan(span, err) }()

	email := store.NormalizeEmail(in.Email)
	if reason := validateEmail(email); reason != "" {
		return failure(reason), nil
	}
	if reason := validatePassword(in.Password); reason != "" {
		return failure(reason), nil
	}
	tenantName := strings.TrimSpace(in.TenantName)
	if tenantName == "" {
		return failure(ReasonTenantNameRequired), nil
	}
	existing, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return failure(ReasonEmailTaken), nil
	}
	var (
		u   *userdomain.User
		t   *tenantdomain.Tenant
		res *AuthResult
	)
	err = s.inTx(ctx, func(st Stores) error {
		var err error
		u, err = st.Identities.Create(ctx, store.NewUser{
			Email:     email,
			Password:  in.Password,
			FirstName: in.FirstName,
			LastName:  in.LastName,
		})
		if err != nil {
			return err
		}
		if t, err = s.createTenant(ctx, st.Tenants, tenantName); err != nil {
			return err
		}
		m := &membershipdomain.Membership{
			ID:       uuid.New().String(),
			UserID:   u.ID,
			TenantID: t.ID,
			Role:     membershipdomain.RoleOwner,
			JoinedAt: s.now().UTC(),
		}
		if err := st.Memberships.Create(ctx, m); err != nil {
			return err
		}
		res, err = s.issuePair(ctx, st.Refresh, u, t, m.Role, in.IP)
		return err
	})
	if errors.Is(err, userdomain.ErrEmailTaken) {
		return failure(ReasonEmailTaken), nil
	}
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("tenant.id", t.ID), attribute.String("user.id", u.ID))
	s.logAudit(ctx, t.ID, u.ID, audit.ActionRegister, "user", "tenant_slug="+t.Slug)
	return res, nil
}

// createTenant inserts a tenant with a slug derived from name, appending a random suffix when
// the slug is already taken.
func (s *AuthService) createTenant(ctx context.Context, tenants TenantRepo, name string) (*tenantdomain.Tenant, error) {
	base := tenantdomain.Slugify(name)
	slug := base
	for attempt := 1; ; attempt++ {
		t := &tenantdomain.Tenant{
			ID:        uuid.New().String(),
			Name:      name,
			Slug:      slug,
			Active:    true,
			CreatedAt: s.now().UTC(),
		}
		err := tenants.Create(ctx, t)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, tenantdomain.ErrSlugTaken) || attempt >= slugAttempts {
			return nil, err
		}
		slug = base + "-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:6]
	}
}

// Login verifies credentials and issues a token pair for the selected tenant: in.TenantID when
// given, else the user's oldest membership.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (_ *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer func() { endSpan(span, err) }()

	u, err := s.identities.VerifyPassword(ctx, in.Email, in.Password)
	if err != nil {
		s.metrics.RecordAuth("password", metrics.OutcomeError)
		return nil, err
	}
	if u == nil {
		return s.loginFailure(ctx, "", "", "invalid_credentials", ReasonInvalidCredentials), nil
	}
	ms, err := s.memberships.ListByUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if len(ms) == 0 {
		return s.loginFailure(ctx, "", u.ID, "no_memberships", ReasonNoMemberships), nil
	}
	m := ms[0]
	if want := strings.TrimSpace(in.TenantID); want != "" {
		m = nil
		for _, cand := range ms {
			if cand.TenantID == want {
				m = cand
				break
			}
		}
		if m == nil {
			return s.loginFailure(ctx, "", u.ID, "not_member", ReasonNotAuthorized), nil
		}
	}
	t, err := s.tenants.GetByID(ctx, m.TenantID)
	if err != nil {
		return nil, err
	}
	if t == nil || !t.Active {
		return s.loginFailure(ctx, m.TenantID, u.ID, "tenant_inactive", ReasonTenantInactive), nil
	}
	if err := s.identities.UpdateLastLogin(ctx, u.ID, s.now().UTC()); err != nil {
		return nil, err
	}
	res, err := s.issuePair(ctx, s.refresh, u, t, m.Role, in.IP)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("tenant.id", t.ID), attribute.String("user.id", u.ID))
	s.metrics.RecordAuth("password", metrics.OutcomeSuccess)
	s.logAudit(ctx, t.ID, u.ID, audit.ActionLoginSuccess, "auth", "")
	return res, nil
}

func (s *AuthService) loginFailure(ctx context.Context, tenantID, userID, code, reason string) *AuthResult {
	s.metrics.RecordAuth("password", metrics.OutcomeRejected)
	s.logAudit(ctx, tenantID, userID, audit.ActionLoginFailure, "auth", "reason="+code)
	return failure(reason)
}

// Refresh exchanges an active refresh token for a new pair and revokes it, linking it to its
// replacement. Every unusable token, including one that lost a concurrent rotation, yields
// ErrUnauthorized.
func (s *AuthService) Refresh(ctx context.Context, secret, ip string) (_ *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.Refresh")
	defer func() { endSpan(span, err) }()

	if secret == "" {
		return nil, s.refreshRejected(ctx, nil, "missing")
	}
	parent, err := s.refresh.GetByHash(ctx, security.HashToken(secret))
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if parent == nil || !security.TokenHashEqual(secret, parent.TokenHash) {
		return nil, s.refreshRejected(ctx, nil, "unknown")
	}
	if !parent.IsActive(now) {
		return nil, s.refreshRejected(ctx, parent, "inactive")
	}
	u, err := s.identities.GetByID(ctx, parent.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil || u.Status != userdomain.UserStatusActive {
		return nil, s.refreshRejected(ctx, parent, "user_inactive")
	}
	m, err := s.refreshMembership(ctx, parent)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, s.refreshRejected(ctx, parent, "no_membership")
	}
	t, err := s.tenants.GetByID(ctx, m.TenantID)
	if err != nil {
		return nil, err
	}
	if t == nil || !t.Active {
		return nil, s.refreshRejected(ctx, parent, "tenant_inactive")
	}

	access, _, accessExp, err := s.tokens.IssueAccess(subjectOf(u), t.ID, m.Role)
	if err != nil {
		return nil, err
	}
	nextSecret, err := security.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	next := &refreshdomain.RefreshToken{
		ID:          uuid.New().String(),
		UserID:      u.ID,
		TenantID:    t.ID,
		TokenHash:   security.HashToken(nextSecret),
		ExpiresAt:   now.Add(s.refreshTTL),
		CreatedByIP: ip,
		CreatedAt:   now,
	}
	if err := s.refresh.Rotate(ctx, parent.ID, ip, now, next); err != nil {
		if errors.Is(err, refreshdomain.ErrTokenNotActive) {
			s.metrics.RecordRotation(metrics.RotationConflict)
			return nil, s.refreshRejected(ctx, parent, "rotation_conflict")
		}
		return nil, err
	}
	s.metrics.RecordRotation(metrics.RotationRotated)
	span.SetAttributes(attribute.String("tenant.id", t.ID), attribute.String("user.id", u.ID))
	s.logAudit(ctx, t.ID, u.ID, audit.ActionTokenRefresh, "refresh_token", "token_id="+parent.ID)
	return &AuthResult{
		Success:      true,
		AccessToken:  access,
		RefreshToken: nextSecret,
		ExpiresAt:    accessExp,
		User:         userSummary(u),
		Tenant:       tenantSummary(t, m.Role),
	}, nil
}

// refreshMembership returns the membership for the tenant the token was issued for, falling back
// to the user's oldest membership for tokens without one or whose membership is gone.
func (s *AuthService) refreshMembership(ctx context.Context, rt *refreshdomain.RefreshToken) (*membershipdomain.Membership, error) {
	if rt.TenantID != "" {
		m, err := s.memberships.GetByUserAndTenant(ctx, rt.UserID, rt.TenantID)
		if err != nil || m != nil {
			return m, err
		}
	}
	ms, err := s.memberships.ListByUser(ctx, rt.UserID)
	if err != nil || len(ms) == 0 {
		return nil, err
	}
	return ms[0], nil
}

func (s *AuthService) refreshRejected(ctx context.Context, rt *refreshdomain.RefreshToken, code string) error {
	if code != "rotation_conflict" {
		s.metrics.RecordRotation(metrics.RotationRejected)
	}
	tenantID, userID := "", ""
	if rt != nil {
		tenantID, userID = rt.TenantID, rt.UserID
	}
	logger.FromContext(ctx).Debug("refresh rejected", zap.String("reason", code))
	s.logAudit(ctx, tenantID, userID, audit.ActionRefreshRejected, "refresh_token", "reason="+code)
	return ErrUnauthorized
}

// Logout revokes an active refresh token without a replacement. Unknown, expired or already
// revoked tokens succeed without effect.
func (s *AuthService) Logout(ctx context.Context, secret, ip string) (_ *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.Logout")
	defer func() { endSpan(span, err) }()

	ok := &AuthResult{Success: true}
	if secret == "" {
		return ok, nil
	}
	rt, err := s.refresh.GetByHash(ctx, security.HashToken(secret))
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if rt == nil || !security.TokenHashEqual(secret, rt.TokenHash) || !rt.IsActive(now) {
		return ok, nil
	}
	if err := s.refresh.Revoke(ctx, rt.ID, ip, now); err != nil {
		if errors.Is(err, refreshdomain.ErrTokenNotActive) {
			return ok, nil
		}
		return nil, err
	}
	s.logAudit(ctx, rt.TenantID, rt.UserID, audit.ActionLogout, "refresh_token", "token_id="+rt.ID)
	return ok, nil
}

// issuePair issues an access token and persists a new refresh token for u in t.
func (s *AuthService) issuePair(ctx context.Context, refresh RefreshTokenRepo, u *userdomain.User, t *tenantdomain.Tenant, role membershipdomain.Role, ip string) (*AuthResult, error) {
	access, _, accessExp, err := s.tokens.IssueAccess(subjectOf(u), t.ID, role)
	if err != nil {
		return nil, err
	}
	secret, err := security.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	rt := &refreshdomain.RefreshToken{
		ID:          uuid.New().String(),
		UserID:      u.ID,
		TenantID:    t.ID,
		TokenHash:   security.HashToken(secret),
		ExpiresAt:   now.Add(s.refreshTTL),
		CreatedByIP: ip,
		CreatedAt:   now,
	}
	if err := refresh.Create(ctx, rt); err != nil {
		return nil, err
	}
	return &AuthResult{
		Success:      true,
		AccessToken:  access,
		RefreshToken: secret,
		ExpiresAt:    accessExp,
		User:         userSummary(u),
		Tenant:       tenantSummary(t, role),
	}, nil
}

func (s *AuthService) logAudit(ctx context.Context, tenantID, userID, action, resource, metadata string) {
	if s.audit == nil {
		return
	}
	s.audit.LogEvent(ctx, tenantID, userID, action, resource, metadata)
}

func subjectOf(u *userdomain.User) security.Subject {
	return security.Subject{UserID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}

func userSummary(u *userdomain.User) *UserSummary {
	return &UserSummary{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}

func tenantSummary(t *tenantdomain.Tenant, role membershipdomain.Role) *TenantSummary {
	return &TenantSummary{ID: t.ID, Name: t.Name, Slug: t.Slug, Role: role.String()}
}

func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, ErrUnauthorized) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "auth flow failed")
	}
	span.End()
}

func validateEmail(email string) string {
	if email == "" || !emailPattern.MatchString(email) {
		return ReasonInvalidEmail
	}
	return ""
}

func validatePassword(password string) string {
	if len(password) < minPasswordLength {
		return ReasonPasswordTooShort
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			hasLetter = true
		}
	}
	if !hasLetter || !hasDigit {
		return ReasonPasswordComposition
	}
	return ""
}
