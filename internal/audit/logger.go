package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tenant-rollups/backend/internal/audit/domain"
	auditrepo "tenant-rollups/backend/internal/audit/repository"
	"tenant-rollups/backend/internal/platform/logger"
	"tenant-rollups/backend/internal/telemetry"
)

// SentinelTenantID is the tenant_id used for audit events that have no tenant (e.g. login_failure for unknown users).
const SentinelTenantID = "_system"

// Actions recorded by the auth, key management and tenant administration flows.
const (
	ActionRegister          = "register"
	ActionLoginSuccess      = "login_success"
	ActionLoginFailure      = "login_failure"
	ActionTokenRefresh      = "token_refresh"
	ActionRefreshRejected   = "refresh_rejected"
	ActionLogout            = "logout"
	ActionAPIKeyCreated     = "api_key_created"
	ActionAPIKeyRevoked     = "api_key_revoked"
	ActionTenantDeactivated = "tenant_deactivated"
	ActionTenantReactivated = "tenant_reactivated"
	ActionRoleUpdated       = "member_role_updated"
)

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, tenantID, userID, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository, mirroring each entry to an optional
// telemetry sink in the background.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	mirror      telemetry.EventEmitter
	bg          *telemetry.Background
	now         func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor, now: time.Now}
}

// WithMirror sends every persisted entry to emitter on bg as well.
func (l *Logger) WithMirror(emitter telemetry.EventEmitter, bg *telemetry.Background) *Logger {
	l.mirror = emitter
	l.bg = bg
	return l
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, tenantID, userID, action, resource, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	if tenantID == "" {
		tenantID = SentinelTenantID
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: l.now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		logger.FromContext(ctx).Warn("audit: failed to log event",
			zap.String("action", action), zap.String("resource", resource), zap.Error(err))
	}
	if l.mirror != nil {
		l.bg.EmitAsync(l.mirror, telemetry.Record{
			TenantID: entry.TenantID,
			UserID:   entry.UserID,
			Action:   entry.Action,
			Resource: entry.Resource,
			IP:       entry.IP,
			Metadata: entry.Metadata,
			Time:     entry.CreatedAt,
		})
	}
}
