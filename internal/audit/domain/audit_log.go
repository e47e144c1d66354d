package domain

import "time"

// AuditLog represents an audit event. Metadata never carries secrets.
type AuditLog struct {
	ID        string
	TenantID  string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
