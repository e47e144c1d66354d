package tenancy

import (
	membershipdomain "tenant-rollups/backend/internal/membership/domain"
)

// ActorKind tags which variant an Actor holds.
type ActorKind uint8

const (
	// ActorNone is the zero value; an Actor of this kind is never attached to a Scope.
	ActorNone ActorKind = iota
	// ActorUser is an interactive user authenticated with a bearer token.
	ActorUser
	// ActorService is a service account authenticated with an API key.
	ActorService
)

func (k ActorKind) String() string {
	switch k {
	case ActorUser:
		return "user"
	case ActorService:
		return "service"
	case ActorNone:
		return "none"
	}
	return "none"
}

// Actor is who is acting inside a Scope. Construct with UserActor or ServiceActor.
type Actor struct {
	kind   ActorKind
	userID string
	role   membershipdomain.Role
	keyID  string
}

// UserActor returns an interactive-user actor.
func UserActor(userID string, role membershipdomain.Role) Actor {
	return Actor{kind: ActorUser, userID: userID, role: role}
}

// ServiceActor returns the service-account actor for the API key keyID.
func ServiceActor(keyID string) Actor {
	return Actor{kind: ActorService, keyID: keyID}
}

// Kind returns the variant tag.
func (a Actor) Kind() ActorKind { return a.kind }

// User returns the user id and role, and false for any non-user actor.
func (a Actor) User() (userID string, role membershipdomain.Role, ok bool) {
	if a.kind != ActorUser {
		return "", membershipdomain.RoleUnknown, false
	}
	return a.userID, a.role, true
}

// Service returns the API key id, and false for any non-service actor.
func (a Actor) Service() (keyID string, ok bool) {
	if a.kind != ActorService {
		return "", false
	}
	return a.keyID, true
}

// ID returns a stable identifier for audit and event attribution: the user id for users,
// "apikey:<id>" for service accounts. The two namespaces cannot collide.
func (a Actor) ID() string {
	switch a.kind {
	case ActorUser:
		return a.userID
	case ActorService:
		return "apikey:" + a.keyID
	case ActorNone:
		return ""
	}
	return ""
}
