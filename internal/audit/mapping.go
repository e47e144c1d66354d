package audit

import "strings"

// ActionAccessDenied is recorded when an authenticated caller is refused by a role or membership check.
const ActionAccessDenied = "access_denied"

// ActionResource holds action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

// ParseRoute returns action and resource for an HTTP method and echo route template
// (e.g. DELETE /v1/api-keys/:id).
// Action is a verb: get, list, create, update, delete, or the last path segment under /v1/auth.
// Resource is the first path segment after the version, singular, with hyphens as underscores
// (api-keys -> api_key).
func ParseRoute(method, route string) ActionResource {
	segs := splitRoute(route)
	if len(segs) == 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	if segs[0] == "auth" {
		if len(segs) < 2 {
			return ActionResource{Action: "unknown", Resource: "auth"}
		}
		return ActionResource{Action: segs[len(segs)-1], Resource: "auth"}
	}
	resource := routeToResource(segs[0])
	byID := strings.HasPrefix(segs[len(segs)-1], ":")
	return ActionResource{Action: methodToAction(method, byID), Resource: resource}
}

func splitRoute(route string) []string {
	var segs []string
	for _, s := range strings.Split(route, "/") {
		if s == "" {
			continue
		}
		segs = append(segs, s)
	}
	// Drop a leading version segment like v1.
	if len(segs) > 0 && len(segs[0]) > 1 && segs[0][0] == 'v' && isDigits(segs[0][1:]) {
		segs = segs[1:]
	}
	return segs
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func routeToResource(seg string) string {
	// api-keys -> api_key, events -> event
	s := strings.ReplaceAll(seg, "-", "_")
	if len(s) > 1 && strings.HasSuffix(s, "s") {
		s = strings.TrimSuffix(s, "s")
	}
	return s
}

func methodToAction(method string, byID bool) string {
	switch strings.ToUpper(method) {
	case "GET", "HEAD":
		if byID {
			return "get"
		}
		return "list"
	case "POST":
		return "create"
	case "PUT", "PATCH":
		return "update"
	case "DELETE":
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
