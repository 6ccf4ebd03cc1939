package audit

import "strings"

// ActionResource holds action and resource derived from a request route.
type ActionResource struct {
	Action   string
	Resource string
}

var routeActions = map[string]ActionResource{
	"POST /auth/signin":  {Action: "login", Resource: "session"},
	"POST /auth/refresh": {Action: "refresh", Resource: "session"},
	"POST /auth/signout": {Action: "logout", Resource: "session"},
	"GET /auth/me":       {Action: "get", Resource: "identity"},
	"GET /admin/audit":   {Action: "list", Resource: "audit"},
}

// ParseRoute returns action and resource for a request (e.g. POST /auth/signin -> login/session).
// Unmapped routes use the lowercase method as the action and the first path segment as the resource.
func ParseRoute(method, path string) ActionResource {
	path = "/" + strings.Trim(path, "/")
	if ar, ok := routeActions[strings.ToUpper(method)+" "+path]; ok {
		return ar
	}
	action := methodToAction(method)
	segment, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if segment == "" {
		return ActionResource{Action: action, Resource: "unknown"}
	}
	return ActionResource{Action: action, Resource: strings.ToLower(segment)}
}

func methodToAction(method string) string {
	switch strings.ToUpper(method) {
	case "GET", "HEAD":
		return "get"
	case "POST":
		return "create"
	case "PUT", "PATCH":
		return "update"
	case "DELETE":
		return "delete"
	case "":
		return "unknown"
	default:
		return strings.ToLower(method)
	}
}
