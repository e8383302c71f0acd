package auth

import (
	"net/http"
	"slices"
)

type Permission string

const (
	PermTranscribe  Permission = "transcription:control"
	PermGenerate    Permission = "codegen:generate"
	PermHistoryRead Permission = "history:read"
	PermWildcard    Permission = "*"
)

// rolePermissions is the fixed role table. Unknown roles have no permissions.
var rolePermissions = map[string][]Permission{
	"admin":    {PermWildcard},
	"designer": {PermTranscribe, PermGenerate, PermHistoryRead},
	"viewer":   {PermHistoryRead},
}

func HasPermission(role string, perm Permission) bool {
	perms := rolePermissions[role]
	return slices.Contains(perms, PermWildcard) || slices.Contains(perms, perm)
}

// RequirePermission rejects requests whose claims lack perm. Requests without
// claims pass through so the check is a no-op when authentication is off.
func RequirePermission(perm Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims != nil && !HasPermission(claims.Role, perm) {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
