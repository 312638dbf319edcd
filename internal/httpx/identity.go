package httpx

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"

	RoleSeller = "SELLER"
)

// Identity is asserted by the gateway in front of this service.
type Identity struct {
	UserID string
	Role   string
}

func (i Identity) IsSeller() bool { return strings.EqualFold(i.Role, RoleSeller) }

type identityKey struct{}

func IdentityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

// RequireUser rejects requests without a user id.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			UserID: strings.TrimSpace(r.Header.Get(HeaderUserID)),
			Role:   strings.TrimSpace(r.Header.Get(HeaderUserRole)),
		}
		if id.UserID == "" {
			writeError(w, r, nil, fmt.Errorf("%w: missing %s header", errUnauthorized, HeaderUserID))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

// RequireSeller must run after RequireUser.
func RequireSeller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IdentityFrom(r.Context()).IsSeller() {
			writeError(w, r, nil, fmt.Errorf("%w: seller role required", errUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}
