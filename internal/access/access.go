// Package access holds the resolved caller identity and the role predicates
// every protected operation checks before touching storage.
package access

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/library-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/library-backend/pkg/errors"
)

// Identity is the authenticated caller, loaded fresh for each request.
type Identity struct {
	UserID   uuid.UUID  `json:"id"`
	Username string     `json:"username"`
	Role     enums.Role `json:"role"`
}

// Authenticated reports whether the identity carries a user.
func (i Identity) Authenticated() bool {
	return i.UserID != uuid.Nil && i.Role.IsValid()
}

func (i Identity) IsAdmin() bool {
	return i.Role == enums.RoleAdmin
}

func (i Identity) IsStudent() bool {
	return i.Role == enums.RoleStudent
}

// RequireRole passes when the identity holds one of roles.
func RequireRole(id Identity, roles ...enums.Role) error {
	if !id.Authenticated() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "Access token required")
	}
	for _, role := range roles {
		if id.Role == role {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, deniedMessage(roles))
}

// CanActOnBorrow lets admins act on any borrow and students only on their own.
func CanActOnBorrow(id Identity, ownerID uuid.UUID) error {
	if err := RequireRole(id, enums.RoleAdmin, enums.RoleStudent); err != nil {
		return err
	}
	if id.IsAdmin() || id.UserID == ownerID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "You can only return your own books")
}

func deniedMessage(roles []enums.Role) string {
	if len(roles) == 1 {
		switch roles[0] {
		case enums.RoleAdmin:
			return "Admin access required"
		case enums.RoleStudent:
			return "Student access required"
		}
	}
	return "Access denied"
}

type ctxKey struct{}

// WithIdentity stores the resolved identity on the request context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity set by the auth middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
