package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/library-backend/api/responses"
	"github.com/angelmondragon/library-backend/internal/users"
	"github.com/angelmondragon/library-backend/pkg/logger"
)

type userLister interface {
	List(ctx context.Context) ([]users.UserDTO, error)
}

// UsersList returns every account without credentials. Admin only; enforced
// by the router.
func UsersList(svc userLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
