package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/library-backend/api/responses"
	"github.com/angelmondragon/library-backend/internal/access"
	"github.com/angelmondragon/library-backend/pkg/logger"
)

type statsService interface {
	For(ctx context.Context, caller access.Identity) (any, error)
}

// Stats returns the admin or student projection depending on the caller role.
func Stats(svc statsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.For(r.Context(), callerFrom(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}
