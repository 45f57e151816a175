package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/library-backend/api/responses"
	"github.com/angelmondragon/library-backend/api/validators"
	"github.com/angelmondragon/library-backend/internal/access"
	"github.com/angelmondragon/library-backend/internal/borrows"
	"github.com/angelmondragon/library-backend/internal/lending"
	"github.com/angelmondragon/library-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/library-backend/pkg/errors"
	"github.com/angelmondragon/library-backend/pkg/logger"
)

type lendingService interface {
	Borrow(ctx context.Context, caller access.Identity, bookID uuid.UUID) (*lending.BorrowView, error)
	ToggleReturn(ctx context.Context, caller access.Identity, borrowID uuid.UUID) (*lending.BorrowView, error)
	Approve(ctx context.Context, caller access.Identity, borrowID uuid.UUID) (*lending.BorrowView, error)
	MyBorrows(ctx context.Context, caller access.Identity) ([]lending.BorrowView, error)
	ListAll(ctx context.Context, caller access.Identity, filter borrows.Filter) ([]lending.BorrowView, error)
}

type borrowRequest struct {
	BookID string `json:"bookId"`
}

// BorrowsCreate opens an active borrow for the calling student.
func BorrowsCreate(svc lendingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body borrowRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		raw := strings.TrimSpace(body.BookID)
		if raw == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Book ID is required"))
			return
		}
		bookID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid bookId").WithDetails(map[string]any{"field": "bookId"}))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithBookID(ctx, bookID.String())
		}
		view, err := svc.Borrow(ctx, callerFrom(r), bookID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

func BorrowsMine(svc lendingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := svc.MyBorrows(r.Context(), callerFrom(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

// BorrowsList returns every borrow, filtered by ?status=, ?studentId= and ?bookId=.
func BorrowsList(svc lendingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := borrowFilterFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views, err := svc.ListAll(r.Context(), callerFrom(r), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

type borrowTransitionFunc func(lendingService, context.Context, access.Identity, uuid.UUID) (*lending.BorrowView, error)

func BorrowsToggleReturn(svc lendingService, logg *logger.Logger) http.HandlerFunc {
	return borrowTransition(svc, logg, lendingService.ToggleReturn)
}

func BorrowsApprove(svc lendingService, logg *logger.Logger) http.HandlerFunc {
	return borrowTransition(svc, logg, lendingService.Approve)
}

// borrowTransition resolves the service method per request so routes can be
// registered before the lending service is wired.
func borrowTransition(svc lendingService, logg *logger.Logger, apply borrowTransitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithBorrowID(ctx, id.String())
		}
		view, err := apply(svc, ctx, callerFrom(r), id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func borrowFilterFrom(r *http.Request) (borrows.Filter, error) {
	var filter borrows.Filter
	if raw := validators.QueryString(r, "status"); raw != "" {
		status, err := enums.ParseBorrowStatus(raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "invalid status").WithDetails(map[string]any{"field": "status"})
		}
		filter.Status = &status
	}
	studentID, err := validators.ParseQueryUUID(r, "studentId")
	if err != nil {
		return filter, err
	}
	bookID, err := validators.ParseQueryUUID(r, "bookId")
	if err != nil {
		return filter, err
	}
	filter.StudentID = studentID
	filter.BookID = bookID
	return filter, nil
}
