package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/library-backend/api/responses"
	"github.com/angelmondragon/library-backend/api/validators"
	"github.com/angelmondragon/library-backend/internal/access"
	"github.com/angelmondragon/library-backend/internal/books"
	"github.com/angelmondragon/library-backend/pkg/enums"
	"github.com/angelmondragon/library-backend/pkg/logger"
)

type catalogService interface {
	List(ctx context.Context, filter books.Filter) ([]books.BookDTO, error)
	Categories(ctx context.Context) ([]books.CategoryCount, error)
	Get(ctx context.Context, id uuid.UUID) (*books.BookDTO, error)
	Create(ctx context.Context, caller access.Identity, input books.CreateBookInput) (*books.BookDTO, error)
	Update(ctx context.Context, caller access.Identity, id uuid.UUID, patch books.Patch) (*books.BookDTO, error)
	Delete(ctx context.Context, caller access.Identity, id uuid.UUID) error
}

type createBookRequest struct {
	Title       string `json:"title" validate:"max=256"`
	Author      string `json:"author" validate:"max=256"`
	Category    string `json:"category"`
	Copies      *int   `json:"copies,omitempty"`
	Description string `json:"description" validate:"max=4000"`
	StackNumber string `json:"stackNumber" validate:"max=64"`
	ShelfNumber string `json:"shelfNumber" validate:"max=64"`
}

func (req createBookRequest) toInput() books.CreateBookInput {
	return books.CreateBookInput{
		Title:       req.Title,
		Author:      req.Author,
		Category:    enums.BookCategory(strings.TrimSpace(req.Category)),
		Copies:      req.Copies,
		Description: req.Description,
		StackNumber: req.StackNumber,
		ShelfNumber: req.ShelfNumber,
	}
}

type updateBookRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,max=256"`
	Author      *string `json:"author,omitempty" validate:"omitempty,max=256"`
	Category    *string `json:"category,omitempty"`
	Copies      *int    `json:"copies,omitempty"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=4000"`
	StackNumber *string `json:"stackNumber,omitempty" validate:"omitempty,max=64"`
	ShelfNumber *string `json:"shelfNumber,omitempty" validate:"omitempty,max=64"`
}

func (req updateBookRequest) toPatch() books.Patch {
	patch := books.Patch{
		Title:       req.Title,
		Author:      req.Author,
		Copies:      req.Copies,
		Description: req.Description,
		StackNumber: req.StackNumber,
		ShelfNumber: req.ShelfNumber,
	}
	if req.Category != nil {
		category := enums.BookCategory(strings.TrimSpace(*req.Category))
		patch.Category = &category
	}
	return patch
}

// BooksList returns the catalog, optionally narrowed by ?category=.
func BooksList(svc catalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter books.Filter
		if raw := validators.QueryString(r, "category"); raw != "" {
			category := enums.BookCategory(raw)
			filter.Category = &category
		}

		list, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func BooksCategories(svc catalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := svc.Categories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, counts)
	}
}

func BooksGet(svc catalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		book, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, book)
	}
}

func BooksCreate(svc catalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createBookRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		book, err := svc.Create(r.Context(), callerFrom(r), body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, book)
	}
}

// BooksUpdate applies a partial update; absent fields are left unchanged.
func BooksUpdate(svc catalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateBookRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		book, err := svc.Update(r.Context(), callerFrom(r), id, body.toPatch())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, book)
	}
}

func BooksDelete(svc catalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), callerFrom(r), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"message": "Book deleted successfully"})
	}
}

// callerFrom returns the resolved identity, or the zero identity which every
// service rejects as unauthenticated.
func callerFrom(r *http.Request) access.Identity {
	id, _ := access.FromContext(r.Context())
	return id
}
