package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/library-backend/internal/access"
	"github.com/angelmondragon/library-backend/internal/auth"
	"github.com/angelmondragon/library-backend/internal/books"
	"github.com/angelmondragon/library-backend/internal/borrows"
	"github.com/angelmondragon/library-backend/internal/lending"
	"github.com/angelmondragon/library-backend/internal/users"
	"github.com/angelmondragon/library-backend/pkg/config"
	"github.com/angelmondragon/library-backend/pkg/db"
	"github.com/angelmondragon/library-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/library-backend/pkg/errors"
)

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v body=%s", err, rec.Body.String())
	}
	return env
}

func withCaller(r *http.Request, role enums.Role) *http.Request {
	id := access.Identity{UserID: uuid.New(), Username: string(role), Role: role}
	return r.WithContext(access.WithIdentity(r.Context(), id))
}

type stubAuthService struct {
	resp       *auth.Response
	err        error
	gotRefresh auth.RefreshRequest
	loggedOut  string
}

func (s *stubAuthService) Register(ctx context.Context, req auth.RegisterRequest) (*auth.Response, error) {
	return s.resp, s.err
}

func (s *stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.Response, error) {
	return s.resp, s.err
}

func (s *stubAuthService) Refresh(ctx context.Context, req auth.RefreshRequest) (*auth.Response, error) {
	s.gotRefresh = req
	return s.resp, s.err
}

func (s *stubAuthService) Logout(ctx context.Context, accessID string) error {
	s.loggedOut = accessID
	return s.err
}

func TestAuthRegisterReturnsCreated(t *testing.T) {
	svc := &stubAuthService{resp: &auth.Response{
		Token: "access-token",
		User:  &users.UserDTO{ID: uuid.New(), Username: "alice", Role: enums.RoleStudent},
	}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(`{"username":"alice","password":"secret1"}`))
	rec := httptest.NewRecorder()

	AuthRegister(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(tokenHeader); got != "access-token" {
		t.Fatalf("expected token header, got %q", got)
	}
	var env struct {
		Data auth.Response `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.User == nil || env.Data.User.Username != "alice" {
		t.Fatalf("unexpected user payload %+v", env.Data.User)
	}
}

func TestAuthLoginRejectsUnknownFields(t *testing.T) {
	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{"username":"a","password":"b","extra":1}`))
	rec := httptest.NewRecorder()

	AuthLogin(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if env := decodeError(t, rec); env.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("expected validation code got %s", env.Error.Code)
	}
}

func TestAuthLoginPropagatesServiceError(t *testing.T) {
	svc := &stubAuthService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "Invalid credentials")}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{"username":"a","password":"b"}`))
	rec := httptest.NewRecorder()

	AuthLogin(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if env := decodeError(t, rec); env.Error.Message != "Invalid credentials" {
		t.Fatalf("unexpected message %q", env.Error.Message)
	}
}

func TestAuthRefreshRequiresBearer(t *testing.T) {
	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", bytes.NewBufferString(`{"refreshToken":"r"}`))
	rec := httptest.NewRecorder()

	AuthRefresh(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAuthRefreshForwardsTokens(t *testing.T) {
	svc := &stubAuthService{resp: &auth.Response{Token: "new-access", RefreshToken: "new-refresh"}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", bytes.NewBufferString(`{"refreshToken":"old-refresh"}`))
	req.Header.Set("Authorization", "Bearer old-access")
	rec := httptest.NewRecorder()

	AuthRefresh(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", rec.Code, rec.Body.String())
	}
	if svc.gotRefresh.AccessToken != "old-access" || svc.gotRefresh.RefreshToken != "old-refresh" {
		t.Fatalf("unexpected refresh request %+v", svc.gotRefresh)
	}
	if got := rec.Header().Get(tokenHeader); got != "new-access" {
		t.Fatalf("expected rotated token header, got %q", got)
	}
}

type stubProfiles struct {
	user *users.UserDTO
}

func (s stubProfiles) Get(ctx context.Context, id uuid.UUID) (*users.UserDTO, error) {
	if s.user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "User not found")
	}
	return s.user, nil
}

func TestAuthMeRequiresIdentity(t *testing.T) {
	rec := httptest.NewRecorder()
	AuthMe(stubProfiles{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := withCaller(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), enums.RoleStudent)
	AuthMe(stubProfiles{user: &users.UserDTO{Username: "student"}}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

type stubCatalog struct {
	filter    books.Filter
	created   books.CreateBookInput
	patch     books.Patch
	deleteErr error
	caller    access.Identity
}

func (s *stubCatalog) List(ctx context.Context, filter books.Filter) ([]books.BookDTO, error) {
	s.filter = filter
	return []books.BookDTO{}, nil
}

func (s *stubCatalog) Categories(ctx context.Context) ([]books.CategoryCount, error) {
	return []books.CategoryCount{{Category: enums.BookCategoryNovel, Count: 2}}, nil
}

func (s *stubCatalog) Get(ctx context.Context, id uuid.UUID) (*books.BookDTO, error) {
	return &books.BookDTO{ID: id}, nil
}

func (s *stubCatalog) Create(ctx context.Context, caller access.Identity, input books.CreateBookInput) (*books.BookDTO, error) {
	s.caller = caller
	s.created = input
	return &books.BookDTO{ID: uuid.New(), Title: input.Title}, nil
}

func (s *stubCatalog) Update(ctx context.Context, caller access.Identity, id uuid.UUID, patch books.Patch) (*books.BookDTO, error) {
	s.patch = patch
	return &books.BookDTO{ID: id}, nil
}

func (s *stubCatalog) Delete(ctx context.Context, caller access.Identity, id uuid.UUID) error {
	return s.deleteErr
}

func bookRouter(svc *stubCatalog) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/books", BooksList(svc, nil))
	r.Get("/api/books/categories", BooksCategories(svc, nil))
	r.Get("/api/books/{id}", BooksGet(svc, nil))
	r.Post("/api/books", BooksCreate(svc, nil))
	r.Put("/api/books/{id}", BooksUpdate(svc, nil))
	r.Delete("/api/books/{id}", BooksDelete(svc, nil))
	return r
}

func TestBooksListPassesCategoryFilter(t *testing.T) {
	svc := &stubCatalog{}
	rec := httptest.NewRecorder()
	bookRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/books?category=Novel", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.filter.Category == nil || *svc.filter.Category != enums.BookCategoryNovel {
		t.Fatalf("expected Novel filter, got %+v", svc.filter.Category)
	}
}

func TestBooksGetRejectsBadID(t *testing.T) {
	rec := httptest.NewRecorder()
	bookRouter(&stubCatalog{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/books/not-a-uuid", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestBooksCreateForwardsCallerAndInput(t *testing.T) {
	svc := &stubCatalog{}
	body := `{"title":"Dune","author":"Frank Herbert","category":"Science","copies":3}`
	req := withCaller(httptest.NewRequest(http.MethodPost, "/api/books", bytes.NewBufferString(body)), enums.RoleAdmin)
	rec := httptest.NewRecorder()

	bookRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", rec.Code, rec.Body.String())
	}
	if svc.caller.Role != enums.RoleAdmin {
		t.Fatalf("expected admin caller, got %+v", svc.caller)
	}
	if svc.created.Title != "Dune" || svc.created.Copies == nil || *svc.created.Copies != 3 {
		t.Fatalf("unexpected create input %+v", svc.created)
	}
	if svc.created.Category != enums.BookCategoryScience {
		t.Fatalf("unexpected category %q", svc.created.Category)
	}
}

func TestBooksUpdateOnlySetsProvidedFields(t *testing.T) {
	svc := &stubCatalog{}
	req := withCaller(httptest.NewRequest(http.MethodPut, "/api/books/"+uuid.NewString(), bytes.NewBufferString(`{"copies":0}`)), enums.RoleAdmin)
	rec := httptest.NewRecorder()

	bookRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.patch.Copies == nil || *svc.patch.Copies != 0 {
		t.Fatalf("expected copies patch, got %+v", svc.patch)
	}
	if svc.patch.Title != nil || svc.patch.Category != nil {
		t.Fatalf("unexpected fields in patch %+v", svc.patch)
	}
}

func TestBooksDeleteConflict(t *testing.T) {
	svc := &stubCatalog{deleteErr: pkgerrors.New(pkgerrors.CodeConflict, "Cannot delete book that is currently borrowed")}
	req := withCaller(httptest.NewRequest(http.MethodDelete, "/api/books/"+uuid.NewString(), nil), enums.RoleAdmin)
	rec := httptest.NewRecorder()

	bookRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if env := decodeError(t, rec); env.Error.Code != string(pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict code got %s", env.Error.Code)
	}
}

type stubLending struct {
	bookID   uuid.UUID
	borrowID uuid.UUID
	filter   borrows.Filter
	err      error
}

func (s *stubLending) Borrow(ctx context.Context, caller access.Identity, bookID uuid.UUID) (*lending.BorrowView, error) {
	s.bookID = bookID
	if s.err != nil {
		return nil, s.err
	}
	return &lending.BorrowView{ID: uuid.New(), IsPending: true}, nil
}

func (s *stubLending) ToggleReturn(ctx context.Context, caller access.Identity, borrowID uuid.UUID) (*lending.BorrowView, error) {
	s.borrowID = borrowID
	return &lending.BorrowView{ID: borrowID}, s.err
}

func (s *stubLending) Approve(ctx context.Context, caller access.Identity, borrowID uuid.UUID) (*lending.BorrowView, error) {
	s.borrowID = borrowID
	if s.err != nil {
		return nil, s.err
	}
	return &lending.BorrowView{ID: borrowID, Status: enums.BorrowStatusReturned}, nil
}

func (s *stubLending) MyBorrows(ctx context.Context, caller access.Identity) ([]lending.BorrowView, error) {
	return []lending.BorrowView{}, nil
}

func (s *stubLending) ListAll(ctx context.Context, caller access.Identity, filter borrows.Filter) ([]lending.BorrowView, error) {
	s.filter = filter
	return []lending.BorrowView{}, nil
}

func borrowRouter(svc *stubLending) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/borrows", BorrowsCreate(svc, nil))
	r.Get("/api/borrows", BorrowsList(svc, nil))
	r.Get("/api/borrows/my-books", BorrowsMine(svc, nil))
	r.Put("/api/borrows/{id}/return", BorrowsToggleReturn(svc, nil))
	r.Put("/api/borrows/{id}/approve", BorrowsApprove(svc, nil))
	return r
}

func TestBorrowsCreateRequiresBookID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := withCaller(httptest.NewRequest(http.MethodPost, "/api/borrows", bytes.NewBufferString(`{}`)), enums.RoleStudent)
	borrowRouter(&stubLending{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if env := decodeError(t, rec); env.Error.Message != "Book ID is required" {
		t.Fatalf("unexpected message %q", env.Error.Message)
	}
}

func TestBorrowsCreateReturnsCreated(t *testing.T) {
	svc := &stubLending{}
	bookID := uuid.New()
	req := withCaller(httptest.NewRequest(http.MethodPost, "/api/borrows", bytes.NewBufferString(`{"bookId":"`+bookID.String()+`"}`)), enums.RoleStudent)
	rec := httptest.NewRecorder()

	borrowRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", rec.Code, rec.Body.String())
	}
	if svc.bookID != bookID {
		t.Fatalf("expected book id forwarded")
	}
}

func TestBorrowsCreateMapsLimitExceeded(t *testing.T) {
	svc := &stubLending{err: pkgerrors.New(pkgerrors.CodeLimitExceeded, "You can only borrow up to 5 books at a time")}
	req := withCaller(httptest.NewRequest(http.MethodPost, "/api/borrows", bytes.NewBufferString(`{"bookId":"`+uuid.NewString()+`"}`)), enums.RoleStudent)
	rec := httptest.NewRecorder()

	borrowRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if env := decodeError(t, rec); env.Error.Code != string(pkgerrors.CodeLimitExceeded) {
		t.Fatalf("unexpected code %s", env.Error.Code)
	}
}

func TestBorrowsListParsesFilters(t *testing.T) {
	svc := &stubLending{}
	studentID := uuid.New()
	req := withCaller(httptest.NewRequest(http.MethodGet, "/api/borrows?status=pending_return&studentId="+studentID.String(), nil), enums.RoleAdmin)
	rec := httptest.NewRecorder()

	borrowRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.filter.Status == nil || *svc.filter.Status != enums.BorrowStatusPendingReturn {
		t.Fatalf("expected status filter, got %+v", svc.filter.Status)
	}
	if svc.filter.StudentID == nil || *svc.filter.StudentID != studentID {
		t.Fatalf("expected student filter")
	}
	if svc.filter.BookID != nil {
		t.Fatalf("unexpected book filter")
	}
}

func TestBorrowsListRejectsUnknownStatus(t *testing.T) {
	req := withCaller(httptest.NewRequest(http.MethodGet, "/api/borrows?status=lost", nil), enums.RoleAdmin)
	rec := httptest.NewRecorder()
	borrowRouter(&stubLending{}).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestBorrowsTransitionsUsePathID(t *testing.T) {
	svc := &stubLending{}
	id := uuid.New()

	for _, path := range []string{"/api/borrows/" + id.String() + "/return", "/api/borrows/" + id.String() + "/approve"} {
		svc.borrowID = uuid.Nil
		req := withCaller(httptest.NewRequest(http.MethodPut, path, nil), enums.RoleAdmin)
		rec := httptest.NewRecorder()
		borrowRouter(svc).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, rec.Code)
		}
		if svc.borrowID != id {
			t.Fatalf("%s: expected borrow id forwarded", path)
		}
	}
}

func TestBorrowsApproveAlreadyReturned(t *testing.T) {
	svc := &stubLending{err: pkgerrors.New(pkgerrors.CodeAlreadyReturned, "Book already returned")}
	req := withCaller(httptest.NewRequest(http.MethodPut, "/api/borrows/"+uuid.NewString()+"/approve", nil), enums.RoleAdmin)
	rec := httptest.NewRecorder()
	borrowRouter(svc).ServeHTTP(rec, req)
	if env := decodeError(t, rec); env.Error.Code != string(pkgerrors.CodeAlreadyReturned) {
		t.Fatalf("unexpected code %s", env.Error.Code)
	}
}

type stubStats struct{}

func (stubStats) For(ctx context.Context, caller access.Identity) (any, error) {
	if err := access.RequireRole(caller, enums.RoleAdmin, enums.RoleStudent); err != nil {
		return nil, err
	}
	return map[string]int{"myBorrows": 1}, nil
}

func TestStatsRequiresIdentity(t *testing.T) {
	rec := httptest.NewRecorder()
	Stats(stubStats{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	Stats(stubStats{}, nil).ServeHTTP(rec, withCaller(httptest.NewRequest(http.MethodGet, "/api/stats", nil), enums.RoleStudent))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthReadyReportsFailingDependency(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	deps := map[string]db.Pinger{
		"database": stubPinger{},
		"redis":    stubPinger{err: errors.New("connection refused")},
		"mongo":    nil,
	}
	rec := httptest.NewRecorder()
	HealthReady(cfg, nil, deps).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
	env := decodeError(t, rec)
	if _, ok := env.Error.Details["redis"]; !ok {
		t.Fatalf("expected redis in failure details, got %+v", env.Error.Details)
	}
	if _, ok := env.Error.Details["database"]; ok {
		t.Fatalf("healthy dependency reported as failing")
	}
}

func TestHealthReadySkipsNilPingers(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	rec := httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]db.Pinger{"database": stubPinger{}, "redis": nil}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if got := rec.Header().Get("X-Library-Env"); got != "test" {
		t.Fatalf("expected env header, got %q", got)
	}
}
