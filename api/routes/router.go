package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/library-backend/api/controllers"
	"github.com/angelmondragon/library-backend/api/middleware"
	"github.com/angelmondragon/library-backend/api/responses"
	"github.com/angelmondragon/library-backend/internal/access"
	"github.com/angelmondragon/library-backend/internal/auth"
	"github.com/angelmondragon/library-backend/internal/books"
	"github.com/angelmondragon/library-backend/internal/borrows"
	"github.com/angelmondragon/library-backend/internal/lending"
	"github.com/angelmondragon/library-backend/internal/notifications"
	"github.com/angelmondragon/library-backend/internal/users"
	"github.com/angelmondragon/library-backend/pkg/auth/session"
	"github.com/angelmondragon/library-backend/pkg/config"
	"github.com/angelmondragon/library-backend/pkg/db"
	"github.com/angelmondragon/library-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/library-backend/pkg/errors"
	"github.com/angelmondragon/library-backend/pkg/logger"
	"github.com/angelmondragon/library-backend/pkg/metrics"
	"github.com/angelmondragon/library-backend/pkg/redis"
)

type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.Response, error)
	Login(ctx context.Context, req auth.LoginRequest) (*auth.Response, error)
	Refresh(ctx context.Context, req auth.RefreshRequest) (*auth.Response, error)
	Logout(ctx context.Context, accessID string) error
}

type UserService interface {
	List(ctx context.Context) ([]users.UserDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*users.UserDTO, error)
	Resolve(ctx context.Context, id uuid.UUID) (access.Identity, error)
}

type BookService interface {
	List(ctx context.Context, filter books.Filter) ([]books.BookDTO, error)
	Categories(ctx context.Context) ([]books.CategoryCount, error)
	Get(ctx context.Context, id uuid.UUID) (*books.BookDTO, error)
	Create(ctx context.Context, caller access.Identity, input books.CreateBookInput) (*books.BookDTO, error)
	Update(ctx context.Context, caller access.Identity, id uuid.UUID, patch books.Patch) (*books.BookDTO, error)
	Delete(ctx context.Context, caller access.Identity, id uuid.UUID) error
}

type LendingService interface {
	Borrow(ctx context.Context, caller access.Identity, bookID uuid.UUID) (*lending.BorrowView, error)
	ToggleReturn(ctx context.Context, caller access.Identity, borrowID uuid.UUID) (*lending.BorrowView, error)
	Approve(ctx context.Context, caller access.Identity, borrowID uuid.UUID) (*lending.BorrowView, error)
	MyBorrows(ctx context.Context, caller access.Identity) ([]lending.BorrowView, error)
	ListAll(ctx context.Context, caller access.Identity, filter borrows.Filter) ([]lending.BorrowView, error)
}

type StatsService interface {
	For(ctx context.Context, caller access.Identity) (any, error)
}

// Dependencies carries everything the router wires into handlers. Sessions,
// Idempotency and Metrics may be nil; the matching behavior is then skipped.
type Dependencies struct {
	Pingers       map[string]db.Pinger
	Sessions      session.AccessSessionChecker
	Limiter       redis.RateLimiter
	Idempotency   redis.IdempotencyStore
	Metrics       *metrics.HTTPMetrics
	MetricsRoute  http.Handler
	Auth          AuthService
	Users         UserService
	Books         BookService
	Lending       LendingService
	Notifications notifications.Service
	Stats         StatsService
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Recoverer(logg),
		middleware.SecurityHeaders,
		middleware.CORS(cfg.CORS.AllowedOrigins),
		middleware.Metrics(deps.Metrics),
		middleware.RateLimit(deps.Limiter, cfg.RateLimit.Requests, cfg.RateLimit.Window, logg),
	)

	r.NotFound(routeNotFound(logg))
	r.MethodNotAllowed(routeNotFound(logg))

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginUsernameLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterUsernameLimit,
	)

	idempotent := middleware.Idempotency(deps.Idempotency, logg)
	authenticate := middleware.Auth(cfg.JWT, deps.Sessions, deps.Users, logg)
	adminOnly := middleware.RequireRole(logg, enums.RoleAdmin)
	studentOnly := middleware.RequireRole(logg, enums.RoleStudent)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})
	if deps.MetricsRoute != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsRoute)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, deps.Limiter, logg), idempotent).
			Post("/register", controllers.AuthRegister(deps.Auth, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Limiter, logg)).
			Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
		r.With(authenticate).Post("/logout", controllers.AuthLogout(deps.Auth, logg))
		r.With(authenticate).Get("/me", controllers.AuthMe(deps.Users, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(authenticate)

		r.Route("/api/books", func(r chi.Router) {
			r.Get("/", controllers.BooksList(deps.Books, logg))
			r.Get("/categories", controllers.BooksCategories(deps.Books, logg))
			r.Get("/{id}", controllers.BooksGet(deps.Books, logg))
			r.With(adminOnly, idempotent).Post("/", controllers.BooksCreate(deps.Books, logg))
			r.With(adminOnly).Put("/{id}", controllers.BooksUpdate(deps.Books, logg))
			r.With(adminOnly).Delete("/{id}", controllers.BooksDelete(deps.Books, logg))
		})

		r.Route("/api/borrows", func(r chi.Router) {
			r.With(studentOnly, idempotent).Post("/", controllers.BorrowsCreate(deps.Lending, logg))
			r.With(studentOnly).Get("/my-books", controllers.BorrowsMine(deps.Lending, logg))
			r.With(adminOnly).Get("/", controllers.BorrowsList(deps.Lending, logg))
			r.Put("/{id}/return", controllers.BorrowsToggleReturn(deps.Lending, logg))
			r.With(adminOnly, idempotent).Put("/{id}/approve", controllers.BorrowsApprove(deps.Lending, logg))
		})

		r.Route("/api/notification", func(r chi.Router) {
			r.With(studentOnly, idempotent).Post("/admin", controllers.NotificationToAdmin(deps.Notifications, logg))
			r.With(adminOnly, idempotent).Post("/user/{id}", controllers.NotificationToUser(deps.Notifications, logg))
			r.Get("/conversation/{otherId}", controllers.NotificationConversation(deps.Notifications, logg))
			r.Get("/inbox", controllers.NotificationInbox(deps.Notifications, logg))
			r.Post("/{id}/read", controllers.NotificationMarkRead(deps.Notifications, logg))
		})

		r.With(adminOnly).Get("/api/users", controllers.UsersList(deps.Users, logg))
		r.Get("/api/stats", controllers.Stats(deps.Stats, logg))
	})

	return r
}

func routeNotFound(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "Route not found"))
	}
}
