package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/library-backend/internal/users"
	pkgAuth "github.com/angelmondragon/library-backend/pkg/auth"
	"github.com/angelmondragon/library-backend/pkg/auth/session"
	"github.com/angelmondragon/library-backend/pkg/config"
	"github.com/angelmondragon/library-backend/pkg/db"
	"github.com/angelmondragon/library-backend/pkg/db/models"
	"github.com/angelmondragon/library-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/library-backend/pkg/errors"
	"github.com/angelmondragon/library-backend/pkg/logger"
	"github.com/angelmondragon/library-backend/pkg/security"
)

const invalidCredentialsMessage = "Invalid credentials"

type userRepository interface {
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

type sessionManager interface {
	Generate(ctx context.Context, userID uuid.UUID, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (session.Rotated, error)
	Revoke(ctx context.Context, accessID string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
// Sessions is optional; without it only access tokens are issued.
type ServiceParams struct {
	Users          userRepository
	Sessions       sessionManager
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	AdminSecret    string
	Logger         *logger.Logger
}

// Service handles registration, login and token rotation.
type Service struct {
	users       userRepository
	sessions    sessionManager
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	adminSecret string
	logg        *logger.Logger
	now         func() time.Time
}

// NewService constructs an auth service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		users:       params.Users,
		sessions:    params.Sessions,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		adminSecret: params.AdminSecret,
		logg:        logg,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// SessionsEnabled reports whether refresh tokens are issued.
func (s *Service) SessionsEnabled() bool {
	return s.sessions != nil
}

// Register creates a user and signs them in. Admin accounts require the
// configured registration secret.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Response, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Username and password are required")
	}

	role := enums.RoleStudent
	if strings.TrimSpace(req.Role) != "" {
		parsed, err := enums.ParseRole(req.Role)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
		}
		role = parsed
	}
	if role == enums.RoleAdmin {
		if s.adminSecret == "" {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Admin registration is disabled")
		}
		if !security.ConstantTimeEqual(req.AdminSecret, s.adminSecret) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Invalid admin secret")
		}
	}

	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return nil, usernameTaken()
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, pkgerrors.Storage(err, "check username")
	}

	hash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user, err := s.users.Create(ctx, users.CreateUserDTO{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, db.ErrDuplicateKey) {
			return nil, usernameTaken()
		}
		return nil, pkgerrors.Storage(err, "create user")
	}

	ctx = s.logg.WithUserID(ctx, user.ID.String())
	s.logg.Info(s.logg.WithActorRole(ctx, string(user.Role)), "auth.registered")
	return s.issue(ctx, user)
}

// Login verifies credentials and issues tokens. Legacy bcrypt hashes are
// upgraded to argon2id on success.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Response, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Username and password are required")
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Storage(err, "lookup user")
	}

	valid, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	ctx = s.logg.WithUserID(ctx, user.ID.String())
	if security.IsLegacyHash(user.PasswordHash) {
		s.upgradeHash(ctx, user, req.Password)
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Storage(err, "update last login")
	}
	user.LastLoginAt = &now
	return s.issue(ctx, user)
}

// Refresh rotates the refresh token bound to the presented access token's
// jti. The user is reloaded so the new token carries the stored role.
func (s *Service) Refresh(ctx context.Context, req RefreshRequest) (*Response, error) {
	if s.sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "session store unavailable")
	}
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, req.AccessToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "Invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}

	rotated, err := s.sessions.Rotate(ctx, claims.ID, req.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}
	if rotated.UserID != claims.UserID {
		_ = s.sessions.Revoke(ctx, rotated.AccessID)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
	}

	user, err := s.users.FindByID(ctx, rotated.UserID)
	if err != nil {
		_ = s.sessions.Revoke(ctx, rotated.AccessID)
		if errors.Is(err, db.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Invalid token")
		}
		return nil, pkgerrors.Storage(err, "load user")
	}

	token, err := s.mint(user, rotated.AccessID)
	if err != nil {
		return nil, err
	}
	return &Response{Token: token, RefreshToken: rotated.RefreshToken, User: users.FromModel(user)}, nil
}

// Logout drops the session tied to accessID. It is a no-op without a
// session store.
func (s *Service) Logout(ctx context.Context, accessID string) error {
	if s.sessions == nil || strings.TrimSpace(accessID) == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *Service) issue(ctx context.Context, user *models.User) (*Response, error) {
	accessID := session.NewAccessID()
	token, err := s.mint(user, accessID)
	if err != nil {
		return nil, err
	}
	resp := &Response{Token: token, User: users.FromModel(user)}
	if s.sessions != nil {
		refresh, err := s.sessions.Generate(ctx, user.ID, accessID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
		}
		resp.RefreshToken = refresh
	}
	return resp, nil
}

func (s *Service) mint(user *models.User, accessID string) (string, error) {
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, s.now(), pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		JTI:    accessID,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return token, nil
}

func (s *Service) upgradeHash(ctx context.Context, user *models.User, password string) {
	hash, err := security.HashPassword(password, s.passwordCfg)
	if err != nil {
		s.logg.Error(ctx, "auth.rehash_failed", err)
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		s.logg.Error(ctx, "auth.rehash_failed", err)
		return
	}
	user.PasswordHash = hash
	s.logg.Info(ctx, "auth.password_rehashed")
}

func usernameTaken() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "Username already exists")
}
