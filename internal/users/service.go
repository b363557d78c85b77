package users

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexusauctions/nexus-backend/internal/ledger"
	"github.com/nexusauctions/nexus-backend/pkg/auth"
	"github.com/nexusauctions/nexus-backend/pkg/config"
	"github.com/nexusauctions/nexus-backend/pkg/db"
	"github.com/nexusauctions/nexus-backend/pkg/db/models"
	"github.com/nexusauctions/nexus-backend/pkg/enums"
	pkgerrors "github.com/nexusauctions/nexus-backend/pkg/errors"
	"github.com/nexusauctions/nexus-backend/pkg/logger"
	"github.com/nexusauctions/nexus-backend/pkg/security"
)

// Service exposes registration and login.
type Service interface {
	// Register creates the user and their empty wallet in one transaction, so
	// a user can never exist without a wallet.
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// RegisterInput captures a signup request.
type RegisterInput struct {
	Email    string
	Username string
	Password string
	Role     enums.UserRole
}

// LoginResult carries the authenticated user and their access token.
type LoginResult struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// ServiceParams collects the users service dependencies.
type ServiceParams struct {
	Client   *db.Client
	Repo     Repository
	Ledger   ledger.Service
	JWT      config.JWTConfig
	Password config.PasswordConfig
	Logger   *logger.Logger
}

type service struct {
	client   *db.Client
	repo     Repository
	ledger   ledger.Service
	jwt      config.JWTConfig
	password config.PasswordConfig
	logg     *logger.Logger
}

// NewService wires the users service.
func NewService(params ServiceParams) (Service, error) {
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db client required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		client:   params.Client,
		repo:     params.Repo,
		ledger:   params.Ledger,
		jwt:      params.JWT,
		password: params.Password,
		logg:     params.Logger,
	}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	username := strings.TrimSpace(input.Username)
	if email == "" || username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and username required")
	}
	if len(input.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	role := input.Role
	if role == "" {
		role = enums.UserRoleBuyer
	}
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}

	hash, err := security.HashPassword(input.Password, s.password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, user); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email or username already taken")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
		}
		_, err := s.ledger.CreateWallet(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithUserID(ctx, user.ID.String())
	s.logg.Info(logCtx, "user registered")
	return user, nil
}

func (s *service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password required")
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, err
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	token, err := auth.MintAccessToken(s.jwt, time.Now().UTC(), auth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint token")
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		// Login still succeeds; the timestamp is informational.
		s.logg.Warn(s.logg.WithUserID(ctx, user.ID.String()), "last login update failed")
	}

	return &LoginResult{User: user, Token: token}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return s.repo.FindByID(ctx, id)
}
