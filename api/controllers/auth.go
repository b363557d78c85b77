package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nexusauctions/nexus-backend/api/responses"
	"github.com/nexusauctions/nexus-backend/api/validators"
	"github.com/nexusauctions/nexus-backend/internal/users"
	"github.com/nexusauctions/nexus-backend/pkg/db/models"
	"github.com/nexusauctions/nexus-backend/pkg/enums"
	pkgerrors "github.com/nexusauctions/nexus-backend/pkg/errors"
	"github.com/nexusauctions/nexus-backend/pkg/logger"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=40"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=BUYER SELLER"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID         uuid.UUID      `json:"id"`
	Email      string         `json:"email"`
	Username   string         `json:"username"`
	Role       enums.UserRole `json:"role"`
	Bio        *string        `json:"bio,omitempty"`
	IsVerified bool           `json:"is_verified"`
	CreatedAt  time.Time      `json:"created_at"`
}

type loginResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

func newUserResponse(user *models.User) userResponse {
	return userResponse{
		ID:         user.ID,
		Email:      user.Email,
		Username:   user.Username,
		Role:       user.Role,
		Bio:        user.Bio,
		IsVerified: user.IsVerified,
		CreatedAt:  user.CreatedAt,
	}
}

// Register creates a new account along with its wallet.
func Register(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}

		var payload registerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := users.RegisterInput{
			Email:    payload.Email,
			Username: payload.Username,
			Password: payload.Password,
		}
		if payload.Role != "" {
			role, err := enums.ParseUserRole(payload.Role)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role"))
				return
			}
			input.Role = role
		}

		user, err := svc.Register(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newUserResponse(user))
	}
}

// Login exchanges credentials for an access token.
func Login(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}

		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), payload.Email, payload.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, loginResponse{
			User:  newUserResponse(result.User),
			Token: result.Token,
		})
	}
}

// Me returns the authenticated user's profile.
func Me(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}

		userID, err := authenticatedUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newUserResponse(user))
	}
}
