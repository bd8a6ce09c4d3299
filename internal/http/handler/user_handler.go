package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/quantumchem/quantumchem-backend/internal/domain"
	"github.com/quantumchem/quantumchem-backend/internal/http/middleware"
	"github.com/quantumchem/quantumchem-backend/internal/http/response"
	"github.com/quantumchem/quantumchem-backend/internal/repository"
	"github.com/quantumchem/quantumchem-backend/internal/service"
)

type UserHandler struct {
	accountSvc service.AccountServiceInterface
	tokenSvc   *service.TokenService
}

func NewUserHandler(accountSvc service.AccountServiceInterface, tokenSvc *service.TokenService) *UserHandler {
	return &UserHandler{accountSvc: accountSvc, tokenSvc: tokenSvc}
}

type profileResponse struct {
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	AuthProvider   string     `json:"authProvider"`
	ProfilePicture string     `json:"profilePicture,omitempty"`
	LastLoginAt    *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	uid, err := h.tokenSvc.ParseUserID(claims.Subject)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}
	u, err := h.accountSvc.Profile(r.Context(), uid)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to load profile", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, toProfileResponse(u))
}

func toProfileResponse(u *domain.User) profileResponse {
	return profileResponse{
		Name:           u.Name,
		Email:          u.Email,
		AuthProvider:   u.AuthProvider,
		ProfilePicture: u.ProfilePicture,
		LastLoginAt:    u.LastLoginAt,
		CreatedAt:      u.CreatedAt,
	}
}
