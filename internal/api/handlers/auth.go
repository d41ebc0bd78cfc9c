package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/formlink/internal/access"
	"github.com/hugh/formlink/internal/api/dto"
	"github.com/hugh/formlink/internal/api/middleware"
	"github.com/hugh/formlink/internal/api/validation"
	"github.com/hugh/formlink/internal/auth"
)

type AuthHandler struct {
	authService  auth.Authenticator
	gate         *access.Gate
	logger       *slog.Logger
	secureCookie bool
	cookieMaxAge int
}

// NewAuthHandler builds the session endpoints. secureCookie should be true
// wherever the API is served over HTTPS.
func NewAuthHandler(authService auth.Authenticator, gate *access.Gate, logger *slog.Logger, secureCookie bool, cookieMaxAge int) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		gate:         gate,
		logger:       logger,
		secureCookie: secureCookie,
		cookieMaxAge: cookieMaxAge,
	}
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeValidation(w, r, h.logger, errors)
		return
	}

	resp, err := h.authService.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     validation.CleanName(req.Name),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.setSessionCookie(w, resp.Token)
	writeData(w, http.StatusCreated, dto.AuthResponse{
		Token: resp.Token,
		User:  dto.NewUserDTO(resp.User),
	})
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeValidation(w, r, h.logger, errors)
		return
	}

	resp, err := h.authService.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.setSessionCookie(w, resp.Token)
	writeData(w, http.StatusOK, dto.AuthResponse{
		Token: resp.Token,
		User:  dto.NewUserDTO(resp.User),
	})
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	writeData(w, http.StatusOK, dto.MessageResponse{Message: "Logged out"})
}

// Me handles GET /api/v1/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := authenticate(w, r, h.gate, h.logger)
	if !ok {
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), p.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, dto.NewUserDTO(user))
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   h.cookieMaxAge,
	})
}
