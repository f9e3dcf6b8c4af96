package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"realm-server/internal/auth"
	"realm-server/internal/character"
	"realm-server/internal/middleware"
	"realm-server/internal/shared/cookies"
	"realm-server/internal/shared/errors"
	"realm-server/internal/shared/response"
)

type TokenRequest struct {
	Username string `json:"username"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	ExpiresIn int    `json:"expires_in"`
}

// DevTokenHandler hands out a token for any valid username. It is only
// routed outside production, where an external login issues tokens.
type DevTokenHandler struct {
	tokens *auth.Tokens
	cookie cookies.Options
}

func NewDevTokenHandler(tokens *auth.Tokens, cookie cookies.Options) *DevTokenHandler {
	cookie.MaxAge = tokens.TTL()
	return &DevTokenHandler{tokens: tokens, cookie: cookie}
}

func (h *DevTokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "dev_token", "remote_addr", r.RemoteAddr)

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	var req TokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid request body", err))
		return
	}
	if !character.ValidUsername(req.Username) {
		response.Error(w, r, logger, errors.WrapValidation("username must be 3-32 letters, digits or underscores", character.ErrInvalidUsername))
		return
	}

	token, err := h.tokens.Generate(req.Username)
	if err != nil {
		response.Error(w, r, logger, errors.WrapInternal("failed to issue token", err))
		return
	}

	cookies.SetAuthCookie(w, token, h.cookie)
	logger.Info("Development token issued", "username", req.Username)

	response.Success(w, http.StatusOK, TokenResponse{
		Token:     token,
		Username:  req.Username,
		ExpiresIn: int(h.tokens.TTL().Seconds()),
	})
}

type LogoutHandler struct {
	cookie cookies.Options
}

func NewLogoutHandler(cookie cookies.Options) *LogoutHandler {
	return &LogoutHandler{cookie: cookie}
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "logout", "remote_addr", r.RemoteAddr)
	logger.Debug("Logout requested")

	cookies.ClearAuthCookie(w, h.cookie)
	response.Success(w, http.StatusOK, map[string]string{"status": "logged out"})
}

type MeHandler struct{}

func NewMeHandler() *MeHandler {
	return &MeHandler{}
}

func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "me", "remote_addr", r.RemoteAddr)

	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		response.Error(w, r, logger, errors.Unauthorized("authentication required"))
		return
	}

	response.Success(w, http.StatusOK, map[string]string{"username": claims.Username})
}
