package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"voiceswap/internal/apperr"
	"voiceswap/internal/model"
	"voiceswap/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authSvc *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Guest handles POST /v1/auth/guest
//
//	@Summary	Issue a guest bearer token
//	@Tags		auth
//	@Param		body	body		model.GuestRequest	false	"optional display name"
//	@Success	201		{object}	model.GuestResponse
//	@Failure	403		{object}	ErrorResponse
//	@Router		/auth/guest [post]
func (h *AuthHandler) Guest(w http.ResponseWriter, r *http.Request) {
	var req model.GuestRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	resp, err := h.authSvc.IssueGuest(req.Name)
	if errors.Is(err, service.ErrGuestsDisabled) {
		writeError(w, apperr.Forbidden(apperr.CodeGuestsDisabled, err.Error()))
		return
	}
	if err != nil {
		writeError(w, apperr.Internal("could not issue token", err))
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps err onto its HTTP status. Internal details never reach the client.
func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	message := "internal error"
	if e, ok := apperr.As(err); ok && kind != apperr.KindInternal {
		message = e.Message
	}
	if kind == apperr.KindInternal {
		slog.Error("request failed", "err", err)
	}
	writeJSON(w, kind.HTTPStatus(), ErrorResponse{
		Error: message,
		Code:  string(apperr.CodeOf(err)),
	})
}

// decodeOptional decodes a JSON body if one was sent. An empty body leaves dst untouched.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, apperr.BadRequest("invalid request body"))
	return false
}
