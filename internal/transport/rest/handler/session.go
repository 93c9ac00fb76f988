package handler

import (
	"net/http"

	"voiceswap/internal/apperr"
	"voiceswap/internal/model"
	"voiceswap/internal/service"
	"voiceswap/internal/transport/rest/middleware"

	"github.com/gorilla/mux"
)

// SessionHandler handles session endpoints
type SessionHandler struct {
	coord *service.Coordinator
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(coord *service.Coordinator) *SessionHandler {
	return &SessionHandler{coord: coord}
}

// caller returns the authenticated identity, writing 401 when absent.
func caller(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	id, ok := middleware.GetIdentity(r.Context())
	if !ok {
		writeError(w, apperr.Unauthorized("unauthorized"))
	}
	return id, ok
}

// Create handles POST /v1/sessions
//
//	@Summary	Create a session
//	@Tags		sessions
//	@Param		body	body		model.CreateSessionRequest	true	"session id and optional display name and topic"
//	@Success	201		{object}	model.SessionIDResponse
//	@Failure	400,401,409	{object}	ErrorResponse
//	@Router		/sessions [post]
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req model.CreateSessionRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	resp, err := h.coord.CreateSession(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Get handles GET /v1/sessions/{id}
//
//	@Summary	Read a session with its derived clocks
//	@Tags		sessions
//	@Param		id	path		string	true	"session id"
//	@Success	200	{object}	model.SessionView
//	@Failure	401,403,404	{object}	ErrorResponse
//	@Router		/sessions/{id} [get]
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	view, err := h.coord.GetSession(r.Context(), id, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Join handles POST /v1/sessions/{id}/join
//
//	@Summary	Join a session
//	@Tags		sessions
//	@Param		id		path		string						true	"session id"
//	@Param		body	body		model.JoinSessionRequest	false	"optional display name"
//	@Success	200		{object}	model.SessionIDResponse
//	@Failure	401,404,409	{object}	ErrorResponse
//	@Router		/sessions/{id}/join [post]
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req model.JoinSessionRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	resp, err := h.coord.JoinSession(r.Context(), id, mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// AssignRoles handles POST /v1/sessions/{id}/roles
//
//	@Summary	Assign target and detector and start the talk phase
//	@Tags		sessions
//	@Param		id	path		string	true	"session id"
//	@Success	200	{object}	model.RoleAssignment
//	@Failure	401,403,404,409	{object}	ErrorResponse
//	@Router		/sessions/{id}/roles [post]
func (h *SessionHandler) AssignRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	resp, err := h.coord.AssignRoles(r.Context(), id, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Activate handles POST /v1/sessions/{id}/persona/activate
//
//	@Summary	Open a persona window (target only)
//	@Tags		persona
//	@Param		id	path		string	true	"session id"
//	@Success	200	{object}	model.OKResponse
//	@Failure	401,403,404,409	{object}	ErrorResponse
//	@Router		/sessions/{id}/persona/activate [post]
func (h *SessionHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	resp, err := h.coord.ActivatePersona(r.Context(), id, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Deactivate handles POST /v1/sessions/{id}/persona/deactivate
//
//	@Summary	Take back control (target only)
//	@Tags		persona
//	@Param		id		path		string					true	"session id"
//	@Param		body	body		model.DeactivateRequest	false	"optional persona segment reference"
//	@Success	200		{object}	model.DeactivateResult
//	@Failure	401,403,404,409	{object}	ErrorResponse
//	@Router		/sessions/{id}/persona/deactivate [post]
func (h *SessionHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req model.DeactivateRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	resp, err := h.coord.DeactivatePersona(r.Context(), id, mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Guess handles POST /v1/sessions/{id}/guess
//
//	@Summary	Submit the detector's single guess
//	@Tags		sessions
//	@Param		id	path		string	true	"session id"
//	@Success	200	{object}	model.GuessResult
//	@Failure	401,403,404,409	{object}	ErrorResponse
//	@Router		/sessions/{id}/guess [post]
func (h *SessionHandler) Guess(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	resp, err := h.coord.SubmitGuess(r.Context(), id, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// End handles POST /v1/sessions/{id}/end
//
//	@Summary	End a session
//	@Tags		sessions
//	@Param		id		path		string					true	"session id"
//	@Param		body	body		model.EndSessionRequest	false	"optional leaver and reason"
//	@Success	200		{object}	model.EndResult
//	@Failure	401,403,404	{object}	ErrorResponse
//	@Router		/sessions/{id}/end [post]
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req model.EndSessionRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	resp, err := h.coord.EndSession(r.Context(), id, mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Intro handles POST /v1/sessions/{id}/intro
//
//	@Summary	Mark the intro as complete (creator only)
//	@Tags		sessions
//	@Param		id	path		string	true	"session id"
//	@Success	200	{object}	model.IntroResult
//	@Failure	401,403,404,409	{object}	ErrorResponse
//	@Router		/sessions/{id}/intro [post]
func (h *SessionHandler) Intro(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	resp, err := h.coord.MarkIntroComplete(r.Context(), id, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Expire handles POST /v1/sessions/{id}/expire
//
//	@Summary	End the session if its deadline has passed
//	@Tags		sessions
//	@Param		id	path		string	true	"session id"
//	@Success	200	{object}	model.EndResult
//	@Failure	401,403,404,409	{object}	ErrorResponse
//	@Router		/sessions/{id}/expire [post]
func (h *SessionHandler) Expire(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	resp, err := h.coord.ExpireSession(r.Context(), id, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Events handles GET /v1/sessions/{id}/events
//
//	@Summary	List the audit trail of a session
//	@Tags		sessions
//	@Param		id	path		string	true	"session id"
//	@Success	200	{object}	model.EventsResponse
//	@Failure	401,403,404	{object}	ErrorResponse
//	@Router		/sessions/{id}/events [get]
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	resp, err := h.coord.ListEvents(r.Context(), id, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// NewCode handles GET /v1/codes
//
//	@Summary	Allocate an unused join code
//	@Tags		sessions
//	@Success	200	{object}	model.JoinCodeResponse
//	@Failure	401,500	{object}	ErrorResponse
//	@Router		/codes [get]
func (h *SessionHandler) NewCode(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	resp, err := h.coord.NewJoinCode(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
