package handlers

import (
	"fmt"
	"net/http"

	"authgate/internal/session"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidBody   = "Invalid request body"
	msgLoggedOut     = "logged out"
	msgNoSession     = "no session"
	msgSessionFailed = "Could not update session"
)

// Single, shared credentials payload for both register and login.
// Presence and length checks happen in the service so they map to 422.
type authCredentials struct {
	Username string `json:"username" example:"sue"`
	Password string `json:"password" example:"1234"`
}

// userResponse is the identity returned by register and me.
type userResponse struct {
	UserID   int    `json:"user_id" example:"1"`
	Username string `json:"username" example:"sue"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// bindJSONOrBadRequest tries to bind the request body into dst and writes a 400 JSON on failure.
// Returns false if the request was already handled (aborted), true otherwise.
func (h *Handler) bindJSONOrBadRequest(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.log.Infow("auth_bad_request_body", "err", err, "request_id", requestIDFrom(c))
		c.JSON(http.StatusBadRequest, messageResponse{Message: msgInvalidBody})
		return false
	}
	return true
}

// @Summary      Register
// @Description  Creates a user. The password is stored as a bcrypt hash.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      authCredentials  true  "credentials"
// @Success      201   {object}  userResponse
// @Failure      400   {object}  messageResponse
// @Failure      422   {object}  messageResponse  "Username taken | Password must be longer than 3 chars | Password must be at most 72 bytes"
// @Failure      500   {object}  messageResponse
// @Router       /api/auth/register [post]
func (h *Handler) register(c *gin.Context) {
	var input authCredentials
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	u, err := h.services.Register(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		h.respondError(c, err, "auth_register_failed", "username", input.Username)
		return
	}

	h.log.Infow("auth_registered", "user_id", u.ID, "username", u.Username)
	c.JSON(http.StatusCreated, userResponse{UserID: u.ID, Username: u.Username})
}

// @Summary      Login
// @Description  Verifies credentials and binds the session to the user.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      authCredentials  true  "credentials"
// @Success      200   {object}  messageResponse  "Welcome <username>"
// @Failure      400   {object}  messageResponse
// @Failure      401   {object}  messageResponse  "Invalid credentials"
// @Failure      429   {object}  messageResponse
// @Failure      500   {object}  messageResponse
// @Router       /api/auth/login [post]
func (h *Handler) login(c *gin.Context) {
	var input authCredentials
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	u, err := h.services.Login(c.Request.Context(), c.ClientIP(), input.Username, input.Password)
	if err != nil {
		h.respondError(c, err, "auth_login_failed", "username", input.Username, "client_ip", c.ClientIP())
		return
	}

	if err := h.sessions.Bind(c, session.Principal{UserID: u.ID, Username: u.Username}); err != nil {
		h.log.Errorw("auth_session_bind_failed", "err", err, "user_id", u.ID, "request_id", requestIDFrom(c))
		c.JSON(http.StatusInternalServerError, messageResponse{Message: msgSessionFailed})
		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: fmt.Sprintf("Welcome %s", u.Username)})
}

// @Summary      Logout
// @Description  Clears the session. Calling it without a session is not an error.
// @Tags         auth
// @Produce      json
// @Success      200  {object}  messageResponse  "logged out | no session"
// @Failure      500  {object}  messageResponse
// @Router       /api/auth/logout [get]
func (h *Handler) logout(c *gin.Context) {
	had, err := h.sessions.Clear(c)
	if err != nil {
		h.log.Errorw("auth_session_clear_failed", "err", err, "request_id", requestIDFrom(c))
		c.JSON(http.StatusInternalServerError, messageResponse{Message: msgSessionFailed})
		return
	}
	if !had {
		c.JSON(http.StatusOK, messageResponse{Message: msgNoSession})
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: msgLoggedOut})
}

// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Success      200  {object}  userResponse
// @Failure      401  {object}  messageResponse
// @Router       /api/auth/me [get]
func (h *Handler) me(c *gin.Context) {
	p, _ := session.FromContext(c.Request.Context())
	c.JSON(http.StatusOK, userResponse{UserID: p.UserID, Username: p.Username})
}
