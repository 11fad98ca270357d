package httpserver

import (
	"net/http"
	"time"

	"bahri-storefront/internal/domain"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleLoginRequest struct {
	Credential string `json:"credential"`
}

type sessionView struct {
	Identity      domain.Identity `json:"identity"`
	Authenticated bool            `json:"authenticated"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
}

func (h *handlers) sessionOf(c *gin.Context) sessionView {
	d := deviceFrom(c)
	id := d.Session.Identity()
	view := sessionView{Identity: id, Authenticated: !id.IsGuest()}
	if exp, ok := d.Session.Expiry(); ok {
		view.ExpiresAt = &exp
	}
	return view
}

func (h *handlers) getSession(c *gin.Context) {
	respond(c, http.StatusOK, h.sessionOf(c))
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if _, err := deviceFrom(c).Session.Login(c.Request.Context(), req.Email, req.Password); err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, h.sessionOf(c))
}

func (h *handlers) googleLogin(c *gin.Context) {
	var req googleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if _, err := deviceFrom(c).Session.LoginWithGoogle(c.Request.Context(), req.Credential); err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, h.sessionOf(c))
}

func (h *handlers) register(c *gin.Context) {
	var req domain.Registration
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if _, err := deviceFrom(c).Session.Register(c.Request.Context(), req); err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, h.sessionOf(c))
}

func (h *handlers) logout(c *gin.Context) {
	if err := deviceFrom(c).Session.Logout(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, h.sessionOf(c))
}

func (h *handlers) refresh(c *gin.Context) {
	deviceFrom(c).Session.RefreshIdentity(c.Request.Context())
	respond(c, http.StatusOK, h.sessionOf(c))
}

func (h *handlers) updateProfile(c *gin.Context) {
	var req domain.ProfileFields
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	user, err := deviceFrom(c).Session.UpdateProfile(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"user": user})
}
