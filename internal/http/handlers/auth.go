package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lnfunding/tipcards/internal/lnurlauth"
	"github.com/lnfunding/tipcards/internal/models"
	"github.com/lnfunding/tipcards/internal/session"
)

// refreshTokenCookie is the name of the httpOnly cookie carrying the
// refresh token.
const refreshTokenCookie = "refresh_token"

// AuthHandler handles LNURL-auth login and session lifecycle.
type AuthHandler struct {
	service *lnurlauth.Service
	manager *session.Manager
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(service *lnurlauth.Service, manager *session.Manager) *AuthHandler {
	return &AuthHandler{service: service, manager: manager}
}

// getUserID returns the authenticated user id set by the auth middleware.
func getUserID(c *gin.Context) string {
	return c.GetString("userID")
}

// Create mints a fresh login challenge and returns the LNURL together with
// the correlation hash the browser polls on.
func (h *AuthHandler) Create(c *gin.Context) {
	challenge, err := h.service.CreateChallenge(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, challenge)
}

// Login is the wallet callback of the LNURL-auth flow. The response format
// follows the LNURL spec, not the api envelope.
func (h *AuthHandler) Login(c *gin.Context) {
	k1 := c.Query("k1")
	sig := c.Query("sig")
	key := c.Query("key")

	if err := h.service.HandleCallback(c.Request.Context(), k1, sig, key); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "ERROR", "reason": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

// Status claims a signed login challenge: it resolves the wallet's linking
// key into a user account, issues a session and sets the refresh token
// cookie. A challenge can only be claimed once.
func (h *AuthHandler) Status(c *gin.Context) {
	linkingKey, err := h.service.Claim(c.Request.Context(), c.Param("hash"))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	user, errUser := h.manager.GetOrCreateUser(c.Request.Context(), linkingKey)
	if errUser != nil {
		respondDomainError(c, errUser)
		return
	}

	sess, errSession := h.manager.IssueSession(c.Request.Context(), user.ID)
	if errSession != nil {
		respondDomainError(c, errSession)
		return
	}

	h.setRefreshCookie(c, sess.RefreshToken)
	respondSuccess(c, gin.H{"accessToken": sess.AccessToken})
}

// Refresh rotates the refresh token from the cookie and returns a fresh
// access token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	presented, _ := c.Cookie(refreshTokenCookie)

	sess, err := h.manager.RefreshAccessToken(c.Request.Context(), presented)
	if err != nil {
		h.clearRefreshCookie(c)
		respondDomainError(c, err)
		return
	}

	h.setRefreshCookie(c, sess.RefreshToken)
	respondSuccess(c, gin.H{"accessToken": sess.AccessToken})
}

// Logout clears the refresh token cookie and removes the token from the
// allow-list. The cookie is cleared even when revocation fails.
func (h *AuthHandler) Logout(c *gin.Context) {
	presented, _ := c.Cookie(refreshTokenCookie)
	h.clearRefreshCookie(c)

	if presented != "" {
		claims, errParse := h.manager.ParseRefresh(presented)
		if errParse == nil {
			if errRevoke := h.manager.Revoke(c.Request.Context(), claims.UserID, presented); errRevoke != nil {
				respondDomainError(c, errRevoke)
				return
			}
		}
	}
	respondSuccess(c, nil)
}

// LogoutAllOtherDevices rotates the presented refresh token and revokes
// every other token on the allow-list.
func (h *AuthHandler) LogoutAllOtherDevices(c *gin.Context) {
	presented, _ := c.Cookie(refreshTokenCookie)

	sess, err := h.manager.RefreshAccessToken(c.Request.Context(), presented)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if errRevoke := h.manager.RevokeAllExcept(c.Request.Context(), sess.UserID, sess.RefreshToken); errRevoke != nil {
		respondDomainError(c, errRevoke)
		return
	}

	h.setRefreshCookie(c, sess.RefreshToken)
	respondSuccess(c, gin.H{"accessToken": sess.AccessToken})
}

// Profile returns the authenticated user's profile.
func (h *AuthHandler) Profile(c *gin.Context) {
	user, err := h.manager.GetUser(c.Request.Context(), getUserID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if user == nil {
		respondDomainError(c, session.ErrUserNotFound)
		return
	}
	respondSuccess(c, user.ProfileData())
}

// SaveProfile updates the authenticated user's profile.
func (h *AuthHandler) SaveProfile(c *gin.Context) {
	var body models.Profile
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondError(c, 400, "Invalid input.", "InvalidInput")
		return
	}

	user, err := h.manager.GetUser(c.Request.Context(), getUserID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if user == nil {
		respondDomainError(c, session.ErrUserNotFound)
		return
	}
	user.SetProfilePayload(body)
	if errSave := h.manager.SaveUser(c.Request.Context(), user); errSave != nil {
		respondDomainError(c, errSave)
		return
	}
	respondSuccess(c, body)
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(refreshTokenCookie, token, int(h.manager.RefreshTokenTTL().Seconds()), "/", "", true, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(refreshTokenCookie, "", -1, "/", "", true, true)
}
