package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"medsoc-cms/pkg/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	sessionUserKey  = "user_id"
	sessionStateKey = "oauth_state"
)

var githubEmailsURL = "https://api.github.com/user/emails"

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthRequired resolves the caller from the session cookie or a bearer
// token and aborts with 401 when neither yields an active user.
func (h *Handler) AuthRequired(c *gin.Context) {
	id, err := h.resolveIdentity(c)
	if err != nil {
		if errors.Is(err, services.ErrUnauthorized) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		respondError(c, err)
		c.Abort()
		return
	}
	c.Set(identityKey, id)
	c.Next()
}

func (h *Handler) resolveIdentity(c *gin.Context) (*services.Identity, error) {
	session := sessions.Default(c)
	if userID, ok := session.Get(sessionUserKey).(string); ok && userID != "" {
		id, err := h.Auth.Resolve(c.Request.Context(), userID)
		if !errors.Is(err, services.ErrUnauthorized) {
			return id, err
		}
		// Stale session; a bearer token may still identify the caller.
	}

	authHeader := c.GetHeader("Authorization")
	if raw, ok := strings.CutPrefix(authHeader, "Bearer "); ok && raw != "" {
		userID, err := h.Auth.ParseToken(raw)
		if err != nil {
			return nil, err
		}
		return h.Auth.Resolve(c.Request.Context(), userID)
	}
	return nil, services.ErrUnauthorized
}

// Login checks credentials and starts a cookie session.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	id, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserKey, id.UserID)
	if err := session.Save(); err != nil {
		respondError(c, fmt.Errorf("save session: %w", err))
		return
	}
	c.JSON(http.StatusOK, id)
}

// IssueToken checks credentials and returns a bearer token instead of a
// cookie, for API clients.
func (h *Handler) IssueToken(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	id, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	token, expires, err := h.Auth.IssueToken(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_at": expires})
}

func (h *Handler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		respondError(c, fmt.Errorf("save session: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, CurrentIdentity(c))
}

// GithubLogin redirects to GitHub. Only users already provisioned with the
// same verified email may sign in this way.
func (h *Handler) GithubLogin(c *gin.Context) {
	if h.OauthConf == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "github sign-in is not configured"})
		return
	}
	state, err := randomState()
	if err != nil {
		respondError(c, err)
		return
	}
	session := sessions.Default(c)
	session.Set(sessionStateKey, state)
	if err := session.Save(); err != nil {
		respondError(c, fmt.Errorf("save session: %w", err))
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, h.OauthConf.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

func (h *Handler) AuthCallback(c *gin.Context) {
	if h.OauthConf == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "github sign-in is not configured"})
		return
	}
	session := sessions.Default(c)
	expected, _ := session.Get(sessionStateKey).(string)
	session.Delete(sessionStateKey)
	if expected == "" || c.Query("state") != expected {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	token, err := h.OauthConf.Exchange(ctx, c.Query("code"))
	if err != nil {
		logrus.WithError(err).Warn("oauth exchange failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	email, err := primaryGithubEmail(h.OauthConf.Client(ctx, token))
	if err != nil {
		logrus.WithError(err).Warn("github email lookup failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, err := h.Auth.ResolveEmail(ctx, email)
	if err != nil {
		respondError(c, err)
		return
	}

	session.Set(sessionUserKey, id.UserID)
	if err := session.Save(); err != nil {
		respondError(c, fmt.Errorf("save session: %w", err))
		return
	}
	c.Redirect(http.StatusFound, "/news")
}

func primaryGithubEmail(client *http.Client) (string, error) {
	resp, err := client.Get(githubEmailsURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("github emails: status %d", resp.StatusCode)
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	return "", errors.New("no verified primary email")
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
