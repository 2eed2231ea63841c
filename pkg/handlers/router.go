package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

type RouterOptions struct {
	SessionSecret  []byte
	SecureCookies  bool
	AllowedOrigins []string

	// MediaDir is served under MediaPath when blobs live on local disk.
	MediaDir  string
	MediaPath string
}

func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(), gin.Recovery())

	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Session Setup
	store := cookie.NewStore(opts.SessionSecret)
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		Secure:   opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("medsoc_session", store))

	r.SetHTMLTemplate(pageTemplates())
	if opts.MediaDir != "" && opts.MediaPath != "" {
		r.Static(opts.MediaPath, opts.MediaDir)
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// --- Public pages ---
	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/news") })
	r.GET("/news", h.NewsIndex)
	r.GET("/news/:slug", h.NewsDetail)

	// --- Auth Routes ---
	auth := r.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/token", h.IssueToken)
		auth.POST("/logout", h.Logout)
		auth.GET("/github", h.GithubLogin)
		auth.GET("/callback", h.AuthCallback)
		auth.GET("/me", h.AuthRequired, h.Me)
	}

	// --- Public reads ---
	r.GET("/articles", h.ListArticles)
	r.GET("/articles/:id", h.GetArticle)

	// --- Authorized ---
	authorized := r.Group("/")
	authorized.Use(h.AuthRequired)
	{
		authorized.POST("/articles", h.CreateArticle)
		authorized.PUT("/articles/:id", h.UpdateArticle)
		authorized.DELETE("/articles/:id", h.DeleteArticle)
		authorized.GET("/articles/:id/export", h.ExportArticle)

		authorized.POST("/uploads", h.UploadMedia)
		authorized.GET("/media", h.ListMedia)
		authorized.DELETE("/media/:id", h.DeleteMedia)
	}

	return r
}
