package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"medsoc-cms/pkg/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListArticles(c *gin.Context) {
	filter := services.ArticleFilter{
		PublishedOnly: c.Query("published") == "true",
		Category:      c.Query("category"),
	}
	var err error
	if filter.Limit, err = nonNegativeQuery(c, "limit"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if filter.Offset, err = nonNegativeQuery(c, "offset"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	articles, err := h.Articles.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, articles)
}

func (h *Handler) GetArticle(c *gin.Context) {
	article, err := h.Articles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

func (h *Handler) CreateArticle(c *gin.Context) {
	who := CurrentIdentity(c)
	if who == nil {
		respondError(c, services.ErrUnauthorized)
		return
	}

	var in services.ArticleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	in.AuthorID = who.UserID

	article, err := h.Articles.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, article)
}

func (h *Handler) UpdateArticle(c *gin.Context) {
	who := CurrentIdentity(c)
	if who == nil {
		respondError(c, services.ErrUnauthorized)
		return
	}

	var in services.ArticleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	in.AuthorID = who.UserID

	article, err := h.Articles.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

func (h *Handler) DeleteArticle(c *gin.Context) {
	if CurrentIdentity(c) == nil {
		respondError(c, services.ErrUnauthorized)
		return
	}

	id := c.Param("id")
	images, err := h.Articles.Delete(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Uploader.Purge(c.Request.Context(), images)
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "id": id})
}

// ExportArticle renders one language of an article as a Hugo content file.
func (h *Handler) ExportArticle(c *gin.Context) {
	lang := c.DefaultQuery("lang", "mn")
	format := c.DefaultQuery("format", "yaml")
	if !services.IsLanguage(lang) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported language: %s", lang)})
		return
	}
	if format != "yaml" && format != "toml" && format != "json" {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported format: %s", format)})
		return
	}

	article, err := h.Articles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	content, err := services.ExportArticle(article, lang, format)
	if err != nil {
		respondError(c, err)
		return
	}

	contentType := "text/markdown; charset=utf-8"
	ext := "md"
	if format == "json" {
		contentType, ext = "application/json; charset=utf-8", "json"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s.%s"`, article.Slug, lang, ext))
	c.Data(http.StatusOK, contentType, content)
}

func nonNegativeQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}
