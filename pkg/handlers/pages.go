package handlers

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"medsoc-cms/pkg/models"
	"medsoc-cms/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFS embed.FS

const langCookie = "lang"

func pageTemplates() *template.Template {
	funcs := template.FuncMap{
		"paragraphs": paragraphs,
		"categoryLabel": func(cat models.Category, lang string) string {
			if lang == "en" && cat.LabelEn != "" {
				return cat.LabelEn
			}
			if cat.LabelMn != "" {
				return cat.LabelMn
			}
			return cat.Name
		},
	}
	return template.Must(template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}

// NewsIndex lists published articles in the visitor's language.
func (h *Handler) NewsIndex(c *gin.Context) {
	lang := pickLang(c)
	category := c.Query("category")

	articles, err := h.Articles.List(c.Request.Context(), services.ArticleFilter{PublishedOnly: true, Category: category})
	if err != nil {
		logrus.WithError(err).Error("news index")
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}
	c.HTML(http.StatusOK, "news.html", gin.H{
		"Lang":       lang,
		"Category":   category,
		"Articles":   articles,
		"Categories": h.Site.Categories,
	})
}

// NewsDetail renders one published article. Drafts are not found.
func (h *Handler) NewsDetail(c *gin.Context) {
	lang := pickLang(c)

	article, err := h.Articles.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil && !errors.Is(err, services.ErrNotFound) {
		logrus.WithError(err).Error("news detail")
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if err != nil || !article.Published {
		c.HTML(http.StatusNotFound, "notfound.html", gin.H{"Lang": lang})
		return
	}
	c.HTML(http.StatusOK, "article.html", gin.H{"Lang": lang, "Article": article})
}

// pickLang prefers ?lang=, then the lang cookie, then Mongolian. An explicit
// choice is remembered in the cookie.
func pickLang(c *gin.Context) string {
	if lang := c.Query("lang"); services.IsLanguage(lang) {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(langCookie, lang, 365*24*3600, "/", "", false, false)
		return lang
	}
	if lang, err := c.Cookie(langCookie); err == nil && services.IsLanguage(lang) {
		return lang
	}
	return "mn"
}

func paragraphs(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(content, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
