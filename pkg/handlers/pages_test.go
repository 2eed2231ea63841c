package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"medsoc-cms/pkg/models"
	"medsoc-cms/pkg/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func publishedArticle() *models.Article {
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	alt := "Ward"
	return &models.Article{
		ID:          "a1",
		Slug:        "conference",
		TitleMn:     "Бага хурал",
		TitleEn:     "Conference",
		ExcerptMn:   "Товч",
		ExcerptEn:   "Summary",
		ContentMn:   "Эхний догол мөр\n\nХоёр дахь",
		ContentEn:   "First paragraph\n\nSecond paragraph",
		Published:   true,
		PublishedAt: &at,
		Images:      []models.Image{{URL: "/uploads/ward.jpg", Alt: &alt}},
	}
}

func TestNewsIndexLanguages(t *testing.T) {
	env := newTestEnv(t)
	env.articles.EXPECT().
		List(gomock.Any(), services.ArticleFilter{PublishedOnly: true}).
		Return([]models.Article{*publishedArticle()}, nil).
		Times(3)

	w := env.do(httptest.NewRequest(http.MethodGet, "/news", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Бага хурал")
	assert.Contains(t, w.Body.String(), `href="/news/conference?lang=mn"`)

	w = env.do(httptest.NewRequest(http.MethodGet, "/news?lang=en", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Conference")
	assert.Contains(t, w.Body.String(), "2025-06-01")

	// The choice is remembered.
	var langCookieSet *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == langCookie {
			langCookieSet = c
		}
	}
	require.NotNil(t, langCookieSet)
	assert.Equal(t, "en", langCookieSet.Value)

	req := httptest.NewRequest(http.MethodGet, "/news", nil)
	req.AddCookie(&http.Cookie{Name: langCookie, Value: "en"})
	w = env.do(req)
	assert.Contains(t, w.Body.String(), "<h1>News</h1>")
}

func TestNewsIndexCategory(t *testing.T) {
	env := newTestEnv(t)
	env.articles.EXPECT().
		List(gomock.Any(), services.ArticleFilter{PublishedOnly: true, Category: "events"}).
		Return([]models.Article{}, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/news?category=events&lang=en", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No articles yet.")
}

func TestNewsDetail(t *testing.T) {
	env := newTestEnv(t)
	env.articles.EXPECT().GetBySlug(gomock.Any(), "conference").Return(publishedArticle(), nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/news/conference?lang=en", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<p>First paragraph</p>")
	assert.Contains(t, body, "<p>Second paragraph</p>")
	assert.Contains(t, body, `src="/uploads/ward.jpg" alt="Ward"`)
}

func TestNewsDetailHidesDraftsAndMissing(t *testing.T) {
	env := newTestEnv(t)
	draft := publishedArticle()
	draft.Published = false
	draft.PublishedAt = nil
	env.articles.EXPECT().GetBySlug(gomock.Any(), "conference").Return(draft, nil)
	env.articles.EXPECT().GetBySlug(gomock.Any(), "missing").Return(nil, services.ErrNotFound)

	w := env.do(httptest.NewRequest(http.MethodGet, "/news/conference", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Хуудас олдсонгүй.")

	w = env.do(httptest.NewRequest(http.MethodGet, "/news/missing?lang=en", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Page not found.")
}

func TestParagraphs(t *testing.T) {
	assert.Equal(t, []string{"one", "two"}, paragraphs("one\r\n\r\n\n\ntwo\n"))
	assert.Empty(t, paragraphs("   "))
}

func TestPrimaryGithubEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"email":"old@example.org","primary":false,"verified":true},
			{"email":"Editor@Example.org","primary":true,"verified":true}
		]`))
	}))
	defer srv.Close()

	orig := githubEmailsURL
	githubEmailsURL = srv.URL
	defer func() { githubEmailsURL = orig }()

	email, err := primaryGithubEmail(srv.Client())
	require.NoError(t, err)
	assert.Equal(t, "Editor@Example.org", email)
}
