package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"medsoc-cms/pkg/mocks"
	"medsoc-cms/pkg/models"
	"medsoc-cms/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	router    *gin.Engine
	articles  *mocks.MockArticleStore
	images    *mocks.MockImageStore
	users     *mocks.MockUserStore
	blobs     *mocks.MockBlobStore
	processor *mocks.MockImageProcessor
	auth      *services.Authenticator
}

var testEditor = &models.User{
	ID:     "user-1",
	Email:  "editor@example.org",
	Name:   "Editor",
	Role:   models.RoleAdmin,
	Active: true,
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)

	env := &testEnv{
		articles:  mocks.NewMockArticleStore(ctrl),
		images:    mocks.NewMockImageStore(ctrl),
		users:     mocks.NewMockUserStore(ctrl),
		blobs:     mocks.NewMockBlobStore(ctrl),
		processor: mocks.NewMockImageProcessor(ctrl),
	}
	env.auth = services.NewAuthenticator(env.users, services.BcryptHasher{Cost: bcrypt.MinCost}, []byte("jwt-test-secret"), time.Hour)

	h := &Handler{
		Articles: env.articles,
		Images:   env.images,
		Uploader: services.NewUploader(env.blobs, env.images, env.articles, env.processor, 2),
		Auth:     env.auth,
		Site: models.SiteConfig{
			Categories: []models.Category{{Name: "news", LabelMn: "Мэдээ", LabelEn: "News"}},
		},
	}
	env.router = NewRouter(h, RouterOptions{SessionSecret: []byte("session-test-secret-0123456789ab")})
	return env
}

// bearer returns an Authorization header value for the test editor and
// allows any number of identity lookups.
func (e *testEnv) bearer(t *testing.T) string {
	t.Helper()
	e.users.EXPECT().GetByID(gomock.Any(), testEditor.ID).Return(testEditor, nil).AnyTimes()
	token, _, err := e.auth.IssueToken(&services.Identity{UserID: testEditor.ID})
	require.NoError(t, err)
	return "Bearer " + token
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path, body, auth string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	return req
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

const validArticleJSON = `{
	"title_mn": "Гарчиг", "title_en": "Title",
	"excerpt_mn": "Товч", "excerpt_en": "Excerpt",
	"content_mn": "Агуулга", "content_en": "Content",
	"published": true
}`

func TestMutationsRequireAuth(t *testing.T) {
	routes := []struct{ method, path string }{
		{http.MethodPost, "/articles"},
		{http.MethodPut, "/articles/a1"},
		{http.MethodDelete, "/articles/a1"},
		{http.MethodGet, "/articles/a1/export"},
		{http.MethodPost, "/uploads"},
		{http.MethodGet, "/media"},
		{http.MethodDelete, "/media/i1"},
		{http.MethodGet, "/auth/me"},
	}
	for _, r := range routes {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(jsonRequest(r.method, r.path, validArticleJSON, ""))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "unauthorized", errorBody(t, w))
		})
	}
}

func TestInvalidBearerToken(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(jsonRequest(http.MethodPost, "/articles", validArticleJSON, "Bearer not-a-token"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInactiveUserToken(t *testing.T) {
	env := newTestEnv(t)
	inactive := *testEditor
	inactive.Active = false
	env.users.EXPECT().GetByID(gomock.Any(), testEditor.ID).Return(&inactive, nil)
	token, _, err := env.auth.IssueToken(&services.Identity{UserID: testEditor.ID})
	require.NoError(t, err)

	w := env.do(jsonRequest(http.MethodPost, "/articles", validArticleJSON, "Bearer "+token))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateArticle(t *testing.T) {
	env := newTestEnv(t)
	auth := env.bearer(t)

	env.articles.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, in services.ArticleInput) (*models.Article, error) {
			assert.Equal(t, testEditor.ID, in.AuthorID)
			assert.Equal(t, "Title", in.TitleEn)
			assert.True(t, in.Published)
			return &models.Article{ID: "a1", Slug: "title", TitleEn: in.TitleEn, AuthorID: in.AuthorID}, nil
		})

	w := env.do(jsonRequest(http.MethodPost, "/articles", validArticleJSON, auth))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var got models.Article
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, "title", got.Slug)
}

func TestCreateArticleErrors(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		err     error
		status  int
		message string
	}{
		{"malformed json", `{"title_mn":`, nil, http.StatusBadRequest, "Invalid JSON"},
		{"validation", validArticleJSON, &services.ValidationError{Message: "title_mn is required"}, http.StatusBadRequest, "title_mn is required"},
		{"slug conflict", validArticleJSON, &services.ConflictError{Field: "slug", Value: "title"}, http.StatusConflict, `slug "title" already exists`},
		{"database", validArticleJSON, &services.DatabaseError{Op: "insert article", Err: fmt.Errorf("connection reset")}, http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			auth := env.bearer(t)
			if tc.err != nil {
				env.articles.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, tc.err)
			}

			w := env.do(jsonRequest(http.MethodPost, "/articles", tc.body, auth))
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.message, errorBody(t, w))
		})
	}
}

func TestGetArticle(t *testing.T) {
	env := newTestEnv(t)
	env.articles.EXPECT().Get(gomock.Any(), "a1").Return(&models.Article{
		ID:     "a1",
		Images: []models.Image{{ID: "i1", URL: "/uploads/x.jpg"}},
	}, nil)
	env.articles.EXPECT().Get(gomock.Any(), "missing").Return(nil, services.ErrNotFound)

	w := env.do(httptest.NewRequest(http.MethodGet, "/articles/a1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Article
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Images, 1)
	assert.Equal(t, "/uploads/x.jpg", got.Images[0].URL)

	w = env.do(httptest.NewRequest(http.MethodGet, "/articles/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not found", errorBody(t, w))
}

func TestListArticlesQuery(t *testing.T) {
	env := newTestEnv(t)
	env.articles.EXPECT().
		List(gomock.Any(), services.ArticleFilter{PublishedOnly: true, Category: "events", Limit: 5, Offset: 10}).
		Return([]models.Article{{ID: "a1"}, {ID: "a2"}}, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/articles?published=true&category=events&limit=5&offset=10", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got []models.Article
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, 2)

	w = env.do(httptest.NewRequest(http.MethodGet, "/articles?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(httptest.NewRequest(http.MethodGet, "/articles?offset=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListArticlesEmptyIsArray(t *testing.T) {
	env := newTestEnv(t)
	env.articles.EXPECT().List(gomock.Any(), services.ArticleFilter{}).Return([]models.Article{}, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/articles", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestUpdateArticle(t *testing.T) {
	env := newTestEnv(t)
	auth := env.bearer(t)
	env.articles.EXPECT().Update(gomock.Any(), "a1", gomock.Any()).Return(&models.Article{ID: "a1"}, nil)
	env.articles.EXPECT().Update(gomock.Any(), "missing", gomock.Any()).Return(nil, services.ErrNotFound)

	w := env.do(jsonRequest(http.MethodPut, "/articles/a1", validArticleJSON, auth))
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(jsonRequest(http.MethodPut, "/articles/missing", validArticleJSON, auth))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteArticlePurgesBlobs(t *testing.T) {
	env := newTestEnv(t)
	auth := env.bearer(t)
	removed := []models.Image{{ID: "i1", Filename: "1-aaaaaaaa.jpg", URL: "/uploads/1-aaaaaaaa.jpg"}}
	env.articles.EXPECT().Delete(gomock.Any(), "a1").Return(removed, nil)
	env.images.EXPECT().CountByFilename(gomock.Any(), removed[0].Filename).Return(int64(0), nil)
	env.blobs.EXPECT().Delete(gomock.Any(), removed[0].Filename).Return(nil)

	w := env.do(jsonRequest(http.MethodDelete, "/articles/a1", "", auth))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"deleted","id":"a1"}`, w.Body.String())
}

func TestDeleteArticleNotFound(t *testing.T) {
	env := newTestEnv(t)
	auth := env.bearer(t)
	env.articles.EXPECT().Delete(gomock.Any(), "missing").Return(nil, services.ErrNotFound)

	w := env.do(jsonRequest(http.MethodDelete, "/articles/missing", "", auth))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportArticle(t *testing.T) {
	env := newTestEnv(t)
	auth := env.bearer(t)
	env.articles.EXPECT().Get(gomock.Any(), "a1").Return(&models.Article{
		ID: "a1", Slug: "conference", Category: "news", TitleEn: "Conference", ContentEn: "Body",
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/articles/a1/export?lang=en&format=toml", nil)
	req.Header.Set("Authorization", auth)
	w := env.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="conference.en.md"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "+++\n"))
	assert.Contains(t, w.Body.String(), "Body")

	req = httptest.NewRequest(http.MethodGet, "/articles/a1/export?lang=fr", nil)
	req.Header.Set("Authorization", auth)
	w = env.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func multipartUpload(t *testing.T, filename, contentType string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if data != nil {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadMedia(t *testing.T) {
	env := newTestEnv(t)
	auth := env.bearer(t)
	png := append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 1024)...)

	env.articles.EXPECT().Exists(gomock.Any(), "a1").Return(true, nil)
	env.processor.EXPECT().ResizeAndReencode(png, 1200, 800, 85).Return([]byte("jpeg-bytes"), nil)
	env.blobs.EXPECT().Put(gomock.Any(), gomock.Any(), []byte("jpeg-bytes"), "image/jpeg").
		DoAndReturn(func(_ any, key string, _ []byte, _ string) (string, error) { return "/uploads/" + key, nil })
	env.images.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

	req := multipartUpload(t, "scan.png", "image/png", png, map[string]string{"articleId": "a1", "alt": "Scan"})
	req.Header.Set("Authorization", auth)
	w := env.do(req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var img models.Image
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &img))
	assert.Equal(t, "scan.png", img.OriginalName)
	assert.Equal(t, "image/jpeg", img.MimeType)
	assert.Equal(t, int64(len("jpeg-bytes")), img.Size)
	require.NotNil(t, img.ArticleID)
	assert.Equal(t, "a1", *img.ArticleID)
	assert.True(t, strings.HasPrefix(img.URL, "/uploads/"))
}

func TestUploadMediaRejections(t *testing.T) {
	cases := []struct {
		name        string
		filename    string
		contentType string
		data        []byte
		message     string
	}{
		{"no file", "", "", nil, "no file"},
		{"text file", "notes.txt", "text/plain", []byte("hello"), "unsupported type"},
		{"six MiB png", "big.png", "image/png", make([]byte, 6<<20), "too large"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			auth := env.bearer(t)

			req := multipartUpload(t, tc.filename, tc.contentType, tc.data, nil)
			req.Header.Set("Authorization", auth)
			w := env.do(req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.message, errorBody(t, w))
		})
	}
}

func TestMediaListAndDelete(t *testing.T) {
	env := newTestEnv(t)
	auth := env.bearer(t)
	img := &models.Image{ID: "i1", Filename: "a.jpg", URL: "/uploads/a.jpg"}
	env.images.EXPECT().List(gomock.Any()).Return([]models.Image{*img}, nil)
	env.images.EXPECT().Delete(gomock.Any(), "i1").Return(img, nil)
	env.images.EXPECT().CountByFilename(gomock.Any(), img.Filename).Return(int64(1), nil)

	req := httptest.NewRequest(http.MethodGet, "/media", nil)
	req.Header.Set("Authorization", auth)
	w := env.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Image
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	req = httptest.NewRequest(http.MethodDelete, "/media/i1", nil)
	req.Header.Set("Authorization", auth)
	w = env.do(req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginSessionFlow(t *testing.T) {
	env := newTestEnv(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	user := *testEditor
	user.PasswordHash = string(hash)
	env.users.EXPECT().FindByEmail(gomock.Any(), "editor@example.org").Return(&user, nil).Times(2)
	env.users.EXPECT().GetByID(gomock.Any(), user.ID).Return(&user, nil)

	w := env.do(jsonRequest(http.MethodPost, "/auth/login", `{"email":"editor@example.org","password":"wrong-horse"}`, ""))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(jsonRequest(http.MethodPost, "/auth/login", `{"email":"editor@example.org","password":"correct-horse"}`, ""))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	var id services.Identity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &id))
	assert.Equal(t, user.ID, id.UserID)
	assert.Equal(t, user.Email, id.Email)
}

func TestStaleSessionFallsBackToBearer(t *testing.T) {
	env := newTestEnv(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	former := models.User{ID: "user-2", Email: "former@example.org", Name: "Former", Role: models.RoleAdmin, Active: true, PasswordHash: string(hash)}
	env.users.EXPECT().FindByEmail(gomock.Any(), former.Email).Return(&former, nil)

	w := env.do(jsonRequest(http.MethodPost, "/auth/login", `{"email":"former@example.org","password":"correct-horse"}`, ""))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	deactivated := former
	deactivated.Active = false
	env.users.EXPECT().GetByID(gomock.Any(), former.ID).Return(&deactivated, nil).Times(2)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = env.do(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", env.bearer(t))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var id services.Identity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &id))
	assert.Equal(t, testEditor.ID, id.UserID)
}

func TestLoginRequiresCredentials(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(jsonRequest(http.MethodPost, "/auth/login", `{"email":"editor@example.org"}`, ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIssueToken(t *testing.T) {
	env := newTestEnv(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	user := *testEditor
	user.PasswordHash = string(hash)
	env.users.EXPECT().FindByEmail(gomock.Any(), "editor@example.org").Return(&user, nil)
	env.users.EXPECT().GetByID(gomock.Any(), user.ID).Return(&user, nil)

	w := env.do(jsonRequest(http.MethodPost, "/auth/token", `{"email":"editor@example.org","password":"correct-horse"}`, ""))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)

	w = env.do(jsonRequest(http.MethodGet, "/auth/me", "", "Bearer "+body.Token))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGithubLoginNotConfigured(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(httptest.NewRequest(http.MethodGet, "/auth/github", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
