package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/resume-builder/internal/auth"
	"github.com/justsurfingit/resume-builder/internal/config"
	"github.com/justsurfingit/resume-builder/internal/database"
	"github.com/justsurfingit/resume-builder/internal/metrics"
	"github.com/justsurfingit/resume-builder/internal/services"
	"github.com/justsurfingit/resume-builder/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(t *testing.T, perMinute int) *gin.Engine {
	t.Helper()
	return mustRouter(t, testDeps(t, perMinute))
}

func mustRouter(t *testing.T, d Deps) *gin.Engine {
	t.Helper()
	r, err := NewRouter(d)
	require.NoError(t, err)
	return r
}

func testDeps(t *testing.T, perMinute int) Deps {
	t.Helper()

	log := zap.NewNop()
	db, err := database.Connect("sqlite", filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.App.URL = "http://localhost:3000"
	cfg.App.Secret = testSecret

	grants := auth.NewSigner(testSecret)
	storageService := services.NewStorageService(store, cfg.App.URL, log)
	render, err := services.NewRenderService()
	require.NoError(t, err)

	return Deps{
		DB:                 db,
		AppURL:             cfg.App.URL,
		Resumes:            services.NewResumeService(db, grants, log),
		Auth:               services.NewAuthService(db, cfg, services.NewEmailService(nil, "me", log), storageService, grants, log),
		Storage:            storageService,
		Render:             render,
		Printer:            services.NewPrinterService(false, "", "", log),
		LLM:                &services.LLMService{Log: log},
		Metrics:            metrics.New(),
		Log:                log,
		RateLimitPerMinute: perMinute,
	}
}

type request struct {
	method  string
	path    string
	body    any
	token   string
	headers map[string]string
	cookies []*http.Cookie
}

func do(r *gin.Engine, req request) *httptest.ResponseRecorder {
	var body io.Reader
	switch b := req.body.(type) {
	case nil:
	case string:
		body = strings.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		body = bytes.NewReader(raw)
	}
	httpReq := httptest.NewRequest(req.method, req.path, body)
	if _, ok := req.body.(string); !ok && req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}
	for _, c := range req.cookies {
		httpReq.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httpReq)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type sessionBody struct {
	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
	Session struct {
		Token string `json:"token"`
	} `json:"session"`
}

type errorBody struct {
	Error string         `json:"error"`
	Code  string         `json:"code"`
	Data  map[string]any `json:"data"`
}

type resumeBody struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	IsPublic bool   `json:"is_public"`
	IsLocked bool   `json:"is_locked"`
}

func registerUser(t *testing.T, r *gin.Engine, username string) sessionBody {
	t.Helper()

	rec := do(r, request{method: http.MethodPost, path: "/api/v1/auth/register", body: gin.H{
		"name":     "Test " + username,
		"username": username,
		"email":    username + "@example.com",
		"password": "password1",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[sessionBody](t, rec)
}

func createResume(t *testing.T, r *gin.Engine, token, name string) resumeBody {
	t.Helper()

	rec := do(r, request{method: http.MethodPost, path: "/api/v1/resumes", token: token, body: gin.H{"name": name}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[resumeBody](t, rec)
}

func TestAuthRoutes(t *testing.T) {
	r := setupRouter(t, 10)
	s := registerUser(t, r, "ada")

	t.Run("should resolve the session from the bearer token", func(t *testing.T) {
		rec := do(r, request{method: http.MethodGet, path: "/api/v1/auth/session", token: s.Session.Token})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ada", decode[sessionBody](t, rec).User.Username)
	})

	t.Run("should reject anonymous requests", func(t *testing.T) {
		rec := do(r, request{method: http.MethodGet, path: "/api/v1/auth/session"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", decode[errorBody](t, rec).Code)
	})

	t.Run("should reject duplicate usernames", func(t *testing.T) {
		rec := do(r, request{method: http.MethodPost, path: "/api/v1/auth/register", body: gin.H{
			"name": "Other", "username": "ada", "email": "other@example.com", "password": "password1",
		}})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "USERNAME_ALREADY_EXISTS", decode[errorBody](t, rec).Code)
	})

	t.Run("should reject invalid request bodies", func(t *testing.T) {
		rec := do(r, request{method: http.MethodPost, path: "/api/v1/auth/login", body: gin.H{"identifier": "ada"}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("should reject a wrong password", func(t *testing.T) {
		rec := do(r, request{method: http.MethodPost, path: "/api/v1/auth/login", body: gin.H{"identifier": "ada", "password": "nope"}})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "INVALID_CREDENTIALS", decode[errorBody](t, rec).Code)
	})

	t.Run("should log in with a cookie and log out", func(t *testing.T) {
		rec := do(r, request{method: http.MethodPost, path: "/api/v1/auth/login", body: gin.H{"identifier": "ada@example.com", "password": "password1"}})
		require.Equal(t, http.StatusOK, rec.Code)

		var cookie *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == SessionCookie {
				cookie = c
			}
		}
		require.NotNil(t, cookie)
		assert.True(t, cookie.HttpOnly)

		rec = do(r, request{method: http.MethodGet, path: "/api/v1/auth/session", cookies: []*http.Cookie{cookie}})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = do(r, request{method: http.MethodPost, path: "/api/v1/auth/logout", cookies: []*http.Cookie{cookie}})
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = do(r, request{method: http.MethodGet, path: "/api/v1/auth/session", cookies: []*http.Cookie{cookie}})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("should authenticate with an api key", func(t *testing.T) {
		rec := do(r, request{method: http.MethodPost, path: "/api/v1/auth/api-keys", token: s.Session.Token, body: gin.H{"name": "ci"}})
		require.Equal(t, http.StatusCreated, rec.Code)
		key := decode[map[string]any](t, rec)["key"].(string)

		rec = do(r, request{method: http.MethodGet, path: "/api/v1/resumes", headers: map[string]string{APIKeyHeader: key}})
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = do(r, request{method: http.MethodGet, path: "/api/v1/resumes", headers: map[string]string{APIKeyHeader: "rr_invalid"}})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("should list the credential provider", func(t *testing.T) {
		rec := do(r, request{method: http.MethodGet, path: "/api/v1/auth/providers"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "credential")
	})
}

func TestResumeRoutes(t *testing.T) {
	r := setupRouter(t, 10)
	ada := registerUser(t, r, "ada")
	grace := registerUser(t, r, "grace")
	res := createResume(t, r, ada.Session.Token, "My CV")

	t.Run("should list the created resume", func(t *testing.T) {
		rec := do(r, request{method: http.MethodGet, path: "/api/v1/resumes", token: ada.Session.Token})
		require.Equal(t, http.StatusOK, rec.Code)
		list := decode[[]resumeBody](t, rec)
		require.Len(t, list, 1)
		assert.Equal(t, "my-cv", list[0].Slug)
	})

	t.Run("should reject a taken slug", func(t *testing.T) {
		rec := do(r, request{method: http.MethodPost, path: "/api/v1/resumes", token: ada.Session.Token, body: gin.H{"name": "My CV"}})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "RESUME_SLUG_ALREADY_EXISTS", decode[errorBody](t, rec).Code)
	})

	t.Run("should hide resumes of other users", func(t *testing.T) {
		rec := do(r, request{method: http.MethodGet, path: "/api/v1/resumes/" + res.ID, token: grace.Session.Token})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "NOT_FOUND", decode[errorBody](t, rec).Code)
	})

	t.Run("should report invalid resume data", func(t *testing.T) {
		rec := do(r, request{method: http.MethodPut, path: "/api/v1/resumes/" + res.ID + "/data", token: ada.Session.Token,
			body: gin.H{"metadata": gin.H{"layout": gin.H{"sidebarWidth": 30, "pages": []gin.H{{"main": []string{"nope"}, "sidebar": []string{}}}}}}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode[errorBody](t, rec)
		assert.Equal(t, "INVALID_RESUME_DATA", body.Code)
		assert.NotEmpty(t, body.Data["problems"])
	})

	t.Run("should move sections and add pages", func(t *testing.T) {
		rec := do(r, request{method: http.MethodPost, path: "/api/v1/resumes/" + res.ID + "/layout/pages", token: ada.Session.Token})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = do(r, request{method: http.MethodPost, path: "/api/v1/resumes/" + res.ID + "/layout/move", token: ada.Session.Token,
			body: gin.H{"section_id": "skills", "page": 1, "column": "main"}})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = do(r, request{method: http.MethodDelete, path: "/api/v1/resumes/" + res.ID + "/layout/pages/x", token: ada.Session.Token})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("should render the preview", func(t *testing.T) {
		rec := do(r, request{method: http.MethodGet, path: "/api/v1/resumes/" + res.ID + "/preview", token: ada.Session.Token})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	})

	t.Run("should answer 501 while printing is disabled", func(t *testing.T) {
		rec := do(r, request{method: http.MethodGet, path: "/api/v1/resumes/" + res.ID + "/pdf", token: ada.Session.Token})
		assert.Equal(t, http.StatusNotImplemented, rec.Code)
		assert.Equal(t, "DISABLED", decode[errorBody](t, rec).Code)
	})

	t.Run("should refuse changes to locked resumes", func(t *testing.T) {
		rec := do(r, request{method: http.MethodPost, path: "/api/v1/resumes/" + res.ID + "/lock", token: ada.Session.Token, body: gin.H{"is_locked": true}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decode[resumeBody](t, rec).IsLocked)

		rec = do(r, request{method: http.MethodPatch, path: "/api/v1/resumes/" + res.ID, token: ada.Session.Token, body: gin.H{"name": "New"}})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "RESUME_LOCKED", decode[errorBody](t, rec).Code)
	})

	t.Run("should duplicate without a body", func(t *testing.T) {
		rec := do(r, request{method: http.MethodPost, path: "/api/v1/resumes/" + res.ID + "/duplicate", token: ada.Session.Token})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, "my-cv-copy", decode[resumeBody](t, rec).Slug)
	})

	t.Run("should import a v4 export", func(t *testing.T) {
		rec := do(r, request{method: http.MethodPost, path: "/api/v1/imports", token: ada.Session.Token,
			body: gin.H{"name": "Old", "data": gin.H{"basics": gin.H{"name": "Ada"}}}})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, "old", decode[resumeBody](t, rec).Slug)
	})

	t.Run("should list templates", func(t *testing.T) {
		rec := do(r, request{method: http.MethodGet, path: "/api/v1/templates", token: ada.Session.Token})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]map[string]any](t, rec), 12)
	})

	t.Run("should answer 501 while the assistant is disabled", func(t *testing.T) {
		rec := do(r, request{method: http.MethodPost, path: "/api/v1/ai/improve", token: ada.Session.Token, body: gin.H{"action": "improve", "text": "hello"}})
		assert.Equal(t, http.StatusNotImplemented, rec.Code)
	})
}

func TestPublicViewer(t *testing.T) {
	r := setupRouter(t, 10)
	ada := registerUser(t, r, "ada")
	res := createResume(t, r, ada.Session.Token, "CV")

	rec := do(r, request{method: http.MethodPatch, path: "/api/v1/resumes/" + res.ID, token: ada.Session.Token,
		body: gin.H{"is_public": true, "password": "secret1"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	t.Run("should ask for the password in json", func(t *testing.T) {
		rec := do(r, request{method: http.MethodGet, path: "/api/v1/public/ada/cv"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decode[errorBody](t, rec)
		assert.Equal(t, "NEED_PASSWORD", body.Code)
		assert.Equal(t, "ada", body.Data["username"])
		assert.Equal(t, "cv", body.Data["slug"])
	})

	t.Run("should let the owner through", func(t *testing.T) {
		rec := do(r, request{method: http.MethodGet, path: "/api/v1/public/ada/cv", token: ada.Session.Token})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("should redirect the viewer to the password form", func(t *testing.T) {
		rec := do(r, request{method: http.MethodGet, path: "/r/ada/cv"})
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/auth/resume-password?redirect=%2Fr%2Fada%2Fcv", rec.Header().Get("Location"))
	})

	t.Run("should only accept viewer redirects", func(t *testing.T) {
		rec := do(r, request{method: http.MethodGet, path: "/auth/resume-password?redirect=" + url.QueryEscape("https://evil.example")})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(r, request{method: http.MethodGet, path: "/auth/resume-password?redirect=" + url.QueryEscape("/r/ada/cv")})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `name="password"`)
	})

	form := func(password string) request {
		return request{
			method:  http.MethodPost,
			path:    "/auth/resume-password",
			body:    url.Values{"redirect": {"/r/ada/cv"}, "password": {password}}.Encode(),
			headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		}
	}

	t.Run("should reject a wrong password", func(t *testing.T) {
		rec := do(r, form("wrong"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Incorrect password")
	})

	t.Run("should unlock the resume and count the view", func(t *testing.T) {
		rec := do(r, form("secret1"))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/r/ada/cv", rec.Header().Get("Location"))
		cookies := rec.Result().Cookies()
		require.NotEmpty(t, cookies)

		rec = do(r, request{method: http.MethodGet, path: "/r/ada/cv", cookies: cookies})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

		rec = do(r, request{method: http.MethodGet, path: "/api/v1/resumes/" + res.ID + "/statistics", token: ada.Session.Token})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 1, decode[map[string]any](t, rec)["views"])
	})

	t.Run("should report unknown resumes", func(t *testing.T) {
		rec := do(r, request{method: http.MethodGet, path: "/r/ada/missing"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func noisePNG(t *testing.T, w, h int) []byte {
	t.Helper()

	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUploadRoutes(t *testing.T) {
	r := setupRouter(t, 10)
	ada := registerUser(t, r, "ada")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "me.png")
	require.NoError(t, err)
	_, err = part.Write(noisePNG(t, 300, 300))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := do(r, request{
		method:  http.MethodPost,
		path:    "/api/v1/storage/images",
		body:    body.String(),
		token:   ada.Session.Token,
		headers: map[string]string{"Content-Type": mw.FormDataContentType()},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	link := decode[map[string]string](t, rec)["url"]
	require.True(t, strings.HasPrefix(link, "http://localhost:3000/uploads/"+ada.User.ID+"/"))
	path := strings.TrimPrefix(link, "http://localhost:3000")

	t.Run("should serve uploads with cache and security headers", func(t *testing.T) {
		rec := do(r, request{method: http.MethodGet, path: path})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
		etag := rec.Header().Get("ETag")
		require.NotEmpty(t, etag)

		rec = do(r, request{method: http.MethodGet, path: path, headers: map[string]string{"If-None-Match": etag}})
		assert.Equal(t, http.StatusNotModified, rec.Code)
	})

	t.Run("should refuse suspicious paths", func(t *testing.T) {
		rec := do(r, request{method: http.MethodGet, path: "/uploads/" + ada.User.ID + "/.hidden"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("should delete the upload", func(t *testing.T) {
		filename := path[strings.LastIndex(path, "/")+1:]
		rec := do(r, request{method: http.MethodDelete, path: "/api/v1/storage/files/" + filename, token: ada.Session.Token})
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = do(r, request{method: http.MethodGet, path: path})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestResumePasswordRateLimit(t *testing.T) {
	r := setupRouter(t, 2)
	body := gin.H{"username": "nobody", "slug": "cv", "password": "secret1"}

	for range 2 {
		rec := do(r, request{method: http.MethodPost, path: "/api/v1/auth/resume-password", body: body})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
	rec := do(r, request{method: http.MethodPost, path: "/api/v1/auth/resume-password", body: body})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestOAuthRoutes(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"tok","token_type":"bearer"}`)
		case "/user":
			fmt.Fprint(w, `{"id":7,"login":"octo","email":"octo@example.com","name":"Octo"}`)
		}
	}))
	defer provider.Close()

	d := testDeps(t, 10)
	gh := auth.NewGitHubProvider("id", "secret", "http://localhost:3000/api/v1/auth/oauth/github/callback")
	gh.Config.Endpoint = oauth2.Endpoint{AuthURL: provider.URL + "/auth", TokenURL: provider.URL + "/token"}
	gh.ProfileURL = provider.URL + "/user"
	d.Auth.Providers["github"] = gh
	r := mustRouter(t, d)

	start := func(t *testing.T) (string, *http.Cookie) {
		t.Helper()
		rec := do(r, request{method: http.MethodGet, path: "/api/v1/auth/oauth/github"})
		require.Equal(t, http.StatusFound, rec.Code)
		consent, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)

		var cookie *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == "oauth_state" {
				cookie = c
			}
		}
		require.NotNil(t, cookie)
		assert.True(t, cookie.HttpOnly)
		state := consent.Query().Get("state")
		require.Equal(t, state, cookie.Value)
		return state, cookie
	}
	callback := func(state string) string {
		return "/api/v1/auth/oauth/github/callback?code=abc&state=" + url.QueryEscape(state)
	}

	t.Run("should refuse a callback without the state cookie", func(t *testing.T) {
		state, _ := start(t)
		rec := do(r, request{method: http.MethodGet, path: callback(state)})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_CODE", decode[errorBody](t, rec).Code)
	})

	t.Run("should refuse a state started by another browser", func(t *testing.T) {
		attackerState, _ := start(t)
		_, victimCookie := start(t)
		rec := do(r, request{method: http.MethodGet, path: callback(attackerState), cookies: []*http.Cookie{victimCookie}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("should sign in when the state matches the cookie", func(t *testing.T) {
		state, cookie := start(t)
		rec := do(r, request{method: http.MethodGet, path: callback(state), cookies: []*http.Cookie{cookie}})
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

		var session *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == SessionCookie {
				session = c
			}
		}
		require.NotNil(t, session)
		assert.NotEmpty(t, session.Value)
	})
}

func TestRateLimitClientAddress(t *testing.T) {
	body := gin.H{"username": "nobody", "slug": "cv", "password": "secret1"}
	attempt := func(r *gin.Engine, i int) int {
		return do(r, request{
			method:  http.MethodPost,
			path:    "/api/v1/auth/resume-password",
			body:    body,
			headers: map[string]string{"X-Forwarded-For": fmt.Sprintf("10.0.0.%d", i)},
		}).Code
	}

	t.Run("should ignore forwarded addresses from untrusted peers", func(t *testing.T) {
		r := setupRouter(t, 2)
		limited := 0
		for i := range 20 {
			if attempt(r, i) == http.StatusTooManyRequests {
				limited++
			}
		}
		assert.Equal(t, 18, limited)
	})

	t.Run("should key on the forwarded address behind a trusted proxy", func(t *testing.T) {
		d := testDeps(t, 2)
		// httptest requests come from 192.0.2.1
		d.TrustedProxies = []string{"192.0.2.0/24"}
		r := mustRouter(t, d)
		for i := range 5 {
			assert.Equal(t, http.StatusNotFound, attempt(r, i))
		}
	})

	t.Run("should refuse malformed proxy entries", func(t *testing.T) {
		d := testDeps(t, 2)
		d.TrustedProxies = []string{"not-an-ip"}
		_, err := NewRouter(d)
		assert.Error(t, err)
	})
}

func TestHealthChecksIndependently(t *testing.T) {
	type healthBody struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}

	t.Run("should keep a healthy database when storage fails", func(t *testing.T) {
		d := testDeps(t, 10)
		require.NoError(t, os.RemoveAll(d.Storage.Store.(*storage.Local).Root))
		r := mustRouter(t, d)

		rec := do(r, request{method: http.MethodGet, path: "/api/health"})
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decode[healthBody](t, rec)
		assert.Equal(t, "unhealthy", body.Status)
		assert.Equal(t, map[string]string{"database": "healthy", "storage": "unhealthy"}, body.Checks)
	})

	t.Run("should keep healthy storage when the database is down", func(t *testing.T) {
		d := testDeps(t, 10)
		require.NoError(t, database.Close(d.DB))
		r := mustRouter(t, d)

		rec := do(r, request{method: http.MethodGet, path: "/api/health"})
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, map[string]string{"database": "unhealthy", "storage": "healthy"}, decode[healthBody](t, rec).Checks)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	r := setupRouter(t, 10)

	rec := do(r, request{method: http.MethodGet, path: "/api/health"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]any](t, rec)["status"])

	rec = do(r, request{method: http.MethodGet, path: "/metrics"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/health"`)
}
