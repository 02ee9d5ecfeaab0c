package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdm/internal/auth"
	"cdm/internal/cache"
	"cdm/internal/config"
	"cdm/internal/db"
	"cdm/internal/handler"
	"cdm/internal/repository"
	"cdm/internal/service"
	"cdm/internal/storage"
)

type testServer struct {
	e     *echo.Echo
	store *storage.FileSystemStore
	redis *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	gdb, err := db.Open("sqlite", filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	m, err := db.NewMigrator(gdb, "sqlite", nil)
	require.NoError(t, err)
	require.NoError(t, m.Up(ctx))

	cfg := &config.Config{
		JWTSecret:          "router-test-secret-that-is-32-bytes-plus",
		JWTIssuer:          "ChroniqueDesMondes",
		JWTAudience:        "ChroniqueDesMondesWeb",
		JWTExpirationDays:  7,
		CORSAllowedOrigins: []string{"http://localhost:5000"},
		Avatar:             config.AvatarConfig{PublicPath: "/uploads/avatars", MaxDimension: 64},
	}

	store, err := storage.NewFileSystemStore(filepath.Join(t.TempDir(), "avatars"), cfg.Avatar.PublicPath)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	cacheClient := cache.New(mr.Addr(), "", 0, nil)
	t.Cleanup(func() { _ = cacheClient.Close() })

	validator := service.NewValidator()
	repo := repository.NewUserRepository(gdb)
	jwtSvc := auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpirationDays, nil)
	authSvc := service.NewAuthService(repo, lowCostHasher{}, jwtSvc, auth.NewTokenStore(cacheClient), validator, nil)
	profiles := service.NewProfileService(repo, cacheClient, validator, nil)
	avatars := service.NewAvatarService(repo, store, profiles, cfg.Avatar.MaxDimension, nil)

	e := echo.New()
	Register(e, Deps{
		Config:         cfg,
		Validator:      validator,
		AuthService:    authSvc,
		AuthHandler:    handler.NewAuthHandler(authSvc),
		ProfileHandler: handler.NewProfileHandler(profiles, avatars),
		AvatarDir:      store.Dir(),
	})
	return &testServer{e: e, store: store, redis: mr}
}

// lowCostHasher stores passwords behind a plain prefix.
type lowCostHasher struct{}

func (lowCostHasher) Hash(p string) (string, error) { return "plain:" + p, nil }
func (lowCostHasher) Verify(p, h string) bool       { return h == "plain:"+p }

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func (s *testServer) register(t *testing.T, email string) service.AuthResult {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": "Passw0rd!", "confirmPassword": "Passw0rd!", "nickname": "Hero",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res service.AuthResult
	decode(t, rec, &res)
	return res
}

func TestRouter_RegisterLoginFlow(t *testing.T) {
	s := newTestServer(t)

	registered := s.register(t, "alice@example.com")
	assert.NotZero(t, registered.UserID)
	assert.NotEmpty(t, registered.Token)

	// duplicate
	rec := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "alice@example.com", "password": "Passw0rd!", "confirmPassword": "Passw0rd!", "nickname": "Again",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "EMAIL_ALREADY_EXISTS")

	rec = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@example.com", "password": "Passw0rd!"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login service.AuthResult
	decode(t, rec, &login)
	assert.Equal(t, registered.UserID, login.UserID)

	rec = s.do(t, http.MethodGet, "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me handler.MeResponse
	decode(t, rec, &me)
	assert.Equal(t, registered.UserID, me.UserID)
	assert.Equal(t, "alice@example.com", me.Email)
}

func TestRouter_LoginFailuresAreGeneric(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "bob@example.com")

	for _, body := range []map[string]string{
		{"email": "bob@example.com", "password": "Wrong0ne!"},
		{"email": "nobody@example.com", "password": "Passw0rd!"},
	} {
		rec := s.do(t, http.MethodPost, "/api/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"Invalid email or password","code":"INVALID_CREDENTIALS"}`, rec.Body.String())
	}
}

func TestRouter_ValidationEnvelope(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "nope"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error            string              `json:"error"`
		Code             string              `json:"code"`
		ValidationErrors map[string][]string `json:"validationErrors"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "Validation failed", body.Error)
	assert.Equal(t, "VALIDATION_FAILED", body.Code)
	assert.Equal(t, []string{"Invalid email format"}, body.ValidationErrors["email"])
	assert.Contains(t, body.ValidationErrors, "password")
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	for _, token := range []string{"", "garbage"} {
		rec := s.do(t, http.MethodGet, "/api/users/profile", token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
	}
}

func TestRouter_LogoutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	res := s.register(t, "carol@example.com")

	rec := s.do(t, http.MethodPost, "/api/auth/logout", res.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	keys := s.redis.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "blacklist:access_token:"))
	ttl := s.redis.TTL(keys[0])
	assert.Greater(t, ttl, 6*24*time.Hour)
	assert.LessOrEqual(t, ttl, 7*24*time.Hour)

	rec = s.do(t, http.MethodGet, "/api/users/profile", res.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_ProfileCacheInvalidatedOnUpdate(t *testing.T) {
	s := newTestServer(t)
	res := s.register(t, "dora@example.com")

	rec := s.do(t, http.MethodGet, "/api/users/profile", res.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, s.redis.Exists(fmt.Sprintf("profile:%d", res.UserID)))

	rec = s.do(t, http.MethodPut, "/api/users/profile", res.Token, map[string]string{"nickname": "Explorer"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, s.redis.Exists(fmt.Sprintf("profile:%d", res.UserID)))

	rec = s.do(t, http.MethodGet, "/api/users/profile", res.Token, nil)
	var profile service.Profile
	decode(t, rec, &profile)
	assert.Equal(t, "Explorer", profile.Nickname)
}

func TestRouter_ProfileUpdateAndUsernameAvailability(t *testing.T) {
	s := newTestServer(t)
	a := s.register(t, "a@example.com")
	b := s.register(t, "b@example.com")

	rec := s.do(t, http.MethodPut, "/api/users/profile", a.Token, map[string]string{"username": "gandalf", "preferences": `{"lang":"fr"}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var profile service.Profile
	decode(t, rec, &profile)
	require.NotNil(t, profile.Username)
	assert.Equal(t, "gandalf", *profile.Username)

	rec = s.do(t, http.MethodGet, "/api/users/username-available?username=gandalf", a.Token, nil)
	assert.JSONEq(t, `{"username":"gandalf","available":true}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/users/username-available?username=gandalf", b.Token, nil)
	assert.JSONEq(t, `{"username":"gandalf","available":false}`, rec.Body.String())

	rec = s.do(t, http.MethodPut, "/api/users/profile", b.Token, map[string]string{"username": "gandalf"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "USERNAME_TAKEN")

	rec = s.do(t, http.MethodPut, "/api/users/profile", b.Token, map[string]string{"username": "ab"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Username must be between 3 and 30 characters")
}

func avatarRequest(t *testing.T, token, field, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/users/avatar", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	return req
}

func TestRouter_AvatarUpload(t *testing.T) {
	s := newTestServer(t)
	res := s.register(t, "dave@example.com")

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 200, 100))))

	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, avatarRequest(t, res.Token, "avatar", "Me.PNG", img.Bytes()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out handler.AvatarResponse
	decode(t, rec, &out)
	assert.True(t, strings.HasSuffix(out.AvatarURL, "_avatar.png"))

	// served back, downscaled
	get := httptest.NewRecorder()
	s.e.ServeHTTP(get, httptest.NewRequest(http.MethodGet, out.AvatarURL, nil))
	require.Equal(t, http.StatusOK, get.Code)
	cfg, err := png.DecodeConfig(get.Body)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 32, cfg.Height)

	rec = s.do(t, http.MethodGet, "/api/users/profile", res.Token, nil)
	var profile service.Profile
	decode(t, rec, &profile)
	require.NotNil(t, profile.AvatarURL)
	assert.Equal(t, out.AvatarURL, *profile.AvatarURL)
}

func TestRouter_AvatarRejections(t *testing.T) {
	s := newTestServer(t)
	res := s.register(t, "erin@example.com")

	tests := []struct {
		name     string
		field    string
		filename string
		data     []byte
		message  string
	}{
		{"bad extension", "avatar", "me.gif", []byte("GIF89a"), "Invalid file format. Allowed formats: .jpg, .jpeg, .png"},
		{"too large", "avatar", "me.png", make([]byte, service.MaxAvatarSize+1), "File size exceeds maximum limit of 2MB"},
		{"empty", "avatar", "me.png", nil, "No file provided"},
		{"other field name still accepted", "file", "me.bmp", []byte("BM"), "Invalid file format. Allowed formats: .jpg, .jpeg, .png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.e.ServeHTTP(rec, avatarRequest(t, res.Token, tt.field, tt.filename, tt.data))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
		})
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not Found"}`, rec.Body.String())
}
