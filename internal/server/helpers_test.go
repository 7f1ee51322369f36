package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"bulletinboard/internal/config"
	"bulletinboard/internal/models"
	"bulletinboard/internal/repository"
	"bulletinboard/internal/service"
	"bulletinboard/internal/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestServer wires a Server against an in-memory database and Redis, with
// routes registered on a fresh app.
func newTestServer(t *testing.T) (*Server, *fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.Config{
		JWTSecret:    "test-secret",
		Env:          "test",
		UploadTmpDir: t.TempDir(),
		UploadDir:    t.TempDir(),
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	upload := service.NewUploadService(cfg)

	s := &Server{
		config:        cfg,
		db:            db,
		redis:         rdb,
		sessions:      session.NewStore(rdb, cfg.JWTSecret),
		userRepo:      userRepo,
		postRepo:      postRepo,
		uploadService: upload,
		postService:   service.NewPostService(postRepo, userRepo),
		userService:   service.NewUserService(userRepo, upload),
	}

	app := fiber.New()
	s.SetupRoutes(app)
	return s, app, db
}

func seedAccount(t *testing.T, db *gorm.DB, name, email, password string, role models.Role) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		Name:     name,
		Email:    email,
		Password: string(hash),
		Type:     role,
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// login authenticates through the real endpoint and returns the session
// cookie for subsequent requests.
func login(t *testing.T, app *fiber.App, email, password string) *http.Cookie {
	t.Helper()
	form := url.Values{"email": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/accounts/login/", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusFound, resp.StatusCode)

	for _, cookie := range resp.Cookies() {
		if cookie.Name == session.CookieName {
			return cookie
		}
	}
	t.Fatal("login response carried no session cookie")
	return nil
}

// postForm submits an urlencoded form with the session cookie attached.
func postForm(t *testing.T, app *fiber.App, cookie *http.Cookie, path string, form url.Values) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func getWithCookie(t *testing.T, app *fiber.App, cookie *http.Cookie, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}
