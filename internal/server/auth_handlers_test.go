package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"bulletinboard/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnauthenticatedRedirectsToLoginWithNext(t *testing.T) {
	_, app, _ := newTestServer(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/users/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/accounts/login/?next="+url.QueryEscape("/users/"), resp.Header.Get("Location"))
}

func TestLoginSuccessRedirectsToRoot(t *testing.T) {
	_, app, db := newTestServer(t)
	seedAccount(t, db, "Alice", "alice@example.com", "secret", models.RoleAdmin)

	cookie := login(t, app, "alice@example.com", "secret")
	require.NotNil(t, cookie)

	resp := getWithCookie(t, app, cookie, "/")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, `"page":"post-list"`)
}

func TestLoginWrongPasswordMessage(t *testing.T) {
	_, app, db := newTestServer(t)
	seedAccount(t, db, "Alice", "alice@example.com", "secret", models.RoleAdmin)

	resp := postForm(t, app, nil, "/accounts/login/", url.Values{
		"email":    {"alice@example.com"},
		"password": {"wrong"},
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Email and Password does not match.")
}

func TestLoginUnknownEmailMessage(t *testing.T) {
	_, app, _ := newTestServer(t)

	resp := postForm(t, app, nil, "/accounts/login/", url.Values{
		"email":    {"ghost@example.com"},
		"password": {"secret"},
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Email does not exist or deleted")
}

func TestLoginHonorsNextParameter(t *testing.T) {
	_, app, db := newTestServer(t)
	seedAccount(t, db, "Alice", "alice@example.com", "secret", models.RoleAdmin)

	form := url.Values{"email": {"alice@example.com"}, "password": {"secret"}}
	req := httptest.NewRequest(http.MethodPost, "/accounts/login/?next=%2Fusers%2F", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/users/", resp.Header.Get("Location"))
}

func TestSignupAutoLoginAndFlash(t *testing.T) {
	_, app, db := newTestServer(t)

	resp := postForm(t, app, nil, "/accounts/register/", url.Values{
		"email":            {"carol@example.com"},
		"name":             {"Carol"},
		"password":         {"secret"},
		"password_confirm": {"secret"},
	})
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "bb_session" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	// The flash message shows once on the post list, then disappears.
	list := getWithCookie(t, app, cookie, "/")
	assert.Contains(t, readBody(t, list), "User signup successful.")
	again := getWithCookie(t, app, cookie, "/")
	assert.NotContains(t, readBody(t, again), "User signup successful.")

	var user models.User
	require.NoError(t, db.Where("email = ?", "carol@example.com").First(&user).Error)
	assert.Equal(t, models.RoleUser, user.Type)
}

func TestSignupValidationErrors(t *testing.T) {
	_, app, _ := newTestServer(t)

	resp := postForm(t, app, nil, "/accounts/register/", url.Values{
		"email":            {"carol@example.com"},
		"name":             {"Carol"},
		"password":         {"secret"},
		"password_confirm": {"other"},
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "password and password confirmation must be match.")
}

func TestSignupDuplicateEmailConflict(t *testing.T) {
	_, app, db := newTestServer(t)
	seedAccount(t, db, "Carol", "carol@example.com", "secret", models.RoleUser)

	resp := postForm(t, app, nil, "/accounts/register/", url.Values{
		"email":            {"carol@example.com"},
		"name":             {"Carol Again"},
		"password":         {"secret"},
		"password_confirm": {"secret"},
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "email already exists")

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("email = ?", "carol@example.com").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestLogoutDestroysSession(t *testing.T) {
	_, app, db := newTestServer(t)
	seedAccount(t, db, "Alice", "alice@example.com", "secret", models.RoleAdmin)
	cookie := login(t, app, "alice@example.com", "secret")

	resp := getWithCookie(t, app, cookie, "/accounts/logout/")
	resp.Body.Close()
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)

	// The old cookie no longer opens a session.
	after := getWithCookie(t, app, cookie, "/")
	defer after.Body.Close()
	assert.Equal(t, fiber.StatusFound, after.StatusCode)
	assert.Contains(t, after.Header.Get("Location"), "/accounts/login/")
}

func TestPasswordResetFlow(t *testing.T) {
	_, app, db := newTestServer(t)
	seedAccount(t, db, "Eve", "eve@example.com", "oldpass", models.RoleUser)
	cookie := login(t, app, "eve@example.com", "oldpass")

	// Wrong current password surfaces the field error.
	resp := postForm(t, app, cookie, "/password-reset/", url.Values{
		"password":            {"nope"},
		"new_password":        {"newpass"},
		"new_password_confirm": {"newpass"},
	})
	assert.Contains(t, readBody(t, resp), "Current password is wrong!")

	resp = postForm(t, app, cookie, "/password-reset/", url.Values{
		"password":            {"oldpass"},
		"new_password":        {"newpass"},
		"new_password_confirm": {"newpass"},
	})
	resp.Body.Close()
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/users/", resp.Header.Get("Location"))

	// Old password is gone, new one works.
	badResp := postForm(t, app, nil, "/accounts/login/", url.Values{
		"email": {"eve@example.com"}, "password": {"oldpass"},
	})
	assert.Contains(t, readBody(t, badResp), "Email and Password does not match.")
	login(t, app, "eve@example.com", "newpass")
}

func TestDeletedAccountCannotLogin(t *testing.T) {
	s, app, db := newTestServer(t)
	user := seedAccount(t, db, "Bob", "bob@example.com", "secret", models.RoleUser)

	require.NoError(t, s.userService.DeleteUserRecord(
		context.Background(),
		models.Caller{ID: 1, Role: models.RoleAdmin}, user.ID))

	resp := postForm(t, app, nil, "/accounts/login/", url.Values{
		"email": {"bob@example.com"}, "password": {"secret"},
	})
	assert.Contains(t, readBody(t, resp), "Email does not exist or deleted")
}
