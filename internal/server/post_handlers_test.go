package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"bulletinboard/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func countPosts(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.Post{}).Count(&count).Error)
	return count
}

func TestPostCreateTwoPhase(t *testing.T) {
	_, app, db := newTestServer(t)
	admin := seedAccount(t, db, "Admin", "admin@example.com", "secret", models.RoleAdmin)
	cookie := login(t, app, "admin@example.com", "secret")

	// First save stages and renders the read-only confirmation view.
	resp := postForm(t, app, cookie, "/post/create/", url.Values{
		"_save":       {"Save"},
		"title":       {"hello"},
		"description": {"world"},
		"post_status": {"on"},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeJSON(t, resp)
	assert.Equal(t, true, body["confirm"])
	assert.Equal(t, "hello", body["title"])
	assert.Zero(t, countPosts(t, db))

	// Second save commits the staged snapshot and redirects to the list.
	resp = postForm(t, app, cookie, "/post/create/", url.Values{"_save": {"Save"}})
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	var post models.Post
	require.NoError(t, db.First(&post).Error)
	assert.Equal(t, "hello", post.Title)
	assert.Equal(t, models.PostStatusActive, post.Status)
	assert.Equal(t, admin.ID, post.CreatedUserID)
	assert.Equal(t, admin.ID, post.UpdatedUserID)
	require.NotNil(t, post.UserID)
	assert.Equal(t, admin.ID, *post.UserID)
}

func TestPostCreateAlwaysActive(t *testing.T) {
	_, app, db := newTestServer(t)
	seedAccount(t, db, "Admin", "admin@example.com", "secret", models.RoleAdmin)
	cookie := login(t, app, "admin@example.com", "secret")

	// The create form carries no status checkbox; the post comes out active
	// regardless.
	resp := postForm(t, app, cookie, "/post/create/", url.Values{
		"_save":       {"Save"},
		"title":       {"quiet"},
		"description": {"post"},
	})
	body := decodeJSON(t, resp)
	assert.Equal(t, true, body["confirm"])

	resp = postForm(t, app, cookie, "/post/create/", url.Values{"_save": {"Save"}})
	resp.Body.Close()
	require.Equal(t, fiber.StatusFound, resp.StatusCode)

	var post models.Post
	require.NoError(t, db.First(&post).Error)
	assert.Equal(t, models.PostStatusActive, post.Status)
}

func TestPostCreateCommitUsesSnapshotNotResubmittedFields(t *testing.T) {
	_, app, db := newTestServer(t)
	seedAccount(t, db, "Admin", "admin@example.com", "secret", models.RoleAdmin)
	cookie := login(t, app, "admin@example.com", "secret")

	resp := postForm(t, app, cookie, "/post/create/", url.Values{
		"_save": {"Save"}, "title": {"staged title"}, "description": {"staged desc"},
	})
	resp.Body.Close()

	// The commit submit carries different field values; they must be ignored.
	resp = postForm(t, app, cookie, "/post/create/", url.Values{
		"_save": {"Save"}, "title": {"tampered"}, "description": {"tampered"},
	})
	resp.Body.Close()
	require.Equal(t, fiber.StatusFound, resp.StatusCode)

	var post models.Post
	require.NoError(t, db.First(&post).Error)
	assert.Equal(t, "staged title", post.Title)
}

func TestPostCreateCancelClearsStagedSnapshot(t *testing.T) {
	_, app, db := newTestServer(t)
	seedAccount(t, db, "Admin", "admin@example.com", "secret", models.RoleAdmin)
	cookie := login(t, app, "admin@example.com", "secret")

	resp := postForm(t, app, cookie, "/post/create/", url.Values{
		"_save": {"Save"}, "title": {"abandoned"}, "description": {"draft"},
	})
	resp.Body.Close()

	resp = postForm(t, app, cookie, "/post/create/", url.Values{
		"_cancel": {"Cancel"}, "title": {"abandoned"}, "description": {"draft"},
	})
	body := decodeJSON(t, resp)
	assert.Equal(t, false, body["confirm"])

	// After cancel a save is a fresh stage, not a commit.
	resp = postForm(t, app, cookie, "/post/create/", url.Values{
		"_save": {"Save"}, "title": {"second try"}, "description": {"draft"},
	})
	body = decodeJSON(t, resp)
	assert.Equal(t, true, body["confirm"])
	assert.Equal(t, "second try", body["title"])
	assert.Zero(t, countPosts(t, db))
}

func TestPostCreateInvalidSubmitClearsMarkerAndShowsErrors(t *testing.T) {
	_, app, db := newTestServer(t)
	seedAccount(t, db, "Admin", "admin@example.com", "secret", models.RoleAdmin)
	cookie := login(t, app, "admin@example.com", "secret")

	resp := postForm(t, app, cookie, "/post/create/", url.Values{
		"_save": {"Save"}, "title": {""}, "description": {"desc"},
	})
	body := decodeJSON(t, resp)
	assert.Equal(t, false, body["confirm"])
	errs := body["errors"].(map[string]any)
	assert.Equal(t, "Title can't be blank", errs["title"])
	assert.Zero(t, countPosts(t, db))
}

func TestPostEditTwoPhase(t *testing.T) {
	_, app, db := newTestServer(t)
	admin := seedAccount(t, db, "Admin", "admin@example.com", "secret", models.RoleAdmin)
	cookie := login(t, app, "admin@example.com", "secret")

	owner := admin.ID
	post := &models.Post{
		Title: "original", Description: "text", Status: models.PostStatusActive,
		UserID: &owner, CreatedUserID: owner, UpdatedUserID: owner,
	}
	require.NoError(t, db.Create(post).Error)

	// The edit page pre-fills from the stored post.
	page := getWithCookie(t, app, cookie, fmt.Sprintf("/post/%d/", post.ID))
	body := decodeJSON(t, page)
	assert.Equal(t, "original", body["title"])

	resp := postForm(t, app, cookie, fmt.Sprintf("/post/%d/", post.ID), url.Values{
		"_save": {"Save"}, "title": {"edited"}, "description": {"new text"},
	})
	body = decodeJSON(t, resp)
	assert.Equal(t, true, body["confirm"])

	resp = postForm(t, app, cookie, fmt.Sprintf("/post/%d/", post.ID), url.Values{"_save": {"Save"}})
	resp.Body.Close()
	require.Equal(t, fiber.StatusFound, resp.StatusCode)

	var updated models.Post
	require.NoError(t, db.First(&updated, post.ID).Error)
	assert.Equal(t, "edited", updated.Title)
	// Absent checkbox in the staged submit means inactive.
	assert.Equal(t, models.PostStatusInactive, updated.Status)
}

func TestPostEditInvisibleToNonOwner(t *testing.T) {
	_, app, db := newTestServer(t)
	admin := seedAccount(t, db, "Admin", "admin@example.com", "secret", models.RoleAdmin)
	seedAccount(t, db, "Member", "member@example.com", "secret", models.RoleUser)
	cookie := login(t, app, "member@example.com", "secret")

	owner := admin.ID
	post := &models.Post{
		Title: "admin only", Description: "d", Status: models.PostStatusActive,
		UserID: &owner, CreatedUserID: owner, UpdatedUserID: owner,
	}
	require.NoError(t, db.Create(post).Error)

	resp := getWithCookie(t, app, cookie, fmt.Sprintf("/post/%d/", post.ID))
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestPostListScopedAndPaginated(t *testing.T) {
	_, app, db := newTestServer(t)
	admin := seedAccount(t, db, "Admin", "admin@example.com", "secret", models.RoleAdmin)
	member := seedAccount(t, db, "Member", "member@example.com", "secret", models.RoleUser)

	for i := 0; i < 7; i++ {
		owner := admin.ID
		if i%2 == 0 {
			owner = member.ID
		}
		require.NoError(t, db.Create(&models.Post{
			Title: fmt.Sprintf("post %d", i), Description: "d",
			Status: models.PostStatusActive,
			UserID: &owner, CreatedUserID: owner, UpdatedUserID: owner,
		}).Error)
	}

	cookie := login(t, app, "member@example.com", "secret")
	body := decodeJSON(t, getWithCookie(t, app, cookie, "/"))
	assert.Equal(t, float64(4), body["total"])

	cookie = login(t, app, "admin@example.com", "secret")
	body = decodeJSON(t, getWithCookie(t, app, cookie, "/"))
	assert.Equal(t, float64(7), body["total"])
	assert.Equal(t, float64(2), body["total_pages"])
	assert.Len(t, body["posts"].([]any), 5)

	body = decodeJSON(t, getWithCookie(t, app, cookie, "/?page=2"))
	assert.Len(t, body["posts"].([]any), 2)

	// Out-of-range pages clamp to the last page.
	body = decodeJSON(t, getWithCookie(t, app, cookie, "/?page=99"))
	assert.Equal(t, float64(2), body["page_number"])
}

func TestPostDetailResolvesNames(t *testing.T) {
	_, app, db := newTestServer(t)
	admin := seedAccount(t, db, "Admin", "admin@example.com", "secret", models.RoleAdmin)
	cookie := login(t, app, "admin@example.com", "secret")

	owner := admin.ID
	post := &models.Post{
		Title: "detailed", Description: "d", Status: models.PostStatusActive,
		UserID: &owner, CreatedUserID: owner, UpdatedUserID: owner,
	}
	require.NoError(t, db.Create(post).Error)

	body := decodeJSON(t, getWithCookie(t, app, cookie, fmt.Sprintf("/post/detail/?post_id=%d", post.ID)))
	assert.Equal(t, "detailed", body["title"])
	assert.Equal(t, "Admin", body["created_user_name"])
	assert.Equal(t, "Admin", body["updated_user_name"])
}

func TestPostDeleteSoftDeletes(t *testing.T) {
	_, app, db := newTestServer(t)
	admin := seedAccount(t, db, "Admin", "admin@example.com", "secret", models.RoleAdmin)
	cookie := login(t, app, "admin@example.com", "secret")

	owner := admin.ID
	post := &models.Post{
		Title: "doomed", Description: "d", Status: models.PostStatusActive,
		UserID: &owner, CreatedUserID: owner, UpdatedUserID: owner,
	}
	require.NoError(t, db.Create(post).Error)

	resp := getWithCookie(t, app, cookie, fmt.Sprintf("/post/delete/?post_id=%d", post.ID))
	resp.Body.Close()
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)

	var raw models.Post
	require.NoError(t, db.First(&raw, post.ID).Error)
	require.NotNil(t, raw.DeleteUserID)
	assert.Equal(t, admin.ID, *raw.DeleteUserID)

	// Gone from the listing.
	body := decodeJSON(t, getWithCookie(t, app, cookie, "/"))
	assert.Equal(t, float64(0), body["total"])
}
