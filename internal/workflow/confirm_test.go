package workflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"bulletinboard/internal/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runInSession executes fn inside a fiber handler with a live session so the
// workflow helpers see the same environment they do in production handlers.
func runInSession(t *testing.T, fn func(sess *session.Session)) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	store := session.NewStore(rdb, "test-secret")

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		sess, err := store.Load(c)
		require.NoError(t, err)
		fn(sess)
		return c.SendStatus(http.StatusOK)
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	resp.Body.Close()
}

func TestStageAndLoadPostDraft(t *testing.T) {
	runInSession(t, func(sess *session.Session) {
		assert.Nil(t, Load(sess, PostKey))

		draft := PostDraft{Title: "hello", Description: "world", Status: "1"}
		require.NoError(t, Stage(sess, PostKey, draft, ""))

		st := Load(sess, PostKey)
		require.NotNil(t, st)
		assert.True(t, st.Confirmed)

		got, err := Snapshot[PostDraft](st)
		require.NoError(t, err)
		assert.Equal(t, draft, got)
	})
}

func TestStageReplacesPreviousSnapshot(t *testing.T) {
	runInSession(t, func(sess *session.Session) {
		require.NoError(t, Stage(sess, PostKey, PostDraft{Title: "first", Description: "one", Status: "1"}, ""))
		require.NoError(t, Stage(sess, PostKey, PostDraft{Title: "second", Description: "two", Status: "0"}, ""))

		st := Load(sess, PostKey)
		require.NotNil(t, st)
		got, err := Snapshot[PostDraft](st)
		require.NoError(t, err)
		assert.Equal(t, "second", got.Title)
		assert.Equal(t, "0", got.Status)
	})
}

func TestClearDropsStagedEdit(t *testing.T) {
	runInSession(t, func(sess *session.Session) {
		require.NoError(t, Stage(sess, UserKey, UserDraft{Name: "Alice", Email: "a@b.co", Type: "1"}, "alice.png"))
		st := Load(sess, UserKey)
		require.NotNil(t, st)
		assert.Equal(t, "alice.png", st.StagedFile)

		Clear(sess, UserKey)
		assert.Nil(t, Load(sess, UserKey))
	})
}

func TestPostAndUserKeysAreIndependent(t *testing.T) {
	runInSession(t, func(sess *session.Session) {
		require.NoError(t, Stage(sess, PostKey, PostDraft{Title: "t", Description: "d", Status: "1"}, ""))
		require.NoError(t, Stage(sess, UserKey, UserDraft{Name: "n", Email: "n@e.co", Type: "0"}, ""))

		Clear(sess, PostKey)
		assert.Nil(t, Load(sess, PostKey))
		assert.NotNil(t, Load(sess, UserKey))
	})
}

func TestStagedStateSurvivesSave(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	store := session.NewStore(rdb, "test-secret")

	app := fiber.New()
	app.Get("/stage", func(c *fiber.Ctx) error {
		sess, err := store.Load(c)
		require.NoError(t, err)
		require.NoError(t, Stage(sess, PostKey, PostDraft{Title: "persisted", Description: "d", Status: "1"}, ""))
		require.NoError(t, sess.Save(context.Background()))
		return c.SendStatus(http.StatusOK)
	})
	app.Get("/commit", func(c *fiber.Ctx) error {
		sess, err := store.Load(c)
		require.NoError(t, err)
		st := Load(sess, PostKey)
		require.NotNil(t, st)
		got, err := Snapshot[PostDraft](st)
		require.NoError(t, err)
		assert.Equal(t, "persisted", got.Title)
		return c.SendStatus(http.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/stage", nil))
	require.NoError(t, err)
	resp.Body.Close()
	require.Len(t, resp.Cookies(), 1)
	cookie := resp.Cookies()[0]

	req := httptest.NewRequest("GET", "/commit", nil)
	req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	resp2, err := app.Test(req)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}
