package server

import (
	"strconv"

	"bulletinboard/internal/models"
	"bulletinboard/internal/session"
	"bulletinboard/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// Form intent keys. Presence of the key decides the workflow transition, the
// value is irrelevant.
const (
	intentSave   = "_save"
	intentCancel = "_cancel"
)

// sessionFrom returns the session resolved by AuthRequired.
func sessionFrom(c *fiber.Ctx) *session.Session {
	return c.Locals("session").(*session.Session)
}

// callerFrom returns the caller identity resolved by AuthRequired.
func callerFrom(c *fiber.Ctx) models.Caller {
	return c.Locals("caller").(models.Caller)
}

// currentUserFrom returns the full account record resolved by AuthRequired.
func currentUserFrom(c *fiber.Ctx) *models.User {
	return c.Locals("currentUser").(*models.User)
}

// formHas reports whether the posted form carries the named key, regardless
// of value. Works for both urlencoded and multipart bodies.
func formHas(c *fiber.Ctx, key string) bool {
	if c.Request().PostArgs().Has(key) {
		return true
	}
	form, err := c.MultipartForm()
	if err != nil {
		return false
	}
	_, ok := form.Value[key]
	return ok
}

// queryID parses a numeric query parameter, returning 0 when missing or not
// a number.
func queryID(c *fiber.Ctx, name string) uint {
	id, err := strconv.ParseUint(c.Query(name), 10, 32)
	if err != nil {
		return 0
	}
	return uint(id)
}

// paramID parses a numeric path parameter.
func paramID(c *fiber.Ctx, name string) uint {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil {
		return 0
	}
	return uint(id)
}

// formPage parses the page number from either the form body or the query
// string, defaulting to 1.
func formPage(c *fiber.Ctx) int {
	raw := c.FormValue("page")
	if raw == "" {
		raw = c.Query("page")
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// renderForm responds with the page payload of a form view: the echoed field
// values, any validation errors, and whether the view is the read-only
// confirmation step.
func renderForm(c *fiber.Ctx, status int, payload fiber.Map, errors validation.FieldErrors) error {
	if len(errors) > 0 {
		payload["errors"] = errors
	}
	return c.Status(status).JSON(payload)
}
