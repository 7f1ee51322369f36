package server

import (
	"bulletinboard/internal/models"
	"bulletinboard/internal/service"
	"bulletinboard/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// LoginPage renders the empty login form.
func (s *Server) LoginPage(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"page": "login",
		"next": c.Query("next"),
	})
}

// Login authenticates the posted credentials and opens a session. Success
// redirects to the next target or the post list; failure re-renders the form
// with a flash-style message.
func (s *Server) Login(c *fiber.Ctx) error {
	var form validation.LoginForm
	if err := c.BodyParser(&form); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if errs := form.Validate(); !errs.OK() {
		return renderForm(c, fiber.StatusOK, fiber.Map{
			"page":  "login",
			"email": form.Email,
		}, errs)
	}

	user, msg, err := s.userService.Authenticate(c.Context(), form.Email, form.Password)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	if msg != "" {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"page":    "login",
			"email":   form.Email,
			"message": msg,
		})
	}

	sess, err := s.sessions.Load(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	sess.SetUserID(user.ID)
	if err := sess.Save(c.Context()); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	next := c.Query("next")
	if next == "" {
		next = c.FormValue("next")
	}
	if next == "" {
		next = "/"
	}
	return c.Redirect(next, fiber.StatusFound)
}

// SignupPage renders the empty registration form.
func (s *Server) SignupPage(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"page": "signup"})
}

// Signup registers a new member account and logs it in.
func (s *Server) Signup(c *fiber.Ctx) error {
	var form validation.SignupForm
	if err := c.BodyParser(&form); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if errs := form.Validate(); !errs.OK() {
		return renderForm(c, fiber.StatusOK, fiber.Map{
			"page":  "signup",
			"name":  form.Name,
			"email": form.Email,
		}, errs)
	}

	user, err := s.userService.Signup(c.Context(), service.SignupInput{
		Name:     form.Name,
		Email:    form.Email,
		Password: form.Password,
	})
	if err != nil {
		if appErr, ok := err.(*models.AppError); ok && appErr.Code == "CONFLICT" {
			return renderForm(c, fiber.StatusOK, fiber.Map{
				"page":  "signup",
				"name":  form.Name,
				"email": form.Email,
			}, validation.FieldErrors{validation.FormLevelKey: appErr.Message})
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	sess, err := s.sessions.Load(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	sess.SetUserID(user.ID)
	_ = sess.Set("flash", "User signup successful.")
	if err := sess.Save(c.Context()); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.Redirect("/", fiber.StatusFound)
}

// Logout destroys the session and returns to the login page.
func (s *Server) Logout(c *fiber.Ctx) error {
	sess, err := s.sessions.Load(c)
	if err == nil {
		_ = sess.Destroy(c.Context(), c)
	}
	return c.Redirect("/accounts/login/", fiber.StatusFound)
}

// Profile renders the caller's own account.
func (s *Server) Profile(c *fiber.Ctx) error {
	user, err := s.userService.UserDetail(c.Context(), callerFrom(c).ID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}
	return c.JSON(fiber.Map{
		"page": "profile",
		"user": user,
	})
}

// PasswordResetPage renders the empty change-password form.
func (s *Server) PasswordResetPage(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"page": "password-reset"})
}

// PasswordReset changes the caller's password after verifying the current
// one.
func (s *Server) PasswordReset(c *fiber.Ctx) error {
	var form validation.PasswordResetForm
	if err := c.BodyParser(&form); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if errs := form.Validate(); !errs.OK() {
		return renderForm(c, fiber.StatusOK, fiber.Map{"page": "password-reset"}, errs)
	}

	msg, err := s.userService.ResetPassword(c.Context(), callerFrom(c).ID,
		form.CurrentPassword, form.NewPassword)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	if msg != "" {
		return renderForm(c, fiber.StatusOK, fiber.Map{"page": "password-reset"},
			validation.FieldErrors{"password": msg})
	}

	return c.Redirect("/users/", fiber.StatusFound)
}
