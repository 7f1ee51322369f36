package server

import (
	"mime/multipart"

	"bulletinboard/internal/models"
	"bulletinboard/internal/observability"
	"bulletinboard/internal/repository"
	"bulletinboard/internal/service"
	"bulletinboard/internal/validation"
	"bulletinboard/internal/workflow"

	"github.com/gofiber/fiber/v2"
)

// UserList renders the paginated member listing with the search filters
// applied.
func (s *Server) UserList(c *fiber.Ctx) error {
	caller := callerFrom(c)

	var form validation.UserSearchForm
	if err := c.BodyParser(&form); err != nil && c.Method() == fiber.MethodPost {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if form.Name == "" {
		form.Name = c.Query("name")
	}
	if form.Email == "" {
		form.Email = c.Query("email")
	}
	if form.FromDate == "" {
		form.FromDate = c.Query("from_date")
	}
	if form.ToDate == "" {
		form.ToDate = c.Query("to_date")
	}

	page, err := s.userService.ListUsers(c.Context(), caller, repository.UserFilter{
		Name:     form.Name,
		Email:    form.Email,
		FromDate: form.FromDate,
		ToDate:   form.ToDate,
		Page:     formPage(c),
	})
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"page":        "user-list",
		"name":        form.Name,
		"email":       form.Email,
		"from_date":   form.FromDate,
		"to_date":     form.ToDate,
		"users":       page.Records,
		"page_number": page.Number,
		"total_pages": page.TotalPages,
		"total":       page.Total,
		"has_prev":    page.HasPrev(),
		"has_next":    page.HasNext(),
	})
}

// UserCreatePage renders the empty registration form, abandoning any staged
// creation from a previous visit.
func (s *Server) UserCreatePage(c *fiber.Ctx) error {
	sess := sessionFrom(c)
	if st := workflow.Load(sess, workflow.UserKey); st != nil {
		_ = s.uploadService.Discard(st.StagedFile)
		workflow.Clear(sess, workflow.UserKey)
		_ = sess.Save(c.Context())
	}
	return c.JSON(fiber.Map{"page": "user-create", "confirm": false})
}

// UserCreate drives the two-phase member creation workflow, including the
// profile image staging.
func (s *Server) UserCreate(c *fiber.Ctx) error {
	return s.userCreateWorkflow(c)
}

func (s *Server) userCreateWorkflow(c *fiber.Ctx) error {
	caller := callerFrom(c)
	sess := sessionFrom(c)

	var form validation.UserCreateForm
	if err := c.BodyParser(&form); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if formHas(c, intentCancel) {
		if st := workflow.Load(sess, workflow.UserKey); st != nil {
			_ = s.uploadService.Discard(st.StagedFile)
		}
		workflow.Clear(sess, workflow.UserKey)
		if err := sess.Save(c.Context()); err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		}
		observability.ConfirmationsTotal.WithLabelValues("user", "cancel").Inc()
		return c.JSON(userFormPayload("user-create", false, 0, form.Name, form.Email, form.Type, form.Phone, form.DOB, form.Address, ""))
	}

	if !formHas(c, intentSave) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unknown form action"))
	}

	// Commit step: a confirmed snapshot is waiting in the session.
	if st := workflow.Load(sess, workflow.UserKey); st != nil && st.Confirmed {
		draft, err := workflow.Snapshot[workflow.UserDraft](st)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		}

		_, err = s.userService.CreateUser(c.Context(), caller, service.CreateUserInput{
			Name:     draft.Name,
			Email:    draft.Email,
			Password: draft.Password,
			Type:     models.Role(draft.Type),
			Phone:    draft.Phone,
			DOB:      draft.DOB,
			Address:  draft.Address,
			Profile:  st.StagedFile,
		})

		workflow.Clear(sess, workflow.UserKey)
		if saveErr := sess.Save(c.Context()); saveErr != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(saveErr))
		}
		if err != nil {
			_ = s.uploadService.Discard(st.StagedFile)
			return renderForm(c, fiber.StatusOK,
				userFormPayload("user-create", false, 0, draft.Name, draft.Email, draft.Type, draft.Phone, draft.DOB, draft.Address, ""),
				validation.FieldErrors{validation.FormLevelKey: err.Error()})
		}
		observability.ConfirmationsTotal.WithLabelValues("user", "commit").Inc()
		return c.Redirect("/users/", fiber.StatusFound)
	}

	// First save: validate fields and the required profile image, then stage.
	errs := form.Validate()

	fh := profileUpload(c)
	if fh == nil {
		errs.Add("profile", "profile can not be blank")
	}

	if !errs.OK() {
		workflow.Clear(sess, workflow.UserKey)
		if err := sess.Save(c.Context()); err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		}
		return renderForm(c, fiber.StatusOK,
			userFormPayload("user-create", false, 0, form.Name, form.Email, form.Type, form.Phone, form.DOB, form.Address, ""),
			errs)
	}

	staged, err := s.uploadService.Stage(fh)
	if err != nil {
		return renderForm(c, fiber.StatusOK,
			userFormPayload("user-create", false, 0, form.Name, form.Email, form.Type, form.Phone, form.DOB, form.Address, ""),
			validation.FieldErrors{validation.FormLevelKey: err.Error()})
	}

	draft := workflow.UserDraft{
		Name:     form.Name,
		Email:    form.Email,
		Password: form.Password,
		Type:     form.Type,
		Phone:    form.Phone,
		DOB:      form.DOB,
		Address:  form.Address,
	}
	if err := workflow.Stage(sess, workflow.UserKey, draft, staged); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	if err := sess.Save(c.Context()); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	observability.ConfirmationsTotal.WithLabelValues("user", "stage").Inc()

	return c.JSON(userFormPayload("user-create", true, 0, form.Name, form.Email, form.Type, form.Phone, form.DOB, form.Address, "tmp/"+staged))
}

// UserEditPage renders the edit form pre-filled from the stored account,
// abandoning any staged edit.
func (s *Server) UserEditPage(c *fiber.Ctx) error {
	caller := callerFrom(c)
	user, err := s.userService.GetUser(c.Context(), caller, paramID(c, "id"))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}

	sess := sessionFrom(c)
	if st := workflow.Load(sess, workflow.UserKey); st != nil {
		_ = s.uploadService.Discard(st.StagedFile)
		workflow.Clear(sess, workflow.UserKey)
		_ = sess.Save(c.Context())
	}

	dob := ""
	if user.DOB != nil {
		dob = user.DOB.Format("2006-01-02")
	}
	return c.JSON(userFormPayload("user-edit", false, user.ID, user.Name, user.Email, string(user.Type), user.Phone, dob, user.Address, user.Profile))
}

// UserEdit drives the two-phase edit workflow for an existing account.
func (s *Server) UserEdit(c *fiber.Ctx) error {
	caller := callerFrom(c)
	sess := sessionFrom(c)

	target, err := s.userService.GetUser(c.Context(), caller, paramID(c, "id"))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}

	var form validation.UserEditForm
	if err := c.BodyParser(&form); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if formHas(c, intentCancel) {
		if st := workflow.Load(sess, workflow.UserKey); st != nil {
			_ = s.uploadService.Discard(st.StagedFile)
		}
		workflow.Clear(sess, workflow.UserKey)
		if err := sess.Save(c.Context()); err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		}
		observability.ConfirmationsTotal.WithLabelValues("user", "cancel").Inc()
		return c.JSON(userFormPayload("user-edit", false, target.ID, form.Name, form.Email, form.Type, form.Phone, form.DOB, form.Address, target.Profile))
	}

	if !formHas(c, intentSave) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unknown form action"))
	}

	if st := workflow.Load(sess, workflow.UserKey); st != nil && st.Confirmed {
		draft, err := workflow.Snapshot[workflow.UserDraft](st)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		}

		_, err = s.userService.UpdateUser(c.Context(), caller, service.UpdateUserInput{
			UserID:  draft.UserID,
			Name:    draft.Name,
			Email:   draft.Email,
			Type:    models.Role(draft.Type),
			Phone:   draft.Phone,
			DOB:     draft.DOB,
			Address: draft.Address,
			Profile: st.StagedFile,
		})

		workflow.Clear(sess, workflow.UserKey)
		if saveErr := sess.Save(c.Context()); saveErr != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(saveErr))
		}
		if err != nil {
			_ = s.uploadService.Discard(st.StagedFile)
			return renderForm(c, fiber.StatusOK,
				userFormPayload("user-edit", false, draft.UserID, draft.Name, draft.Email, draft.Type, draft.Phone, draft.DOB, draft.Address, target.Profile),
				validation.FieldErrors{validation.FormLevelKey: err.Error()})
		}
		observability.ConfirmationsTotal.WithLabelValues("user", "commit").Inc()
		return c.Redirect("/users/", fiber.StatusFound)
	}

	if errs := form.Validate(); !errs.OK() {
		workflow.Clear(sess, workflow.UserKey)
		if err := sess.Save(c.Context()); err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		}
		return renderForm(c, fiber.StatusOK,
			userFormPayload("user-edit", false, target.ID, form.Name, form.Email, form.Type, form.Phone, form.DOB, form.Address, target.Profile),
			errs)
	}

	// The replacement image is optional on edit; absence keeps the current one.
	staged := ""
	if fh := profileUpload(c); fh != nil {
		var err error
		staged, err = s.uploadService.Stage(fh)
		if err != nil {
			return renderForm(c, fiber.StatusOK,
				userFormPayload("user-edit", false, target.ID, form.Name, form.Email, form.Type, form.Phone, form.DOB, form.Address, target.Profile),
				validation.FieldErrors{validation.FormLevelKey: err.Error()})
		}
	}

	draft := workflow.UserDraft{
		UserID:       target.ID,
		Name:         form.Name,
		Email:        form.Email,
		Type:         form.Type,
		Phone:        form.Phone,
		DOB:          form.DOB,
		Address:      form.Address,
		UpdatedImage: staged != "",
	}
	if err := workflow.Stage(sess, workflow.UserKey, draft, staged); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	if err := sess.Save(c.Context()); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	observability.ConfirmationsTotal.WithLabelValues("user", "stage").Inc()

	preview := target.Profile
	if staged != "" {
		preview = "tmp/" + staged
	}
	return c.JSON(userFormPayload("user-edit", true, target.ID, form.Name, form.Email, form.Type, form.Phone, form.DOB, form.Address, preview))
}

// UserDetail returns the JSON detail payload with resolved display fields.
func (s *Server) UserDetail(c *fiber.Ctx) error {
	user, err := s.userService.UserDetail(c.Context(), queryID(c, "user_id"))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}
	return c.JSON(user)
}

// UserDeleteConfirm returns the payload backing the delete confirmation
// dialog.
func (s *Server) UserDeleteConfirm(c *fiber.Ctx) error {
	caller := callerFrom(c)
	user, err := s.userService.GetUser(c.Context(), caller, queryID(c, "user_id"))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}
	return c.JSON(fiber.Map{
		"user_id": user.ID,
		"name":    user.Name,
		"email":   user.Email,
		"type":    user.Type.Label(),
	})
}

// UserDelete soft-deletes the account and returns to the member listing.
func (s *Server) UserDelete(c *fiber.Ctx) error {
	caller := callerFrom(c)
	if err := s.userService.DeleteUserRecord(c.Context(), caller, queryID(c, "user_id")); err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}
	return c.Redirect("/users/", fiber.StatusFound)
}

// profileUpload pulls the optional profile image from a multipart submission.
func profileUpload(c *fiber.Ctx) *multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil {
		return nil
	}
	files := form.File["profile"]
	if len(files) == 0 || files[0].Size == 0 {
		return nil
	}
	return files[0]
}

func userFormPayload(page string, confirm bool, userID uint, name, email, role, phone, dob, address, profile string) fiber.Map {
	return fiber.Map{
		"page":    page,
		"confirm": confirm,
		"user_id": userID,
		"name":    name,
		"email":   email,
		"type":    role,
		"phone":   phone,
		"dob":     dob,
		"address": address,
		"profile": profile,
	}
}
