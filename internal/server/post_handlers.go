package server

import (
	"bulletinboard/internal/models"
	"bulletinboard/internal/observability"
	"bulletinboard/internal/service"
	"bulletinboard/internal/validation"
	"bulletinboard/internal/workflow"

	"github.com/gofiber/fiber/v2"
)

// PostList renders the paginated post listing, optionally filtered by a
// keyword. Doubles as the application root.
func (s *Server) PostList(c *fiber.Ctx) error {
	caller := callerFrom(c)

	keyword := c.FormValue("keyword")
	if keyword == "" {
		keyword = c.Query("keyword")
	}

	page, err := s.postService.List(c.Context(), caller, keyword, formPage(c))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	payload := fiber.Map{
		"page":         "post-list",
		"current_user": currentUserFrom(c).Name,
		"keyword":      keyword,
		"posts":        page.Records,
		"page_number":  page.Number,
		"total_pages":  page.TotalPages,
		"total":        page.Total,
		"has_prev":     page.HasPrev(),
		"has_next":     page.HasNext(),
	}

	// One-shot flash message set by signup or other redirecting flows.
	sess := sessionFrom(c)
	var flash string
	if sess.Get("flash", &flash) && flash != "" {
		payload["message"] = flash
		sess.Delete("flash")
		_ = sess.Save(c.Context())
	}

	return c.JSON(payload)
}

// PostCreatePage renders the empty creation form. Landing here abandons any
// staged creation from a previous visit.
func (s *Server) PostCreatePage(c *fiber.Ctx) error {
	sess := sessionFrom(c)
	if st := workflow.Load(sess, workflow.PostKey); st != nil {
		workflow.Clear(sess, workflow.PostKey)
		_ = sess.Save(c.Context())
	}
	return c.JSON(fiber.Map{"page": "post-create", "confirm": false})
}

// PostCreate drives the two-phase creation workflow: the first valid save
// stages a snapshot and renders the read-only confirmation view, the second
// save commits it.
func (s *Server) PostCreate(c *fiber.Ctx) error {
	return s.postWorkflow(c, 0)
}

// PostEditPage renders the edit form pre-filled from the stored post.
// Landing here abandons any staged edit.
func (s *Server) PostEditPage(c *fiber.Ctx) error {
	caller := callerFrom(c)
	post, err := s.postRepo.GetVisibleByID(c.Context(), caller, paramID(c, "id"))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}

	sess := sessionFrom(c)
	if st := workflow.Load(sess, workflow.PostKey); st != nil {
		workflow.Clear(sess, workflow.PostKey)
		_ = sess.Save(c.Context())
	}

	return c.JSON(fiber.Map{
		"page":        "post-edit",
		"confirm":     false,
		"post_id":     post.ID,
		"title":       post.Title,
		"description": post.Description,
		"status":      post.Status,
	})
}

// PostEdit drives the two-phase edit workflow for an existing post.
func (s *Server) PostEdit(c *fiber.Ctx) error {
	caller := callerFrom(c)
	post, err := s.postRepo.GetVisibleByID(c.Context(), caller, paramID(c, "id"))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}
	return s.postWorkflow(c, post.ID)
}

// postWorkflow is the shared stage/confirm/commit state machine for post
// creation (postID zero) and edit (postID set).
func (s *Server) postWorkflow(c *fiber.Ctx, postID uint) error {
	caller := callerFrom(c)
	sess := sessionFrom(c)
	pageName := "post-create"
	if postID != 0 {
		pageName = "post-edit"
	}

	var form validation.PostForm
	if err := c.BodyParser(&form); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	// Cancel drops the staged snapshot and returns to the editable form.
	if formHas(c, intentCancel) {
		workflow.Clear(sess, workflow.PostKey)
		if err := sess.Save(c.Context()); err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		}
		observability.ConfirmationsTotal.WithLabelValues("post", "cancel").Inc()
		return c.JSON(fiber.Map{
			"page":        pageName,
			"confirm":     false,
			"post_id":     postID,
			"title":       form.Title,
			"description": form.Description,
		})
	}

	if !formHas(c, intentSave) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unknown form action"))
	}

	// A save with a confirmed snapshot in the session is the commit step.
	// The persisted values come from the snapshot, not from this request.
	if st := workflow.Load(sess, workflow.PostKey); st != nil && st.Confirmed {
		draft, err := workflow.Snapshot[workflow.PostDraft](st)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		}

		if draft.PostID == 0 {
			_, err = s.postService.Create(c.Context(), caller, service.CreateInput{
				Title:       draft.Title,
				Description: draft.Description,
				Status:      models.PostStatus(draft.Status),
			})
		} else {
			_, err = s.postService.Update(c.Context(), caller, service.UpdateInput{
				PostID:      draft.PostID,
				Title:       draft.Title,
				Description: draft.Description,
				Status:      models.PostStatus(draft.Status),
			})
		}

		workflow.Clear(sess, workflow.PostKey)
		if saveErr := sess.Save(c.Context()); saveErr != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(saveErr))
		}
		if err != nil {
			// The marker is already cleared, so nothing half-committed
			// survives. Surface the failure on the form.
			return renderForm(c, fiber.StatusOK, fiber.Map{
				"page":        pageName,
				"confirm":     false,
				"post_id":     draft.PostID,
				"title":       draft.Title,
				"description": draft.Description,
			}, validation.FieldErrors{validation.FormLevelKey: err.Error()})
		}
		observability.ConfirmationsTotal.WithLabelValues("post", "commit").Inc()
		return c.Redirect("/", fiber.StatusFound)
	}

	// First save: validate, then stage the snapshot for confirmation.
	if errs := form.Validate(); !errs.OK() {
		workflow.Clear(sess, workflow.PostKey)
		if err := sess.Save(c.Context()); err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		}
		return renderForm(c, fiber.StatusOK, fiber.Map{
			"page":        pageName,
			"confirm":     false,
			"post_id":     postID,
			"title":       form.Title,
			"description": form.Description,
		}, errs)
	}

	// New posts are always active. The status checkbox only exists on the
	// edit form; absence there means inactive, captured into the snapshot
	// now so nothing downstream re-derives it from field presence.
	status := models.PostStatusActive
	if postID != 0 {
		status = models.PostStatusInactive
		if formHas(c, "post_status") {
			status = models.PostStatusActive
		}
	}

	draft := workflow.PostDraft{
		PostID:      postID,
		Title:       form.Title,
		Description: form.Description,
		Status:      string(status),
	}
	if err := workflow.Stage(sess, workflow.PostKey, draft, ""); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	if err := sess.Save(c.Context()); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	observability.ConfirmationsTotal.WithLabelValues("post", "stage").Inc()

	return c.JSON(fiber.Map{
		"page":        pageName,
		"confirm":     true,
		"post_id":     postID,
		"title":       form.Title,
		"description": form.Description,
		"status":      status,
	})
}

// PostDetail returns the JSON detail payload with resolved display names.
func (s *Server) PostDetail(c *fiber.Ctx) error {
	post, err := s.postService.Detail(c.Context(), queryID(c, "post_id"))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}
	return c.JSON(post)
}

// PostDeleteConfirm returns the payload backing the delete confirmation
// dialog.
func (s *Server) PostDeleteConfirm(c *fiber.Ctx) error {
	caller := callerFrom(c)
	post, err := s.postRepo.GetVisibleByID(c.Context(), caller, queryID(c, "post_id"))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}
	return c.JSON(fiber.Map{
		"post_id":     post.ID,
		"title":       post.Title,
		"description": post.Description,
		"status":      post.Status,
	})
}

// PostDelete soft-deletes the post and returns to the listing.
func (s *Server) PostDelete(c *fiber.Ctx) error {
	caller := callerFrom(c)
	if err := s.postService.SoftDelete(c.Context(), caller, queryID(c, "post_id")); err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}
	return c.Redirect("/", fiber.StatusFound)
}
