package server

import (
	"bytes"
	"mime/multipart"

	"bulletinboard/internal/models"

	"github.com/gofiber/fiber/v2"
)

// CSVImportPage renders the empty import form.
func (s *Server) CSVImportPage(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"page": "csv-import"})
}

// CSVImport loads an uploaded post file. Rejections re-render the form with
// the user-facing message; success returns to the post list.
func (s *Server) CSVImport(c *fiber.Ctx) error {
	caller := callerFrom(c)

	var fh *multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		if files := form.File["csv_file"]; len(files) > 0 {
			fh = files[0]
		}
	}

	msg, err := s.postService.ImportCSV(c.Context(), caller, fh)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	if msg != "" {
		return c.JSON(fiber.Map{
			"page":        "csv-import",
			"err_message": msg,
		})
	}
	return c.Redirect("/", fiber.StatusFound)
}

// PostListDownload streams every post as a CSV attachment.
func (s *Server) PostListDownload(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := s.postService.ExportCSV(c.Context(), &buf); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="post_list.csv"`)
	return c.Send(buf.Bytes())
}
