package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"time"

	"bulletinboard/internal/models"
	"bulletinboard/internal/observability"
	"bulletinboard/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// CSV import user-facing messages.
const (
	MsgCSVNoFile      = "Please choose a file"
	MsgCSVBadFormat   = "Please choose csv format"
	MsgCSVBadColumns  = "Post upload csv must have 3 columns"
	csvColumnsPerRow  = 3
	csvExportFilename = "post_list.csv"
)

// ExportFilename is the attachment name of the post list download.
func ExportFilename() string { return csvExportFilename }

// csvContentTypes are the declared content types accepted for import. The
// ms-excel type is what browsers historically send for .csv files.
var csvContentTypes = map[string]bool{
	"application/vnd.ms-excel": true,
	"text/csv":                 true,
}

// PostService implements the bulletin post operations.
type PostService struct {
	posts repository.PostRepository
	users repository.UserRepository
}

// NewPostService creates the post service.
func NewPostService(posts repository.PostRepository, users repository.UserRepository) *PostService {
	return &PostService{posts: posts, users: users}
}

// List returns the page of posts visible to the caller.
func (s *PostService) List(ctx context.Context, caller models.Caller, keyword string, page int) (repository.Page[models.Post], error) {
	return s.posts.List(ctx, caller, repository.PostFilter{Keyword: keyword, Page: page})
}

// Detail returns a post with the creator and updater display names resolved.
func (s *PostService) Detail(ctx context.Context, id uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	post.CreatedUserName = s.users.NameOf(ctx, post.CreatedUserID)
	post.UpdatedUserName = s.users.NameOf(ctx, post.UpdatedUserID)
	return post, nil
}

// CreateInput carries the staged values of a post creation.
type CreateInput struct {
	Title       string
	Description string
	Status      models.PostStatus
}

// Create persists a new post owned by the caller.
func (s *PostService) Create(ctx context.Context, caller models.Caller, input CreateInput) (*models.Post, error) {
	span, ctx := observability.NewSpan(ctx, "post.create")
	defer span.End()

	now := time.Now()
	owner := caller.ID
	post := &models.Post{
		Title:         input.Title,
		Description:   input.Description,
		Status:        input.Status,
		UserID:        &owner,
		CreatedUserID: caller.ID,
		UpdatedUserID: caller.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		span.SetError(err)
		return nil, err
	}
	observability.PostsCreatedTotal.WithLabelValues("form").Inc()
	span.AddAttributes(attribute.Int("post.id", int(post.ID)))
	return post, nil
}

// UpdateInput carries the staged values of a post edit.
type UpdateInput struct {
	PostID      uint
	Title       string
	Description string
	Status      models.PostStatus
}

// Update persists the staged edit onto an existing post, stamping the caller
// as updater. The target must be visible to the caller.
func (s *PostService) Update(ctx context.Context, caller models.Caller, input UpdateInput) (*models.Post, error) {
	post, err := s.posts.GetVisibleByID(ctx, caller, input.PostID)
	if err != nil {
		return nil, err
	}
	post.Title = input.Title
	post.Description = input.Description
	post.Status = input.Status
	post.UpdatedUserID = caller.ID
	post.UpdatedAt = time.Now()
	if err := s.posts.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// SoftDelete marks a post deleted by the caller.
func (s *PostService) SoftDelete(ctx context.Context, caller models.Caller, id uint) error {
	if err := s.posts.SoftDelete(ctx, caller, id, time.Now()); err != nil {
		return err
	}
	observability.RecordsDeletedTotal.WithLabelValues("post").Inc()
	return nil
}

// ImportCSV validates and loads an uploaded post file. The first row is a
// header and is skipped; every data row becomes a post owned by the caller.
// Row-shape validation is all-or-nothing: one malformed row rejects the whole
// file before anything is written. The returned string is the user-facing
// error message, empty on success.
func (s *PostService) ImportCSV(ctx context.Context, caller models.Caller, fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return MsgCSVNoFile, nil
	}
	if !csvContentTypes[fh.Header.Get("Content-Type")] {
		return MsgCSVBadFormat, nil
	}

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open csv upload: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			observability.CSVImportRowsTotal.WithLabelValues("rejected").Inc()
			return MsgCSVBadColumns, nil
		}
		if len(row) != csvColumnsPerRow {
			observability.CSVImportRowsTotal.WithLabelValues("rejected").Inc()
			return MsgCSVBadColumns, nil
		}
		rows = append(rows, row)
	}

	now := time.Now()
	owner := caller.ID
	var posts []*models.Post
	for i, row := range rows {
		if i == 0 {
			continue
		}
		status := models.PostStatus(row[2])
		if !status.Valid() {
			status = models.PostStatusActive
		}
		posts = append(posts, &models.Post{
			Title:         row[0],
			Description:   row[1],
			Status:        status,
			UserID:        &owner,
			CreatedUserID: caller.ID,
			UpdatedUserID: caller.ID,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	if err := s.posts.CreateBatch(ctx, posts); err != nil {
		return "", err
	}
	observability.CSVImportRowsTotal.WithLabelValues("imported").Add(float64(len(posts)))
	observability.PostsCreatedTotal.WithLabelValues("csv").Add(float64(len(posts)))
	return "", nil
}

// ExportCSV writes every post, soft-deleted included, to w in the fixed
// column order of the download endpoint.
func (s *PostService) ExportCSV(ctx context.Context, w io.Writer) error {
	posts, err := s.posts.All(ctx)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	header := []string{"id", "title", "description", "status", "created_user_id",
		"updated_user_id", "delete_user_id", "deleted_at", "created_at", "updated_at"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, post := range posts {
		row := []string{
			strconv.FormatUint(uint64(post.ID), 10),
			post.Title,
			post.Description,
			string(post.Status),
			strconv.FormatUint(uint64(post.CreatedUserID), 10),
			strconv.FormatUint(uint64(post.UpdatedUserID), 10),
			optionalID(post.DeleteUserID),
			optionalTime(post.DeletedAt),
			post.CreatedAt.Format(time.RFC3339),
			post.UpdatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func optionalID(id *uint) string {
	if id == nil {
		return ""
	}
	return strconv.FormatUint(uint64(*id), 10)
}

func optionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
