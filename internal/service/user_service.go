package service

import (
	"context"
	"time"

	"bulletinboard/internal/models"
	"bulletinboard/internal/observability"
	"bulletinboard/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// Authentication user-facing messages.
const (
	MsgLoginUnknownEmail = "Email does not exist or deleted"
	MsgLoginBadPassword  = "Email and Password does not match."
	MsgWrongPassword     = "Current password is wrong!"
)

// UserService implements account operations.
type UserService struct {
	users  repository.UserRepository
	upload *UploadService
}

// NewUserService creates the user service.
func NewUserService(users repository.UserRepository, upload *UploadService) *UserService {
	return &UserService{users: users, upload: upload}
}

// Authenticate checks login credentials against active accounts. The returned
// string is a user-facing failure message, empty on success.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.users.ActiveByEmail(ctx, email)
	if err != nil {
		if appErr, ok := err.(*models.AppError); ok && appErr.Code == "NOT_FOUND" {
			return nil, MsgLoginUnknownEmail, nil
		}
		return nil, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, MsgLoginBadPassword, nil
	}
	return user, "", nil
}

// SignupInput carries the validated self-service registration fields.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// Signup creates a self-registered account with the member role.
func (s *UserService) Signup(ctx context.Context, input SignupInput) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	user := &models.User{
		Name:      input.Name,
		Email:     input.Email,
		Password:  string(hash),
		Type:      models.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
		IsStaff:   true,
		IsActive:  true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	// Self-registered accounts are their own creator.
	user.CreatedUserID = user.ID
	user.UpdatedUserID = user.ID
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns the page of accounts visible to the caller with display
// fields resolved for rendering.
func (s *UserService) ListUsers(ctx context.Context, caller models.Caller, filter repository.UserFilter) (repository.Page[models.User], error) {
	page, err := s.users.List(ctx, caller, filter)
	if err != nil {
		return page, err
	}
	for i := range page.Records {
		page.Records[i].TypeLabel = page.Records[i].Type.Label()
		page.Records[i].CreatedUserName = s.users.NameOf(ctx, page.Records[i].CreatedUserID)
	}
	return page, nil
}

// GetUser resolves an account visible to the caller.
func (s *UserService) GetUser(ctx context.Context, caller models.Caller, id uint) (*models.User, error) {
	return s.users.GetVisibleByID(ctx, caller, id)
}

// CurrentUser resolves an account by id without visibility narrowing, for the
// caller's own profile.
func (s *UserService) CurrentUser(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// UserDetail returns an account with display names resolved.
func (s *UserService) UserDetail(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.TypeLabel = user.Type.Label()
	user.CreatedUserName = s.users.NameOf(ctx, user.CreatedUserID)
	user.UpdatedUserName = s.users.NameOf(ctx, user.UpdatedUserID)
	return user, nil
}

// CreateUserInput carries the staged values of an admin user creation.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Type     models.Role
	Phone    string
	DOB      string
	Address  string
	// Profile names a staged image file to promote on commit.
	Profile string
}

// CreateUser persists a new account from a committed creation workflow,
// promoting the staged profile image to permanent storage.
func (s *UserService) CreateUser(ctx context.Context, caller models.Caller, input CreateUserInput) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	profile := ""
	if input.Profile != "" {
		if err := s.upload.Promote(input.Profile); err != nil {
			return nil, err
		}
		profile = "upload/" + input.Profile
	}

	role := input.Type
	if !role.Valid() {
		role = models.RoleUser
	}

	now := time.Now()
	user := &models.User{
		Name:          input.Name,
		Email:         input.Email,
		Password:      string(hash),
		Profile:       profile,
		Type:          role,
		Phone:         input.Phone,
		DOB:           parseDOB(input.DOB),
		Address:       input.Address,
		CreatedUserID: caller.ID,
		UpdatedUserID: caller.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
		IsStaff:       true,
		IsActive:      true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	if input.Profile != "" {
		_ = s.upload.Discard(input.Profile)
	}
	return user, nil
}

// UpdateUserInput carries the staged values of a user edit.
type UpdateUserInput struct {
	UserID  uint
	Name    string
	Email   string
	Type    models.Role
	Phone   string
	DOB     string
	Address string
	// Profile names a staged replacement image, empty to keep the current one.
	Profile string
}

// UpdateUser persists the staged edit onto the target account, stamping the
// caller as updater.
func (s *UserService) UpdateUser(ctx context.Context, caller models.Caller, input UpdateUserInput) (*models.User, error) {
	user, err := s.users.GetVisibleByID(ctx, caller, input.UserID)
	if err != nil {
		return nil, err
	}

	if input.Profile != "" {
		if err := s.upload.Promote(input.Profile); err != nil {
			return nil, err
		}
		user.Profile = "upload/" + input.Profile
	}

	user.Name = input.Name
	user.Email = input.Email
	if input.Type.Valid() {
		user.Type = input.Type
	}
	user.Phone = input.Phone
	user.DOB = parseDOB(input.DOB)
	user.Address = input.Address
	user.UpdatedUserID = caller.ID
	user.UpdatedAt = time.Now()

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	if input.Profile != "" {
		_ = s.upload.Discard(input.Profile)
	}
	return user, nil
}

// DeleteUserRecord marks the target account deleted by the caller.
func (s *UserService) DeleteUserRecord(ctx context.Context, caller models.Caller, id uint) error {
	if err := s.users.SoftDelete(ctx, caller, id, time.Now()); err != nil {
		return err
	}
	observability.RecordsDeletedTotal.WithLabelValues("user").Inc()
	return nil
}

// ResetPassword changes the caller's password after verifying the current
// one. The returned string is a field-level message for the current-password
// input, empty on success.
func (s *UserService) ResetPassword(ctx context.Context, callerID uint, current, newPassword string) (string, error) {
	user, err := s.users.GetByID(ctx, callerID)
	if err != nil {
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)) != nil {
		return MsgWrongPassword, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	user.Password = string(hash)
	user.UpdatedUserID = callerID
	user.UpdatedAt = time.Now()
	if err := s.users.Update(ctx, user); err != nil {
		return "", err
	}
	return "", nil
}

func parseDOB(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}
