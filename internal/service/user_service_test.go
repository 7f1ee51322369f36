package service

import (
	"context"
	"testing"

	"bulletinboard/internal/config"
	"bulletinboard/internal/models"
	"bulletinboard/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newUserService(t *testing.T) (*UserService, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	cfg := &config.Config{
		UploadTmpDir: t.TempDir(),
		UploadDir:    t.TempDir(),
	}
	return NewUserService(repository.NewUserRepository(db), NewUploadService(cfg)), db
}

func seedAccount(t *testing.T, db *gorm.DB, name, email, password string, role models.Role) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		Name:     name,
		Email:    email,
		Password: string(hash),
		Type:     role,
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestAuthenticate(t *testing.T) {
	svc, db := newUserService(t)
	seedAccount(t, db, "Alice", "alice@example.com", "secret", models.RoleAdmin)

	user, msg, err := svc.Authenticate(context.Background(), "alice@example.com", "secret")
	require.NoError(t, err)
	assert.Empty(t, msg)
	require.NotNil(t, user)
	assert.Equal(t, "Alice", user.Name)

	_, msg, err = svc.Authenticate(context.Background(), "alice@example.com", "wrong")
	require.NoError(t, err)
	assert.Equal(t, "Email and Password does not match.", msg)

	_, msg, err = svc.Authenticate(context.Background(), "ghost@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "Email does not exist or deleted", msg)
}

func TestAuthenticateRejectsDeletedAccount(t *testing.T) {
	svc, db := newUserService(t)
	user := seedAccount(t, db, "Bob", "bob@example.com", "secret", models.RoleUser)

	repo := repository.NewUserRepository(db)
	require.NoError(t, repo.SoftDelete(context.Background(), models.Caller{ID: 1, Role: models.RoleAdmin}, user.ID, user.CreatedAt))

	_, msg, err := svc.Authenticate(context.Background(), "bob@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "Email does not exist or deleted", msg)
}

func TestSignupCreatesSelfOwnedMember(t *testing.T) {
	svc, db := newUserService(t)

	user, err := svc.Signup(context.Background(), SignupInput{
		Name: "Carol", Email: "carol@example.com", Password: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, user.Type)
	assert.Equal(t, user.ID, user.CreatedUserID)
	assert.Equal(t, user.ID, user.UpdatedUserID)

	var raw models.User
	require.NoError(t, db.First(&raw, user.ID).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(raw.Password), []byte("secret")))
}

func TestCreateUserStampsCreatorAndRole(t *testing.T) {
	svc, _ := newUserService(t)
	caller := models.Caller{ID: 1, Role: models.RoleAdmin}

	user, err := svc.CreateUser(context.Background(), caller, CreateUserInput{
		Name:     "Dana",
		Email:    "dana@example.com",
		Password: "secret",
		Type:     models.RoleAdmin,
		Phone:    "0123456",
		DOB:      "1990-05-20",
		Address:  "Somewhere",
	})
	require.NoError(t, err)
	assert.Equal(t, caller.ID, user.CreatedUserID)
	assert.Equal(t, models.RoleAdmin, user.Type)
	require.NotNil(t, user.DOB)
	assert.Equal(t, 1990, user.DOB.Year())
	assert.Empty(t, user.Profile)
}

func TestUpdateUserEditsTargetNotCaller(t *testing.T) {
	svc, db := newUserService(t)
	admin := seedAccount(t, db, "Admin", "admin@example.com", "secret", models.RoleAdmin)
	target := seedAccount(t, db, "Target", "target@example.com", "secret", models.RoleUser)

	caller := admin.AsCaller()
	updated, err := svc.UpdateUser(context.Background(), caller, UpdateUserInput{
		UserID: target.ID,
		Name:   "Renamed",
		Email:  "renamed@example.com",
		Type:   models.RoleUser,
	})
	require.NoError(t, err)
	assert.Equal(t, target.ID, updated.ID)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, caller.ID, updated.UpdatedUserID)

	// The caller's own record is untouched.
	var raw models.User
	require.NoError(t, db.First(&raw, admin.ID).Error)
	assert.Equal(t, "Admin", raw.Name)
}

func TestListUsersResolvesDisplayFields(t *testing.T) {
	svc, db := newUserService(t)
	admin := seedAccount(t, db, "Admin", "admin@example.com", "secret", models.RoleAdmin)

	member := seedAccount(t, db, "Member", "member@example.com", "secret", models.RoleUser)
	member.CreatedUserID = admin.ID
	require.NoError(t, db.Save(member).Error)

	page, err := svc.ListUsers(context.Background(), admin.AsCaller(), repository.UserFilter{Page: 1})
	require.NoError(t, err)
	require.NotEmpty(t, page.Records)

	byName := map[string]models.User{}
	for _, u := range page.Records {
		byName[u.Name] = u
	}
	assert.Equal(t, "User", byName["Member"].TypeLabel)
	assert.Equal(t, "Admin", byName["Admin"].TypeLabel)
	assert.Equal(t, "Admin", byName["Member"].CreatedUserName)
}

func TestResetPassword(t *testing.T) {
	svc, db := newUserService(t)
	user := seedAccount(t, db, "Eve", "eve@example.com", "oldpass", models.RoleUser)

	msg, err := svc.ResetPassword(context.Background(), user.ID, "wrongpass", "newpass")
	require.NoError(t, err)
	assert.Equal(t, "Current password is wrong!", msg)

	msg, err = svc.ResetPassword(context.Background(), user.ID, "oldpass", "newpass")
	require.NoError(t, err)
	assert.Empty(t, msg)

	var raw models.User
	require.NoError(t, db.First(&raw, user.ID).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(raw.Password), []byte("newpass")))
}
