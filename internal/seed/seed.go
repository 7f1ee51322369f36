// Package seed creates demo and test data for the bulletin board database.
// Intended for development environments only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"bulletinboard/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options controls how much data the seeder creates and whether it writes
// to the database at all.
type Options struct {
	Users      int
	Posts      int
	MaxDays    int
	SkipBcrypt bool
	DryRun     bool
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}
	return &Factory{
		db:     db,
		opts:   opts,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		nextID: 1000,
	}
}

// createdAtSpread returns a timestamp scattered over the recent past so
// listings and date-range searches have something to chew on.
func (f *Factory) createdAtSpread() time.Time {
	daysBack := f.rng.Intn(f.opts.MaxDays)
	hoursBack := f.rng.Intn(24)
	minsBack := f.rng.Intn(60)
	return time.Now().Add(-time.Duration(daysBack)*24*time.Hour -
		time.Duration(hoursBack)*time.Hour -
		time.Duration(minsBack)*time.Minute)
}

// CreateAdmin persists the well-known admin account used for manual login.
func (f *Factory) CreateAdmin() (*models.User, error) {
	return f.CreateUser(func(u *models.User) {
		u.Name = "Admin"
		u.Email = "admin@example.com"
		u.Type = models.RoleAdmin
	})
}

// CreateUser constructs and persists a sample account. Optional override
// functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	dob := gofakeit.DateRange(
		time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2004, 12, 31, 0, 0, 0, 0, time.UTC))
	user := &models.User{
		Name:      gofakeit.Name(),
		Email:     gofakeit.Email(),
		Type:      models.RoleUser,
		Phone:     gofakeit.Phone(),
		Address:   gofakeit.Address().Address,
		DOB:       &dob,
		IsActive:  true,
		CreatedAt: f.createdAtSpread(),
	}

	if f.opts.SkipBcrypt {
		user.Password = "password123"
	} else {
		hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash seed password: %w", err)
		}
		user.Password = string(hashed)
	}

	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateUser: %s <%s>", user.Name, user.Email)
		return user, nil
	}
	selfOwned := user.CreatedUserID == 0
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	// Self-stamp the first account so audit columns never point at a
	// missing record.
	if selfOwned {
		user.CreatedUserID = user.ID
		user.UpdatedUserID = user.ID
		if err := f.db.Save(user).Error; err != nil {
			return nil, err
		}
	}
	return user, nil
}

// BuildPost constructs a post owned by the given account without persisting
// it, so batches can be written in one call.
func (f *Factory) BuildPost(owner *models.User, overrides ...func(*models.Post)) *models.Post {
	ownerID := owner.ID
	status := models.PostStatusActive
	if f.rng.Intn(10) == 0 {
		status = models.PostStatusInactive
	}
	post := &models.Post{
		Title:         gofakeit.Sentence(4),
		Description:   gofakeit.Paragraph(1, 2, 8, " "),
		Status:        status,
		UserID:        &ownerID,
		CreatedUserID: owner.ID,
		UpdatedUserID: owner.ID,
		CreatedAt:     f.createdAtSpread(),
	}
	if len(post.Description) > 255 {
		post.Description = post.Description[:255]
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePostsBatch persists multiple posts in a single DB call.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	if f.opts.DryRun {
		for _, p := range posts {
			f.nextID++
			p.ID = f.nextID
		}
		log.Printf("[dry-run] CreatePostsBatch: %d posts (no DB write)", len(posts))
		return nil
	}
	return f.db.Create(&posts).Error
}

// ClearAll removes seeded rows. Posts go first so the owner references never
// dangle mid-wipe.
func (f *Factory) ClearAll() error {
	if f.opts.DryRun {
		log.Println("[dry-run] ClearAll: skipped")
		return nil
	}
	if err := f.db.Exec("DELETE FROM posts").Error; err != nil {
		return err
	}
	return f.db.Exec("DELETE FROM users").Error
}

// Run populates the database with the configured number of accounts and
// posts. The admin account is always created first.
func (f *Factory) Run() error {
	admin, err := f.CreateAdmin()
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	users := []*models.User{admin}
	for i := 0; i < f.opts.Users; i++ {
		user, err := f.CreateUser(func(u *models.User) {
			u.CreatedUserID = admin.ID
			u.UpdatedUserID = admin.ID
		})
		if err != nil {
			return fmt.Errorf("seed user %d: %w", i, err)
		}
		users = append(users, user)
	}

	posts := make([]*models.Post, 0, f.opts.Posts)
	for i := 0; i < f.opts.Posts; i++ {
		owner := users[f.rng.Intn(len(users))]
		posts = append(posts, f.BuildPost(owner))
	}
	if err := f.CreatePostsBatch(posts); err != nil {
		return fmt.Errorf("seed posts: %w", err)
	}

	log.Printf("Seeded %d users and %d posts", len(users), len(posts))
	return nil
}
