// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only. Resident identities live in the directory service, so the
// seeder synthesizes them in memory and only persists the content that
// belongs to this service.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"courtyard/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Resident is a synthesized identity used to author seeded content.
type Resident struct {
	ID         uuid.UUID
	BuildingID uuid.UUID
	Role       string
}

// Options configuration for the seeder.
type Options struct {
	NumResidents int
	NumPosts     int
	ShouldClean  bool
	// MaxDays bounds how far back seeded timestamps spread.
	MaxDays int
}

var seedRoles = []string{"RESIDENT", "RESIDENT", "RESIDENT", "RESIDENT", "MANAGER", "SECURITY", "ADMIN"}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the seeder and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	//nolint:gosec // Weak random number generator is fine for seeding
	return &Factory{db: db, opts: opts, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// BuildResidents synthesizes resident identities spread across the given
// buildings. Roles skew heavily toward RESIDENT with a sprinkling of staff.
func (f *Factory) BuildResidents(count int, buildings []uuid.UUID) []Resident {
	residents := make([]Resident, 0, count)
	for i := 0; i < count; i++ {
		residents = append(residents, Resident{
			ID:         uuid.New(),
			BuildingID: buildings[f.rng.Intn(len(buildings))],
			Role:       seedRoles[f.rng.Intn(len(seedRoles))],
		})
	}
	return residents
}

// BuildPost constructs a marketplace post for the resident without
// persisting it, with a realistic created_at spread.
func (f *Factory) BuildPost(author Resident, overrides ...func(*models.Post)) *models.Post {
	post := &models.Post{
		ResidentID: author.ID,
		BuildingID: author.BuildingID,
		Title:      gofakeit.ProductName(),
		Content:    gofakeit.Paragraph(1, 3, 8, "\n"),
		Price:      int64(f.rng.Intn(500)) * 1000,
		Status:     models.PostStatusActive,
	}
	if f.rng.Float32() < 0.5 {
		post.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID())
	}
	if f.rng.Float32() < 0.1 {
		post.Status = models.PostStatusSold
	}
	post.CreatedAt = f.spreadTimestamp()

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost persists a sample post for the resident.
func (f *Factory) CreatePost(author Resident, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(author, overrides...)
	if err := f.db.Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment persists a comment on the post. A non-nil parent makes it a
// reply under that comment.
func (f *Factory) CreateComment(author Resident, post *models.Post, parent *models.Comment, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		PostID:     post.ID,
		ResidentID: author.ID,
		Content:    gofakeit.Sentence(8),
	}
	if parent != nil {
		comment.ParentID = &parent.ID
	}
	for _, override := range overrides {
		override(comment)
	}
	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateBlock persists a block from blocker to blocked, ignoring repeats.
func (f *Factory) CreateBlock(blocker, blocked Resident) error {
	block := models.Block{}
	return f.db.Where(models.Block{BlockerID: blocker.ID, BlockedID: blocked.ID}).
		FirstOrCreate(&block).Error
}

// CreateDeviceToken registers a fake push token for the resident.
func (f *Factory) CreateDeviceToken(owner Resident, overrides ...func(*models.DeviceToken)) (*models.DeviceToken, error) {
	platforms := []string{models.PlatformIOS, models.PlatformAndroid, models.PlatformWeb}
	token := &models.DeviceToken{
		ResidentID: owner.ID,
		BuildingID: &owner.BuildingID,
		Role:       owner.Role,
		Token:      fmt.Sprintf("seed-%s", gofakeit.UUID()),
		Platform:   platforms[f.rng.Intn(len(platforms))],
		AppVersion: gofakeit.AppVersion(),
		LastSeenAt: time.Now(),
	}
	for _, override := range overrides {
		override(token)
	}
	if err := f.db.Create(token).Error; err != nil {
		return nil, err
	}
	return token, nil
}

// CreateNotification persists a notification, validating scope targets the
// same way the API does.
func (f *Factory) CreateNotification(n *models.Notification) error {
	if err := n.ValidateScope(); err != nil {
		return err
	}
	return f.db.Create(n).Error
}

func (f *Factory) spreadTimestamp() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	daysBack := f.rng.Intn(maxDays)
	hoursBack := f.rng.Intn(24)
	minsBack := f.rng.Intn(60)
	return time.Now().Add(-time.Duration(daysBack)*24*time.Hour -
		time.Duration(hoursBack)*time.Hour -
		time.Duration(minsBack)*time.Minute)
}
