package seed

import (
	"fmt"
	"log"

	"courtyard/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const numBuildings = 4

// commentShape splits a comment budget for one post into roots and replies.
// Roughly 40% of comments start a thread, the rest land under an existing one.
func commentShape(total int) (roots, replies int) {
	if total <= 0 {
		return 0, 0
	}
	roots = (total*2 + 4) / 5
	if roots < 1 {
		roots = 1
	}
	if roots > total {
		roots = total
	}
	return roots, total - roots
}

// Seed populates the database with demo data: posts with comment trees,
// block pairs, device tokens, and notifications of every scope.
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("Seeding %d residents and %d posts...", opts.NumResidents, opts.NumPosts)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("Warning: could not clear all existing data, continuing anyway...")
		}
	}

	f := NewFactory(db, opts)

	buildings := make([]uuid.UUID, numBuildings)
	for i := range buildings {
		buildings[i] = uuid.New()
	}
	residents := f.BuildResidents(opts.NumResidents, buildings)
	if len(residents) == 0 {
		return fmt.Errorf("at least one resident is required")
	}

	posts, err := createPosts(f, residents, opts.NumPosts)
	if err != nil {
		return fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("Created %d posts", len(posts))

	comments, err := createCommentTrees(f, residents, posts)
	if err != nil {
		return fmt.Errorf("failed to create comments: %w", err)
	}
	log.Printf("Created %d comments", comments)

	blocks, err := createBlocks(f, residents)
	if err != nil {
		return fmt.Errorf("failed to create blocks: %w", err)
	}
	log.Printf("Created %d blocks", blocks)

	tokens, err := createDeviceTokens(f, residents)
	if err != nil {
		return fmt.Errorf("failed to create device tokens: %w", err)
	}
	log.Printf("Created %d device tokens", tokens)

	notifs, err := createNotifications(f, residents, buildings)
	if err != nil {
		return fmt.Errorf("failed to create notifications: %w", err)
	}
	log.Printf("Created %d notifications", notifs)

	log.Println("Database seeding completed")
	return nil
}

func clearData(db *gorm.DB) error {
	log.Println("Clearing existing data...")
	sql := `TRUNCATE TABLE device_tokens, notifications, blocks, comments, posts CASCADE;`
	return db.Exec(sql).Error
}

func createPosts(f *Factory, residents []Resident, count int) ([]*models.Post, error) {
	posts := make([]*models.Post, 0, count)
	for i := 0; i < count; i++ {
		author := residents[f.rng.Intn(len(residents))]
		post, err := f.CreatePost(author)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
		if i > 0 && i%100 == 0 {
			log.Printf("Created %d posts...", i)
		}
	}
	return posts, nil
}

// createCommentTrees builds a small discussion under each post: a few root
// comments, then replies attached to randomly chosen earlier comments so the
// trees get real depth. Post counters are kept in sync with the live count.
func createCommentTrees(f *Factory, residents []Resident, posts []*models.Post) (int, error) {
	total := 0
	for _, post := range posts {
		budget := f.rng.Intn(12)
		roots, replies := commentShape(budget)

		created := make([]*models.Comment, 0, budget)
		for i := 0; i < roots; i++ {
			author := residents[f.rng.Intn(len(residents))]
			c, err := f.CreateComment(author, post, nil)
			if err != nil {
				return total, err
			}
			created = append(created, c)
		}
		for i := 0; i < replies && len(created) > 0; i++ {
			author := residents[f.rng.Intn(len(residents))]
			parent := created[f.rng.Intn(len(created))]
			c, err := f.CreateComment(author, post, parent)
			if err != nil {
				return total, err
			}
			created = append(created, c)
		}

		if len(created) > 0 {
			err := f.db.Model(post).
				Update("comments_count", gorm.Expr("comments_count + ?", len(created))).Error
			if err != nil {
				return total, err
			}
		}
		total += len(created)
	}
	return total, nil
}

func createBlocks(f *Factory, residents []Resident) (int, error) {
	count := len(residents) / 10
	for i := 0; i < count; i++ {
		blocker := residents[f.rng.Intn(len(residents))]
		blocked := residents[f.rng.Intn(len(residents))]
		if blocker.ID == blocked.ID {
			continue
		}
		if err := f.CreateBlock(blocker, blocked); err != nil {
			return i, err
		}
	}
	return count, nil
}

func createDeviceTokens(f *Factory, residents []Resident) (int, error) {
	count := 0
	for _, r := range residents {
		// most residents have one device, some have two, some none
		devices := f.rng.Intn(3)
		for i := 0; i < devices; i++ {
			if _, err := f.CreateDeviceToken(r); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func createNotifications(f *Factory, residents []Resident, buildings []uuid.UUID) (int, error) {
	count := 0

	broadcasts := []*models.Notification{
		{
			Type:    models.TypeNews,
			Title:   "Community newsletter",
			Message: gofakeit.Paragraph(1, 2, 10, " "),
			Scope:   models.ScopeBroadcast,
		},
		{
			Type:    models.TypeSystem,
			Title:   "Scheduled maintenance",
			Message: "The resident app will be unavailable Sunday 02:00-04:00.",
			Scope:   models.ScopeBroadcast,
		},
	}
	for _, n := range broadcasts {
		if err := f.CreateNotification(n); err != nil {
			return count, err
		}
		count++
	}

	for _, b := range buildings {
		buildingID := b
		n := &models.Notification{
			Type:             models.TypeNews,
			Title:            "Elevator inspection",
			Message:          gofakeit.Sentence(12),
			Scope:            models.ScopeBuilding,
			TargetBuildingID: &buildingID,
		}
		if err := f.CreateNotification(n); err != nil {
			return count, err
		}
		count++
	}

	roleNotice := &models.Notification{
		Type:       models.TypeSystem,
		Title:      "Shift schedule updated",
		Message:    gofakeit.Sentence(10),
		Scope:      models.ScopeRole,
		TargetRole: models.RoleAll,
	}
	if err := f.CreateNotification(roleNotice); err != nil {
		return count, err
	}
	count++

	// resident-scoped card events with reference ids, like the card service
	// would produce through the internal endpoint
	cardEvents := len(residents) / 5
	for i := 0; i < cardEvents; i++ {
		r := residents[f.rng.Intn(len(residents))]
		residentID := r.ID
		refID := uuid.New()
		n := &models.Notification{
			Type:             models.TypeCardApproved,
			Title:            "Your resident card was approved",
			Message:          "Pick it up at the management office.",
			Scope:            models.ScopeResident,
			TargetResidentID: &residentID,
			ReferenceID:      &refID,
			ReferenceType:    "CARD",
			ActionURL:        "/cards/" + refID.String(),
		}
		if err := f.CreateNotification(n); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}
