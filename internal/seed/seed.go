// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"ripple/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
	// MaxDays bounds the created_at spread of generated posts. Zero means 90.
	MaxDays int
}

// Seed populates the database with test data
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("🌱 Starting database seeding with %d users and %d posts...", opts.NumUsers, opts.NumPosts)
	gofakeit.Seed(time.Now().UnixNano())

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("⚠️  Warning: Could not clear all existing data, but continuing anyway...")
		}
	}

	users, err := createUsers(db, opts.NumUsers)
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("✓ %d test users created", len(users))

	posts, err := createPosts(db, users, opts.NumPosts, opts.MaxDays)
	if err != nil {
		return fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("✓ %d posts created", len(posts))

	comments, err := createComments(db, users, posts)
	if err != nil {
		return fmt.Errorf("failed to create comments: %w", err)
	}
	log.Printf("✓ %d comments created", len(comments))

	likes, err := createLikes(db, users, posts, comments)
	if err != nil {
		return fmt.Errorf("failed to create likes: %w", err)
	}
	log.Printf("✓ %d likes created", likes)

	log.Println("🎉 Database seeding completed successfully!")
	return nil
}

func clearData(db *gorm.DB) error {
	log.Println("🗑️  Clearing existing data...")
	sql := `TRUNCATE TABLE likes, comments, posts, users RESTART IDENTITY CASCADE;`
	return db.Exec(sql).Error
}

func createUsers(db *gorm.DB, count int) ([]models.User, error) {
	users := make([]models.User, 0, count)
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("Password123!abc"), bcrypt.DefaultCost)

	// Always include some specific users for consistency if cleaning
	if count >= 3 {
		baseUsers := [][2]string{{"Demo", "User"}, {"Ripple", "Admin"}, {"Test", "Account"}}
		for _, pair := range baseUsers {
			user := models.User{
				FirstName: pair[0],
				LastName:  pair[1],
				Email:     fmt.Sprintf("%s@example.com", strings.ToLower(pair[0])),
				Password:  string(hashedPassword),
			}
			if err := db.Create(&user).Error; err == nil {
				users = append(users, user)
			}
		}
	}

	for i := len(users); i < count; i++ {
		first := gofakeit.FirstName()
		last := gofakeit.LastName()
		email := strings.ToLower(fmt.Sprintf("%s.%s%d@example.com", first, last, i))

		user := models.User{
			FirstName: first,
			LastName:  last,
			Email:     email,
			Password:  string(hashedPassword),
		}

		if err := db.Create(&user).Error; err != nil {
			log.Printf("Failed to create user %s: %v", email, err)
			continue
		}
		users = append(users, user)

		if i > 0 && i%100 == 0 {
			log.Printf("Created %d users...", i)
		}
	}

	return users, nil
}

func createPosts(db *gorm.DB, users []models.User, count, maxDays int) ([]models.Post, error) {
	if len(users) == 0 {
		return nil, fmt.Errorf("cannot create posts without users")
	}
	if maxDays <= 0 {
		maxDays = 90
	}
	//nolint:gosec // Weak random number generator is fine for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	posts := make([]models.Post, 0, count)

	for i := 0; i < count; i++ {
		user := users[r.Intn(len(users))]

		visibility := models.VisibilityPublic
		if r.Float32() < 0.2 {
			visibility = models.VisibilityPrivate
		}

		var image string
		if r.Float32() < 0.35 {
			image = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID())
		}

		post := models.Post{
			Content:    gofakeit.Paragraph(1, r.Intn(4)+1, r.Intn(12)+3, " "),
			Image:      image,
			Visibility: visibility,
			UserID:     user.ID,
			CreatedAt:  spreadTime(r, maxDays),
		}

		if err := db.Create(&post).Error; err != nil {
			return nil, err
		}
		posts = append(posts, post)

		if i > 0 && i%100 == 0 {
			log.Printf("Created %d posts...", i)
		}
	}

	return posts, nil
}

// createComments builds threads on public posts: a handful of top-level
// comments per post, each with a chance of nested replies.
func createComments(db *gorm.DB, users []models.User, posts []models.Post) ([]models.Comment, error) {
	//nolint:gosec // Weak random number generator is fine for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	comments := make([]models.Comment, 0)

	for _, post := range posts {
		if post.Visibility != models.VisibilityPublic {
			continue
		}
		topLevel := r.Intn(5)
		for i := 0; i < topLevel; i++ {
			parent, err := createComment(db, r, users, post.ID, nil)
			if err != nil {
				return nil, err
			}
			comments = append(comments, *parent)

			// nested replies, occasionally two levels deep
			current := parent
			for depth := 0; depth < 3 && r.Float32() < 0.4; depth++ {
				reply, replyErr := createComment(db, r, users, post.ID, &current.ID)
				if replyErr != nil {
					return nil, replyErr
				}
				comments = append(comments, *reply)
				current = reply
			}
		}
	}

	return comments, nil
}

func createComment(db *gorm.DB, r *rand.Rand, users []models.User, postID uint, parentID *uint) (*models.Comment, error) {
	comment := &models.Comment{
		Content:  gofakeit.Sentence(r.Intn(12) + 3),
		UserID:   users[r.Intn(len(users))].ID,
		PostID:   postID,
		ParentID: parentID,
	}
	if err := db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// createLikes sprinkles likes across posts and comments. The unique index on
// (subject_type, subject_id, user_id) makes repeat picks a no-op.
func createLikes(db *gorm.DB, users []models.User, posts []models.Post, comments []models.Comment) (int, error) {
	//nolint:gosec // Weak random number generator is fine for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	created := 0

	for _, post := range posts {
		likers := r.Intn(len(users) + 1)
		for i := 0; i < likers && i < 25; i++ {
			n, err := createLike(db, users[r.Intn(len(users))].ID, models.SubjectPost, post.ID)
			if err != nil {
				return created, err
			}
			created += n
		}
	}

	for _, comment := range comments {
		if r.Float32() >= 0.3 {
			continue
		}
		likers := r.Intn(4) + 1
		for i := 0; i < likers; i++ {
			n, err := createLike(db, users[r.Intn(len(users))].ID, models.SubjectComment, comment.ID)
			if err != nil {
				return created, err
			}
			created += n
		}
	}

	return created, nil
}

func createLike(db *gorm.DB, userID uint, subjectType string, subjectID uint) (int, error) {
	like := models.Like{
		UserID:      userID,
		SubjectType: subjectType,
		SubjectID:   subjectID,
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&like)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func spreadTime(r *rand.Rand, maxDays int) time.Time {
	daysBack := r.Intn(maxDays)
	hoursBack := r.Intn(24)
	minsBack := r.Intn(60)
	return time.Now().Add(-time.Duration(daysBack)*24*time.Hour -
		time.Duration(hoursBack)*time.Hour -
		time.Duration(minsBack)*time.Minute)
}
