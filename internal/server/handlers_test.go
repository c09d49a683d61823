package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"ripple/internal/config"
	"ripple/internal/database"
	"ripple/internal/models"
	"ripple/internal/repository"
	"ripple/internal/service"
	"ripple/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newTestServer wires a Server against an in-memory database. No Redis, so
// caching and rate limiting stay out of the way.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	images, err := storage.NewImageStore(t.TempDir(), 5)
	require.NoError(t, err)

	s := &Server{
		config:      &config.Config{JWTSecret: "handler-test-secret", Env: "test"},
		db:          db,
		userRepo:    repository.NewUserRepository(db),
		postRepo:    repository.NewPostRepository(db),
		commentRepo: repository.NewCommentRepository(db),
		likeRepo:    repository.NewLikeRepository(db),
		images:      images,
	}
	s.postService = service.NewPostService(s.postRepo, s.likeRepo, images)
	s.commentService = service.NewCommentService(s.commentRepo, s.postRepo, s.likeRepo)
	s.likeService = service.NewLikeService(s.likeRepo, s.postRepo, s.commentRepo)
	return s
}

// newTestApp registers the API routes with a stub auth layer: the user ID in
// the X-Test-User header becomes the authenticated user.
func newTestApp(s *Server) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if uid := c.Get("X-Test-User"); uid != "" {
			var id uint
			fmt.Sscanf(uid, "%d", &id)
			c.Locals("userID", id)
		}
		return c.Next()
	})

	api := app.Group("/api")
	api.Get("/posts", s.GetPosts)
	api.Get("/posts/:id", s.GetPost)
	api.Post("/posts", s.CreatePost)
	api.Put("/posts/:id", s.UpdatePost)
	api.Post("/posts/:id", s.UpdatePost)
	api.Delete("/posts/:id", s.DeletePost)
	api.Get("/post/:postId/comments", s.GetComments)
	api.Post("/post/comments/:postId", s.CreateComment)
	api.Put("/post/comments/:commentId", s.UpdateComment)
	api.Delete("/post/comments/:commentId", s.DeleteComment)
	api.Post("/like/:type/:id", s.ToggleLike)
	api.Get("/like/:type/:id", s.GetLikes)
	api.Put("/user/update-profile", s.UpdateProfile)
	api.Put("/user/update-password", s.UpdatePassword)
	return app
}

func seedUser(t *testing.T, db *gorm.DB, first, email string) *models.User {
	t.Helper()
	user := &models.User{FirstName: first, LastName: "Tester", Email: email, Password: "irrelevant"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedPost(t *testing.T, db *gorm.DB, userID uint, content, visibility string) *models.Post {
	t.Helper()
	post := &models.Post{Content: content, UserID: userID, Visibility: visibility}
	require.NoError(t, db.Create(post).Error)
	return post
}

func doJSON(t *testing.T, app *fiber.App, method, path string, userID uint, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set("X-Test-User", fmt.Sprintf("%d", userID))
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

func TestFeedVisibility(t *testing.T) {
	s := newTestServer(t)
	app := newTestApp(s)

	owner := seedUser(t, s.db, "Owner", "owner@example.com")
	other := seedUser(t, s.db, "Other", "other@example.com")
	seedPost(t, s.db, owner.ID, "public post", models.VisibilityPublic)
	private := seedPost(t, s.db, owner.ID, "private post", models.VisibilityPrivate)

	t.Run("anonymous sees only public posts", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodGet, "/api/posts", 0, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		data := body["data"].([]any)
		assert.Len(t, data, 1)
		assert.Equal(t, float64(1), body["total"])
	})

	t.Run("owner sees own private post", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodGet, "/api/posts", owner.ID, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, body["data"].([]any), 2)
	})

	t.Run("other user gets 404 on private post", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/posts/%d", private.ID), other.ID, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("owner can fetch own private post", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/posts/%d", private.ID), owner.ID, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "private post", body["content"])
	})
}

func TestFeedPaginationEnvelope(t *testing.T) {
	s := newTestServer(t)
	app := newTestApp(s)

	author := seedUser(t, s.db, "Author", "author@example.com")
	for i := 0; i < 7; i++ {
		seedPost(t, s.db, author.ID, fmt.Sprintf("post %d", i), models.VisibilityPublic)
	}

	resp, body := doJSON(t, app, http.MethodGet, "/api/posts?page=2&per_page=3", 0, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["current_page"])
	assert.Equal(t, float64(3), body["per_page"])
	assert.Equal(t, float64(7), body["total"])
	assert.Equal(t, float64(3), body["last_page"])
	assert.Len(t, body["data"].([]any), 3)
}

func TestCreatePostValidation(t *testing.T) {
	s := newTestServer(t)
	app := newTestApp(s)
	author := seedUser(t, s.db, "Author", "author@example.com")

	t.Run("empty post rejected with 422", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPost, "/api/posts", author.ID, map[string]string{})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "VALIDATION_ERROR", body["code"])
	})

	t.Run("valid post created", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPost, "/api/posts", author.ID,
			map[string]string{"content": "hello feed"})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "hello feed", body["content"])
		assert.Equal(t, "public", body["visibility"])
	})
}

func TestCommentTreeShape(t *testing.T) {
	s := newTestServer(t)
	app := newTestApp(s)

	author := seedUser(t, s.db, "Author", "author@example.com")
	post := seedPost(t, s.db, author.ID, "discuss", models.VisibilityPublic)

	commentPath := fmt.Sprintf("/api/post/comments/%d", post.ID)

	// First top-level comment, then a reply chain beneath it, then a second
	// top-level comment.
	resp, first := doJSON(t, app, http.MethodPost, commentPath, author.ID,
		map[string]any{"content": "first top"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	firstID := uint(first["id"].(float64))

	resp, reply := doJSON(t, app, http.MethodPost, commentPath, author.ID,
		map[string]any{"content": "reply", "parent_id": firstID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	replyID := uint(reply["id"].(float64))

	resp, _ = doJSON(t, app, http.MethodPost, commentPath, author.ID,
		map[string]any{"content": "nested", "parent_id": replyID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, commentPath, author.ID,
		map[string]any{"content": "second top"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, tree := doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/post/%d/comments", post.ID), 0, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	comments := tree["comments"].([]any)
	require.Len(t, comments, 2)

	// Newest top-level first.
	top0 := comments[0].(map[string]any)
	top1 := comments[1].(map[string]any)
	assert.Equal(t, "second top", top0["content"])
	assert.Equal(t, "first top", top1["content"])

	// Reply chain nests under the first comment.
	replies := top1["replies"].([]any)
	require.Len(t, replies, 1)
	nested := replies[0].(map[string]any)["replies"].([]any)
	require.Len(t, nested, 1)
	assert.Equal(t, "nested", nested[0].(map[string]any)["content"])
}

func TestCommentValidationAndOwnership(t *testing.T) {
	s := newTestServer(t)
	app := newTestApp(s)

	author := seedUser(t, s.db, "Author", "author@example.com")
	other := seedUser(t, s.db, "Other", "other@example.com")
	post := seedPost(t, s.db, author.ID, "discuss", models.VisibilityPublic)

	resp, created := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/post/comments/%d", post.ID),
		author.ID, map[string]any{"content": "mine"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	commentID := uint(created["id"].(float64))

	t.Run("empty content 422", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/post/comments/%d", post.ID),
			author.ID, map[string]any{"content": "   "})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("comment on missing post 404", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodPost, "/api/post/comments/9999",
			author.ID, map[string]any{"content": "lost"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("non-owner update 403", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodPut, fmt.Sprintf("/api/post/comments/%d", commentID),
			other.ID, map[string]any{"content": "stolen"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("non-owner delete 403", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/post/comments/%d", commentID),
			other.ID, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("owner update succeeds", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPut, fmt.Sprintf("/api/post/comments/%d", commentID),
			author.ID, map[string]any{"content": "edited"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "edited", body["content"])
	})
}

func TestCommentDeleteCascades(t *testing.T) {
	s := newTestServer(t)
	app := newTestApp(s)

	author := seedUser(t, s.db, "Author", "author@example.com")
	replier := seedUser(t, s.db, "Replier", "replier@example.com")
	post := seedPost(t, s.db, author.ID, "discuss", models.VisibilityPublic)
	commentPath := fmt.Sprintf("/api/post/comments/%d", post.ID)

	_, root := doJSON(t, app, http.MethodPost, commentPath, author.ID, map[string]any{"content": "root"})
	rootID := uint(root["id"].(float64))
	_, reply := doJSON(t, app, http.MethodPost, commentPath, replier.ID,
		map[string]any{"content": "reply", "parent_id": rootID})
	replyID := uint(reply["id"].(float64))
	_, _ = doJSON(t, app, http.MethodPost, commentPath, author.ID,
		map[string]any{"content": "deep", "parent_id": replyID})
	_, _ = doJSON(t, app, http.MethodPost, commentPath, replier.ID, map[string]any{"content": "sibling"})

	// Like the reply so the cascade has like rows to clean up.
	resp, _ := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/like/comment/%d", replyID), author.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/post/comments/%d", rootID), author.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, tree := doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/post/%d/comments", post.ID), 0, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	comments := tree["comments"].([]any)
	require.Len(t, comments, 1)
	assert.Equal(t, "sibling", comments[0].(map[string]any)["content"])

	var likeCount int64
	require.NoError(t, s.db.Model(&models.Like{}).
		Where("subject_type = ? AND subject_id = ?", models.SubjectComment, replyID).
		Count(&likeCount).Error)
	assert.Equal(t, int64(0), likeCount)
}

func TestLikeToggle(t *testing.T) {
	s := newTestServer(t)
	app := newTestApp(s)

	author := seedUser(t, s.db, "Author", "author@example.com")
	liker := seedUser(t, s.db, "Liker", "liker@example.com")
	post := seedPost(t, s.db, author.ID, "likeable", models.VisibilityPublic)
	likePath := fmt.Sprintf("/api/like/post/%d", post.ID)

	t.Run("first toggle likes", func(t *testing.T) {
		resp, state := doJSON(t, app, http.MethodPost, likePath, liker.ID, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, state["liked"])
		assert.Equal(t, float64(1), state["count"])
		users := state["users"].([]any)
		require.Len(t, users, 1)
		assert.Equal(t, "Liker", users[0].(map[string]any)["first_name"])
	})

	t.Run("second toggle unlikes", func(t *testing.T) {
		resp, state := doJSON(t, app, http.MethodPost, likePath, liker.ID, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, false, state["liked"])
		assert.Equal(t, float64(0), state["count"])
		assert.Empty(t, state["users"])
	})

	t.Run("two likers both counted", func(t *testing.T) {
		_, _ = doJSON(t, app, http.MethodPost, likePath, liker.ID, nil)
		resp, state := doJSON(t, app, http.MethodPost, likePath, author.ID, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(2), state["count"])
	})

	t.Run("unknown subject type 422", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodPost, "/api/like/user/1", liker.ID, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("like missing post 404", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodPost, "/api/like/post/9999", liker.ID, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("liking others private post 404", func(t *testing.T) {
		private := seedPost(t, s.db, author.ID, "secret", models.VisibilityPrivate)
		resp, _ := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/like/post/%d", private.ID), liker.ID, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestPostUpdateAndDelete(t *testing.T) {
	s := newTestServer(t)
	app := newTestApp(s)

	owner := seedUser(t, s.db, "Owner", "owner@example.com")
	other := seedUser(t, s.db, "Other", "other@example.com")
	post := seedPost(t, s.db, owner.ID, "original", models.VisibilityPublic)
	postPath := fmt.Sprintf("/api/posts/%d", post.ID)

	t.Run("non-owner update 403", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodPut, postPath, other.ID, map[string]any{"content": "hijack"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("partial update keeps content", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPut, postPath, owner.ID, map[string]any{"visibility": "private"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "original", body["content"])
		assert.Equal(t, "private", body["visibility"])
	})

	t.Run("delete cascades comments and likes", func(t *testing.T) {
		_, comment := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/post/comments/%d", post.ID),
			owner.ID, map[string]any{"content": "bye"})
		commentID := uint(comment["id"].(float64))
		_, _ = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/like/comment/%d", commentID), owner.ID, nil)
		_, _ = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/like/post/%d", post.ID), owner.ID, nil)

		resp, _ := doJSON(t, app, http.MethodDelete, postPath, owner.ID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = doJSON(t, app, http.MethodGet, postPath, owner.ID, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		var likeCount int64
		require.NoError(t, s.db.Model(&models.Like{}).Count(&likeCount).Error)
		assert.Equal(t, int64(0), likeCount)

		var commentCount int64
		require.NoError(t, s.db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&commentCount).Error)
		assert.Equal(t, int64(0), commentCount)
	})
}
