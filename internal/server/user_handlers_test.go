package server

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"ripple/internal/cache"
	"ripple/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func seedUserWithPassword(t *testing.T, s *Server, email, password string) *models.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{FirstName: "Settings", LastName: "Tester", Email: email, Password: string(hashed)}
	require.NoError(t, s.db.Create(user).Error)
	return user
}

func TestUpdateProfile(t *testing.T) {
	s := newTestServer(t)
	app := newTestApp(s)

	user := seedUser(t, s.db, "Before", "before@example.com")
	taken := seedUser(t, s.db, "Taken", "taken@example.com")

	t.Run("updates name and email", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPut, "/api/user/update-profile", user.ID,
			map[string]string{"first_name": "After", "last_name": "Renamed", "email": "after@example.com"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "profile updated", body["message"])

		updated := body["user"].(map[string]any)
		assert.Equal(t, "After", updated["first_name"])
		assert.Equal(t, "after@example.com", updated["email"])

		var stored models.User
		require.NoError(t, s.db.First(&stored, user.ID).Error)
		assert.Equal(t, "After", stored.FirstName)
		assert.Equal(t, "after@example.com", stored.Email)
	})

	t.Run("rejects another user's email with 409", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPut, "/api/user/update-profile", user.ID,
			map[string]string{"first_name": "After", "last_name": "Renamed", "email": taken.Email})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "VALIDATION_ERROR", body["code"])
	})

	t.Run("keeping own email is not a conflict", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodPut, "/api/user/update-profile", user.ID,
			map[string]string{"first_name": "After", "last_name": "Renamed", "email": "after@example.com"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("empty first name rejected with 422", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPut, "/api/user/update-profile", user.ID,
			map[string]string{"first_name": "", "last_name": "Renamed", "email": "after@example.com"})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "VALIDATION_ERROR", body["code"])
	})

	t.Run("malformed email rejected with 422", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPut, "/api/user/update-profile", user.ID,
			map[string]string{"first_name": "After", "last_name": "Renamed", "email": "not-an-email"})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "VALIDATION_ERROR", body["code"])
	})
}

func TestUpdatePassword(t *testing.T) {
	const current = "Current-Pass-1!"
	const next = "Replacement-Pass-2!"

	s := newTestServer(t)
	app := newTestApp(s)
	user := seedUserWithPassword(t, s, "settings@example.com", current)

	t.Run("confirmation mismatch rejected with 422", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPut, "/api/user/update-password", user.ID,
			map[string]string{
				"current_password":          current,
				"new_password":              next,
				"new_password_confirmation": "Something-Else-3!",
			})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "VALIDATION_ERROR", body["code"])
	})

	t.Run("weak new password rejected with 422", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPut, "/api/user/update-password", user.ID,
			map[string]string{
				"current_password":          current,
				"new_password":              "short",
				"new_password_confirmation": "short",
			})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "VALIDATION_ERROR", body["code"])
	})

	t.Run("wrong current password rejected with 422", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPut, "/api/user/update-password", user.ID,
			map[string]string{
				"current_password":          "Not-The-Right-One-9!",
				"new_password":              next,
				"new_password_confirmation": next,
			})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "VALIDATION_ERROR", body["code"])

		var stored models.User
		require.NoError(t, s.db.First(&stored, user.ID).Error)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte(current)))
	})

	t.Run("correct current password rehashes", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPut, "/api/user/update-password", user.ID,
			map[string]string{
				"current_password":          current,
				"new_password":              next,
				"new_password_confirmation": next,
			})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "password updated", body["message"])

		var stored models.User
		require.NoError(t, s.db.First(&stored, user.ID).Error)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte(next)))
		assert.Error(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte(current)))
	})
}

// A cached user carries no password hash, so the settings handlers must read
// the row fresh. Warm the cache first and make sure the hash survives.
func TestUpdatePassword_AfterCachedRead(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	const current = "Current-Pass-1!"
	const next = "Replacement-Pass-2!"

	s := newTestServer(t)
	app := newTestApp(s)
	user := seedUserWithPassword(t, s, "cached@example.com", current)

	_, err := s.userRepo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists(fmt.Sprintf("user:%d", user.ID)))

	resp, _ := doJSON(t, app, http.MethodPut, "/api/user/update-password", user.ID,
		map[string]string{
			"current_password":          current,
			"new_password":              next,
			"new_password_confirmation": next,
		})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var stored models.User
	require.NoError(t, s.db.First(&stored, user.ID).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte(next)))
	assert.False(t, mr.Exists(fmt.Sprintf("user:%d", user.ID)))
}
