// Package client provides a Go client for the Ripple API plus an in-memory
// feed cache that applies optimistic like and comment updates and reconciles
// them against server responses.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"ripple/internal/models"
)

// APIError is a decoded error response from the API.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Status == http.StatusNotFound
}

// Client is an explicit API session. The bearer token lives on the session,
// set at login and cleared at logout, so callers never share global auth
// state.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientWithHTTPClient creates a client using the provided http.Client.
func NewClientWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// SetToken installs a bearer token on the session.
func (c *Client) SetToken(token string) { c.token = token }

// ClearToken ends the session's authenticated state.
func (c *Client) ClearToken() { c.token = "" }

// Authenticated reports whether the session holds a token.
func (c *Client) Authenticated() bool { return c.token != "" }

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Signup registers a new account and stores the returned token on the session.
func (c *Client) Signup(ctx context.Context, firstName, lastName, email, password string) (*AuthResponse, error) {
	body := map[string]string{
		"first_name": firstName,
		"last_name":  lastName,
		"email":      email,
		"password":   password,
	}
	var resp AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/signup", body, &resp); err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp, nil
}

// Login authenticates and stores the returned token on the session.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	body := map[string]string{"email": email, "password": password}
	var resp AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp, nil
}

// Logout clears the session token. The server keeps no session state.
func (c *Client) Logout() { c.ClearToken() }

// Me fetches the authenticated user.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile changes the authenticated user's name and email and returns
// the updated user.
func (c *Client) UpdateProfile(ctx context.Context, firstName, lastName, email string) (*models.User, error) {
	body := map[string]string{
		"first_name": firstName,
		"last_name":  lastName,
		"email":      email,
	}
	var resp struct {
		Message string       `json:"message"`
		User    *models.User `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodPut, "/api/user/update-profile", body, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// UpdatePassword changes the authenticated user's password. The server checks
// the current password before rehashing.
func (c *Client) UpdatePassword(ctx context.Context, currentPassword, newPassword string) error {
	body := map[string]string{
		"current_password":          currentPassword,
		"new_password":              newPassword,
		"new_password_confirmation": newPassword,
	}
	return c.doJSON(ctx, http.MethodPut, "/api/user/update-password", body, nil)
}

// ListPosts fetches a page of the feed.
func (c *Client) ListPosts(ctx context.Context, page, perPage int) (*models.PostPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		q.Set("per_page", strconv.Itoa(perPage))
	}
	path := "/api/posts"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var pageResp models.PostPage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &pageResp); err != nil {
		return nil, err
	}
	return &pageResp, nil
}

// GetPost fetches a single post.
func (c *Client) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/posts/%d", id), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// CreatePost creates a post. image may be nil; when present it is uploaded
// as a multipart file named after imageName.
func (c *Client) CreatePost(ctx context.Context, content, visibility string, image io.Reader, imageName string) (*models.Post, error) {
	fields := map[string]string{"content": content}
	if visibility != "" {
		fields["visibility"] = visibility
	}
	var post models.Post
	if err := c.doMultipart(ctx, http.MethodPost, "/api/posts", fields, image, imageName, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// PostUpdate carries a partial post update. Nil fields are left unchanged.
type PostUpdate struct {
	Content     *string `json:"content,omitempty"`
	Visibility  *string `json:"visibility,omitempty"`
	RemoveImage bool    `json:"remove_image,omitempty"`
}

// UpdatePost applies a partial update to an owned post.
func (c *Client) UpdatePost(ctx context.Context, id uint, update PostUpdate) (*models.Post, error) {
	var post models.Post
	if err := c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/api/posts/%d", id), update, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// UpdatePostWithImage applies a partial update that replaces the post image.
func (c *Client) UpdatePostWithImage(ctx context.Context, id uint, update PostUpdate, image io.Reader, imageName string) (*models.Post, error) {
	fields := map[string]string{}
	if update.Content != nil {
		fields["content"] = *update.Content
	}
	if update.Visibility != nil {
		fields["visibility"] = *update.Visibility
	}
	if update.RemoveImage {
		fields["remove_image"] = "true"
	}
	var post models.Post
	if err := c.doMultipart(ctx, http.MethodPost, fmt.Sprintf("/api/posts/%d", id), fields, image, imageName, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// DeletePost deletes an owned post.
func (c *Client) DeletePost(ctx context.Context, id uint) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/posts/%d", id), nil, nil)
}

// ListComments fetches the nested comment tree of a post.
func (c *Client) ListComments(ctx context.Context, postID uint) (*models.CommentThread, error) {
	var thread models.CommentThread
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/post/%d/comments", postID), nil, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

// CreateComment creates a comment or, when parentID is non-nil, a reply.
func (c *Client) CreateComment(ctx context.Context, postID uint, content string, parentID *uint) (*models.Comment, error) {
	body := map[string]interface{}{"content": content}
	if parentID != nil {
		body["parent_id"] = *parentID
	}
	var comment models.Comment
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/post/comments/%d", postID), body, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// UpdateComment edits an owned comment.
func (c *Client) UpdateComment(ctx context.Context, commentID uint, content string) (*models.Comment, error) {
	body := map[string]string{"content": content}
	var comment models.Comment
	if err := c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/api/post/comments/%d", commentID), body, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// DeleteComment deletes an owned comment and its replies.
func (c *Client) DeleteComment(ctx context.Context, commentID uint) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/post/comments/%d", commentID), nil, nil)
}

// ToggleLike flips the caller's like on a subject and returns the server's
// authoritative like state.
func (c *Client) ToggleLike(ctx context.Context, subjectType string, id uint) (*models.LikeState, error) {
	var state models.LikeState
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/like/%s/%d", subjectType, id), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// GetLikes fetches the like state of a subject.
func (c *Client) GetLikes(ctx context.Context, subjectType string, id uint) (*models.LikeState, error) {
	var state models.LikeState
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/like/%s/%d", subjectType, id), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) doMultipart(ctx context.Context, method, path string, fields map[string]string, image io.Reader, imageName string, out interface{}) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("failed to write form field: %w", err)
		}
	}
	if image != nil {
		part, err := writer.CreateFormFile("image", imageName)
		if err != nil {
			return fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := io.Copy(part, image); err != nil {
			return fmt.Errorf("failed to copy image: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
