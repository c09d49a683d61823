package server

import (
	"mime/multipart"

	"ripple/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts?page=&per_page=
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	perPage := c.QueryInt("per_page", service.DefaultPerPage)

	feed, err := s.postService.List(c.Context(), page, perPage, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(feed)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.Get(c.Context(), id, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts (multipart or JSON)
func (s *Server) CreatePost(c *fiber.Ctx) error {
	in := service.CreatePostInput{
		UserID:     currentUserID(c),
		Content:    c.FormValue("content"),
		Visibility: c.FormValue("visibility"),
		Image:      formImage(c),
	}

	post, err := s.postService.Create(c.Context(), in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PUT /api/posts/:id. Fields absent from the form are left
// untouched; remove_image=true clears the image without replacing it.
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	in := service.UpdatePostInput{
		UserID:      currentUserID(c),
		PostID:      id,
		Image:       formImage(c),
		RemoveImage: c.FormValue("remove_image") == "true" || c.FormValue("remove_image") == "1",
	}
	if form, formErr := c.MultipartForm(); formErr == nil {
		if vals, ok := form.Value["content"]; ok && len(vals) > 0 {
			in.Content = &vals[0]
		}
		if vals, ok := form.Value["visibility"]; ok && len(vals) > 0 {
			in.Visibility = &vals[0]
		}
	} else {
		var body struct {
			Content     *string `json:"content" form:"content"`
			Visibility  *string `json:"visibility" form:"visibility"`
			RemoveImage bool    `json:"remove_image" form:"remove_image"`
		}
		if parseErr := c.BodyParser(&body); parseErr == nil {
			in.Content = body.Content
			in.Visibility = body.Visibility
			in.RemoveImage = in.RemoveImage || body.RemoveImage
		}
	}

	post, err := s.postService.Update(c.Context(), in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.Delete(c.Context(), service.DeletePostInput{
		UserID: currentUserID(c),
		PostID: id,
	}); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "post deleted"})
}

// formImage returns the uploaded image file, or nil when the request carries
// none.
func formImage(c *fiber.Ctx) *multipart.FileHeader {
	file, err := c.FormFile("image")
	if err != nil {
		return nil
	}
	return file
}
