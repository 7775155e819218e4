package server

import (
	"feedpulse/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createPostRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

type updatePostRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createPostRequest true "Post content"
// @Success 201 {object} models.PostWithStats
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req createPostRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	post, err := s.posts.CreatePost(c.UserContext(), service.CreatePostInput{
		AuthorID: currentUserID(c),
		Content:  req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPosts handles GET /api/posts
// @Summary List posts, newest first
// @Tags posts
// @Produce json
// @Param take query int false "Page size (1-100)"
// @Param cursor query int false "Return posts older than this id"
// @Success 200 {object} service.PostPage
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page, err := parseCursorPage(c)
	if err != nil {
		return nil
	}
	return s.listPosts(c, page, 0)
}

// GetUserPosts handles GET /api/posts/from-user/:userId
// @Summary List one author's posts, newest first
// @Tags posts
// @Produce json
// @Param userId path int true "Author ID"
// @Param take query int false "Page size (1-100)"
// @Param cursor query int false "Return posts older than this id"
// @Success 200 {object} service.PostPage
// @Failure 400 {object} models.ErrorResponse
// @Router /posts/from-user/{userId} [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	authorID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	page, err := parseCursorPage(c)
	if err != nil {
		return nil
	}
	return s.listPosts(c, page, authorID)
}

func (s *Server) listPosts(c *fiber.Ctx, page CursorPage, authorID uint) error {
	result, err := s.posts.ListPosts(c.UserContext(), service.ListPostsInput{
		Take:     page.Take,
		Cursor:   page.Cursor,
		AuthorID: authorID,
		ViewerID: currentUserID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post with its likes, dislikes and views
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.PostWithStats
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.posts.GetPost(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// UpdatePost handles PATCH /api/posts/:id
// @Summary Edit a post you authored
// @Tags posts
// @Accept json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body updatePostRequest true "New content"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [patch]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req updatePostRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	_, err = s.posts.UpdatePost(c.UserContext(), service.UpdatePostInput{
		AuthorID: currentUserID(c),
		PostID:   postID,
		Content:  req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post you authored
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	err = s.posts.DeletePost(c.UserContext(), service.DeletePostInput{
		AuthorID: currentUserID(c),
		PostID:   postID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
