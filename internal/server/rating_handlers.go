package server

import (
	"feedpulse/internal/models"

	"github.com/gofiber/fiber/v2"
)

type ratePostQuery struct {
	State string `query:"state" validate:"omitempty,oneof=Like Dislike"`
}

// RatePost handles POST /api/posts/:id/rating?state=Like|Dislike
// @Summary Like, dislike or clear your rating of a post
// @Description Omitting state clears the rating. Asking for the current state again is rejected.
// @Tags ratings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param state query string false "Like or Dislike; empty clears"
// @Success 200 {object} models.PostStats
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /posts/{id}/rating [post]
func (s *Server) RatePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var q ratePostQuery
	if err := c.QueryParser(&q); err != nil || validate.Struct(q) != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("state must be Like, Dislike or omitted"))
	}

	stats, err := s.ratings.ApplyTransition(c.UserContext(), postID, currentUserID(c), models.RatingType(q.State))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}
