package server

import (
	"feedpulse/internal/featureflags"

	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags returns configured feature flags and evaluated state for current user.
// @Summary Feature flags for the caller
// @Tags flags
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{raw=map[string]string,evaluated=map[string]bool}
// @Router /feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID := currentUserID(c)

	if s.featureFlags == nil {
		return c.JSON(fiber.Map{
			"raw":       map[string]string{},
			"evaluated": map[string]bool{featureflags.ViewTracking: true},
		})
	}

	evaluated := s.featureFlags.Snapshot(userID)
	evaluated[featureflags.ViewTracking] = s.featureFlags.EnabledOr(featureflags.ViewTracking, userID, true)
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": evaluated,
	})
}
