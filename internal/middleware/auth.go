package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"feedpulse/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

var (
	errMissingHeader = errors.New("Authorization header required")
	errHeaderFormat  = errors.New("Invalid authorization header format")
	errInvalidToken  = errors.New("Invalid or expired token")
	errInvalidClaims = errors.New("Invalid token claims")
	errMissingSub    = errors.New("Invalid token structure - missing subject")
	errSubjectType   = errors.New("Invalid token subject type")
	errSubjectValue  = errors.New("Invalid user ID in token")
)

// userIDFromHeader verifies a "Bearer <token>" header and returns its subject.
func userIDFromHeader(authHeader string) (uint, error) {
	if authHeader == "" {
		return 0, errMissingHeader
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return 0, errHeaderFormat
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errInvalidClaims
	}

	// Extract user ID from "sub" claim (subject claim per RFC 7519)
	subClaim, ok := claims["sub"]
	if !ok {
		return 0, errMissingSub
	}
	subStr, ok := subClaim.(string)
	if !ok {
		return 0, errSubjectType
	}

	userIDVal, err := strconv.ParseUint(subStr, 10, 32)
	if err != nil || userIDVal == 0 {
		return 0, errSubjectValue
	}
	return uint(userIDVal), nil
}

// AuthRequired is a middleware that enforces authentication for protected routes.
func AuthRequired(c *fiber.Ctx) error {
	userID, err := userIDFromHeader(c.Get("Authorization"))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	setUser(c, userID)
	return c.Next()
}

// setUser stores the caller in locals and in the user context read by Logger.
func setUser(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, userID))
}

// OptionalAuth sets userID when a valid token is presented and otherwise lets
// the request through anonymously. Read endpoints use it to count viewers.
func OptionalAuth(c *fiber.Ctx) error {
	if userID, err := userIDFromHeader(c.Get("Authorization")); err == nil {
		setUser(c, userID)
	}
	return c.Next()
}

// SignToken issues an HS256 token whose subject is userID, in the form
// AuthRequired accepts.
func SignToken(secret string, userID uint, ttl time.Duration) (string, error) {
	if userID == 0 {
		return "", errSubjectValue
	}
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
