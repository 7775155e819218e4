package server

import (
	"errors"
	"strings"
	"unicode"

	"feedpulse/internal/models"
	"feedpulse/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

var validate = validator.New()

// CursorPage holds parsed take/cursor query parameters.
type CursorPage struct {
	Take   int
	Cursor uint
}

type cursorQuery struct {
	Take   *int `query:"take" validate:"omitempty,min=1,max=100"`
	Cursor uint `query:"cursor"`
}

// parseCursorPage reads take and cursor. An absent take means the default
// page size; a malformed or out-of-range one is rejected with 400.
func parseCursorPage(c *fiber.Ctx) (CursorPage, error) {
	var q cursorQuery
	if err := c.QueryParser(&q); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid pagination parameters"))
		return CursorPage{}, errResponseWritten
	}
	if err := validate.Struct(q); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("take must be between 1 and 100"))
		return CursorPage{}, errResponseWritten
	}
	page := CursorPage{Take: service.DefaultPageSize, Cursor: q.Cursor}
	if q.Take != nil {
		page.Take = *q.Take
	}
	return page, nil
}

// bindJSON parses and validates a request body.
// On failure it writes a 400 JSON response and returns errResponseWritten.
func bindJSON(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	if err := validate.Struct(req); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(validationMessage(err)))
		return errResponseWritten
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request body"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return field + " is too long (max " + fe.Param() + ")"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	}
	return "Invalid " + field
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "userId" -> "user ID", "postId" -> "post ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// currentUserID returns the authenticated caller, or 0 for anonymous requests.
func currentUserID(c *fiber.Ctx) uint {
	userID, _ := c.Locals("userID").(uint)
	return userID
}

// statusFor maps an AppError code to its HTTP status.
func statusFor(err error) int {
	switch models.ErrorCode(err) {
	case models.CodeValidation, models.CodeAlreadySet:
		return fiber.StatusBadRequest
	case models.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeConflict:
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, statusFor(err), err)
}
