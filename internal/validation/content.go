// Package validation holds the input rules shared by the API and the tools.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxContentRunes bounds a post body after trimming.
const MaxContentRunes = 5000

var (
	ErrContentRequired = errors.New("content is required")
	ErrContentTooLong  = fmt.Errorf("content too long (max %d characters)", MaxContentRunes)
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)

// PostContent trims surrounding whitespace and checks the body length in runes.
func PostContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrContentRequired
	}
	if utf8.RuneCountInString(content) > MaxContentRunes {
		return "", ErrContentTooLong
	}
	return content, nil
}

// Username validates an account handle.
func Username(name string) error {
	if !usernameRegex.MatchString(name) {
		return fmt.Errorf("username must be 3-32 characters of letters, numbers, '_', '.' or '-'")
	}
	return nil
}
