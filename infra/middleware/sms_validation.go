package middleware

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"smsfilter/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// PreventPathTraversal blocks path traversal attempts
func PreventPathTraversal() fiber.Handler {
	traversalPatterns := []string{
		"..",
		"%2e%2e",
		"..%2f",
		"..%5c",
	}

	return func(c *fiber.Ctx) error {
		path := strings.ToLower(string(c.Request().URI().PathOriginal()))
		for _, pattern := range traversalPatterns {
			if strings.Contains(path, pattern) {
				return apperr.BadRequest("invalid path")
			}
		}
		return c.Next()
	}
}

// ValidateParamLength rejects an empty path parameter, or one longer than
// maxRunes once percent-decoded.
func ValidateParamLength(name string, maxRunes int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		value := c.Params(name)
		if decoded, err := url.PathUnescape(value); err == nil {
			value = decoded
		}
		value = strings.TrimSpace(value)
		if value == "" {
			return apperr.MissingField(name)
		}
		if utf8.RuneCountInString(value) > maxRunes {
			return apperr.InvalidInput(name, fmt.Sprintf("must be at most %d characters", maxRunes))
		}
		return c.Next()
	}
}
