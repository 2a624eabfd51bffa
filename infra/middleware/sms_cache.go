package middleware

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ETag tags successful GET responses with a body hash and answers 304 when
// If-None-Match carries the same tag. Paths containing any of skip are left
// untouched.
func ETag(skip ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodGet && c.Method() != fiber.MethodHead {
			return c.Next()
		}
		path := c.Path()
		for _, s := range skip {
			if strings.Contains(path, s) {
				return c.Next()
			}
		}

		if err := c.Next(); err != nil {
			return err
		}
		if c.Response().StatusCode() != fiber.StatusOK {
			return nil
		}
		body := c.Response().Body()
		if len(body) == 0 {
			return nil
		}

		sum := md5.Sum(body)
		etag := `"` + hex.EncodeToString(sum[:]) + `"`
		c.Set(fiber.HeaderETag, etag)

		if matchesETag(c.Get(fiber.HeaderIfNoneMatch), etag) {
			c.Status(fiber.StatusNotModified)
			c.Response().SetBody(nil)
		}
		return nil
	}
}

func matchesETag(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == etag || candidate == "*" {
			return true
		}
	}
	return false
}

// NoCache marks responses as uncacheable. Filter decisions depend on rules
// that can change at any time.
func NoCache() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "no-cache, no-store, must-revalidate")
		c.Set(fiber.HeaderPragma, "no-cache")
		return c.Next()
	}
}
