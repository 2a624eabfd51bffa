// Package http exposes the filter, message and rules services over fiber.
package http

import (
	"net/url"

	"smsfilter/core/domain"
	"smsfilter/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// param returns a path parameter with percent-escapes decoded, so Chinese
// signatures and labels can be addressed directly.
func param(c *fiber.Ctx, name string) string {
	raw := c.Params(name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// categoryParam parses a category code or display name.
func categoryParam(c *fiber.Ctx, name string) (domain.Category, error) {
	v := param(c, name)
	cat, ok := domain.ParseCategory(v)
	if !ok {
		return "", apperr.InvalidInput(name, "unknown category "+v)
	}
	return cat, nil
}

// parseBody decodes the JSON body into v.
func parseBody(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	return nil
}

func parseAction(s string) (domain.FilterAction, error) {
	var a domain.FilterAction
	if err := a.UnmarshalText([]byte(s)); err != nil {
		return "", apperr.InvalidInput("action", err.Error())
	}
	return a, nil
}
