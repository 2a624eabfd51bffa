// Package response provides the JSON envelope used by every API route.
package response

import (
	"github.com/gofiber/fiber/v2"
)

// =============================================================================
// Standard API Response
// =============================================================================

// Response is the standard API response structure.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta carries list metadata.
type Meta struct {
	Total    int  `json:"total"`
	Page     int  `json:"page,omitempty"`
	PageSize int  `json:"page_size,omitempty"`
	HasMore  bool `json:"has_more,omitempty"`
}

// =============================================================================
// Response Builders
// =============================================================================

// OK returns a successful response.
func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(Response{Success: true, Data: data})
}

// OKWithMeta returns a successful response with metadata.
func OKWithMeta(c *fiber.Ctx, data interface{}, meta *Meta) error {
	return c.JSON(Response{Success: true, Data: data, Meta: meta})
}

// Created returns a 201 created response.
func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(Response{Success: true, Data: data})
}

// Error returns an error response.
func Error(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(Response{
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: message},
	})
}

// Text returns a plain text attachment, used for import templates.
func Text(c *fiber.Ctx, contentType, filename, body string) error {
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.SendString(body)
}

// =============================================================================
// Pagination Helper
// =============================================================================

// Page is a resolved page window.
type Page struct {
	Page     int
	PageSize int
	Offset   int
}

// GetPage reads page/page_size, clamped to maxPageSize. page_size=0 asks for
// everything.
func GetPage(c *fiber.Ctx, defaultPageSize, maxPageSize int) Page {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	size := c.QueryInt("page_size", defaultPageSize)
	if size < 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return Page{Page: page, PageSize: size, Offset: (page - 1) * size}
}

// Window returns the [lo, hi) bounds of the page within total items and
// whether more items follow.
func (p Page) Window(total int) (lo, hi int, more bool) {
	if p.PageSize == 0 {
		return 0, total, false
	}
	lo = p.Offset
	if lo > total {
		lo = total
	}
	hi = lo + p.PageSize
	if hi > total {
		hi = total
	}
	return lo, hi, hi < total
}
