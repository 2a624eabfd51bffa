package http

import (
	"strings"

	"smsfilter/core/domain"
	"smsfilter/core/service/importer"
	"smsfilter/core/service/message"
	"smsfilter/pkg/apperr"
	"smsfilter/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// MessageHandler exposes the foreground working set.
type MessageHandler struct {
	messages *message.Service
	importer *importer.Importer
}

func NewMessageHandler(messages *message.Service, imp *importer.Importer) *MessageHandler {
	if imp == nil {
		imp = importer.New(nil)
	}
	return &MessageHandler{messages: messages, importer: imp}
}

func (h *MessageHandler) Register(router fiber.Router) {
	msgs := router.Group("/messages")
	msgs.Get("/", h.List)
	msgs.Post("/import", h.Import)
	msgs.Get("/import/template/:format", h.Template)
	msgs.Post("/apply-ai", h.ApplyAllAI)
	msgs.Post("/delete", h.DeleteMany)
	msgs.Delete("/signature/:signature", h.DeleteBySignature)
	msgs.Delete("/category/:category", h.DeleteByCategory)
	msgs.Delete("/", h.DeleteAll)
	msgs.Get("/:id", h.Get)
	msgs.Put("/:id/category", h.SetCategory)
	msgs.Post("/:id/apply-ai", h.ApplyAI)
	msgs.Delete("/:id", h.Delete)

	router.Get("/groups/signatures", h.GroupBySignature)
	router.Get("/groups/categories", h.GroupByCategory)
	router.Get("/stats", h.Stats)
	router.Post("/sync", h.Sync)
}

// List returns the working set newest first, optionally narrowed by
// category (effective category) or signature.
func (h *MessageHandler) List(c *fiber.Ctx) error {
	all := h.messages.Messages()

	var catFilter *domain.Category
	if v := c.Query("category"); v != "" {
		cat, ok := domain.ParseCategory(v)
		if !ok {
			return apperr.InvalidInput("category", "unknown category "+v)
		}
		catFilter = &cat
	}
	sigFilter := c.Query("signature")

	filtered := all[:0]
	for i := range all {
		if catFilter != nil && domain.EffectiveCategory(&all[i]) != *catFilter {
			continue
		}
		if sigFilter != "" && all[i].Signature != sigFilter {
			continue
		}
		filtered = append(filtered, all[i])
	}

	page := response.GetPage(c, defaultPageSize, maxPageSize)
	lo, hi, more := page.Window(len(filtered))
	return response.OKWithMeta(c, filtered[lo:hi], &response.Meta{
		Total:    len(filtered),
		Page:     page.Page,
		PageSize: page.PageSize,
		HasMore:  more,
	})
}

func (h *MessageHandler) Get(c *fiber.Ctx) error {
	m, err := h.messages.Get(param(c, "id"))
	if err != nil {
		return err
	}
	return response.OK(c, m)
}

type importResponse struct {
	Parsed int `json:"parsed"`
	Added  int `json:"added"`
	Total  int `json:"total"`
}

// Import parses the raw body (format from ?format= or detected) and merges it.
func (h *MessageHandler) Import(c *fiber.Ctx) error {
	body := c.Body()
	if len(strings.TrimSpace(string(body))) == 0 {
		return apperr.MissingField("body")
	}

	parsed, err := h.importer.Parse(c.Query("format"), body)
	if err != nil {
		return err
	}
	added := h.messages.Import(c.UserContext(), parsed)
	return response.OK(c, importResponse{
		Parsed: len(parsed),
		Added:  added,
		Total:  len(h.messages.Messages()),
	})
}

func (h *MessageHandler) Template(c *fiber.Ctx) error {
	format := strings.ToLower(param(c, "format"))
	tpl, err := importer.Template(format)
	if err != nil {
		return err
	}
	contentType := "text/csv; charset=utf-8"
	if format == importer.FormatJSON {
		contentType = fiber.MIMEApplicationJSONCharsetUTF8
	}
	return response.Text(c, contentType, "messages_template."+format, tpl)
}

type setCategoryRequest struct {
	Category string `json:"category"`
}

func (h *MessageHandler) SetCategory(c *fiber.Ctx) error {
	var req setCategoryRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	cat, ok := domain.ParseCategory(req.Category)
	if !ok {
		return apperr.InvalidInput("category", "unknown category "+req.Category)
	}
	id := param(c, "id")
	if err := h.messages.SetCategory(c.UserContext(), id, cat); err != nil {
		return err
	}
	m, err := h.messages.Get(id)
	if err != nil {
		return err
	}
	return response.OK(c, m)
}

func (h *MessageHandler) ApplyAI(c *fiber.Ctx) error {
	id := param(c, "id")
	if err := h.messages.ApplyAICategory(c.UserContext(), id); err != nil {
		return err
	}
	m, err := h.messages.Get(id)
	if err != nil {
		return err
	}
	return response.OK(c, m)
}

func (h *MessageHandler) ApplyAllAI(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{"changed": h.messages.ApplyAllAICategories(c.UserContext())})
}

func (h *MessageHandler) Delete(c *fiber.Ctx) error {
	if err := h.messages.Delete(c.UserContext(), param(c, "id")); err != nil {
		return err
	}
	return response.OK(c, fiber.Map{"removed": 1})
}

type deleteManyRequest struct {
	IDs []string `json:"ids"`
}

func (h *MessageHandler) DeleteMany(c *fiber.Ctx) error {
	var req deleteManyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if len(req.IDs) == 0 {
		return apperr.MissingField("ids")
	}
	return response.OK(c, fiber.Map{"removed": h.messages.DeleteMany(c.UserContext(), req.IDs)})
}

func (h *MessageHandler) DeleteBySignature(c *fiber.Ctx) error {
	removed := h.messages.DeleteBySignature(c.UserContext(), param(c, "signature"))
	return response.OK(c, fiber.Map{"removed": removed})
}

func (h *MessageHandler) DeleteByCategory(c *fiber.Ctx) error {
	cat, err := categoryParam(c, "category")
	if err != nil {
		return err
	}
	return response.OK(c, fiber.Map{"removed": h.messages.DeleteByCategory(c.UserContext(), cat)})
}

func (h *MessageHandler) DeleteAll(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{"removed": h.messages.DeleteAll(c.UserContext())})
}

func (h *MessageHandler) GroupBySignature(c *fiber.Ctx) error {
	return response.OK(c, h.messages.GroupBySignature())
}

func (h *MessageHandler) GroupByCategory(c *fiber.Ctx) error {
	return response.OK(c, h.messages.GroupByCategory())
}

func (h *MessageHandler) Stats(c *fiber.Ctx) error {
	return response.OK(c, h.messages.Stats())
}

// Sync pulls the shared classification history into the working set.
func (h *MessageHandler) Sync(c *fiber.Ctx) error {
	added, err := h.messages.SyncAndReclassify(c.UserContext())
	if err != nil {
		return err
	}
	return response.OK(c, fiber.Map{
		"added": added,
		"total": len(h.messages.Messages()),
	})
}
