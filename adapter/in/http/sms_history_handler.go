package http

import (
	"smsfilter/core/domain"
	"smsfilter/pkg/apperr"
	"smsfilter/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// HistoryHandler exposes the shared classification history read-only.
type HistoryHandler struct {
	history domain.ClassificationHistoryRepository
}

func NewHistoryHandler(history domain.ClassificationHistoryRepository) *HistoryHandler {
	return &HistoryHandler{history: history}
}

func (h *HistoryHandler) Register(router fiber.Router) {
	router.Get("/history", h.List)
	router.Get("/history/latest", h.Latest)
}

// List returns the log newest first.
func (h *HistoryHandler) List(c *fiber.Ctx) error {
	records, err := h.history.LoadAll(c.UserContext())
	if err != nil {
		return apperr.StoreUnavailable("load history", err)
	}
	newest := make([]domain.Classification, len(records))
	for i := range records {
		newest[len(records)-1-i] = records[i]
	}

	page := response.GetPage(c, defaultPageSize, maxPageSize)
	lo, hi, more := page.Window(len(newest))
	return response.OKWithMeta(c, newest[lo:hi], &response.Meta{
		Total:    len(newest),
		Page:     page.Page,
		PageSize: page.PageSize,
		HasMore:  more,
	})
}

func (h *HistoryHandler) Latest(c *fiber.Ctx) error {
	latest, err := h.history.LoadLatest(c.UserContext())
	if err != nil {
		return apperr.StoreUnavailable("load history", err)
	}
	if latest == nil {
		return apperr.NotFound("classification")
	}
	return response.OK(c, latest)
}
