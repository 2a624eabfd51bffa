package http

import (
	"smsfilter/core/domain"
	"smsfilter/core/service/filter"
	"smsfilter/core/service/message"
	"smsfilter/infra/middleware"
	"smsfilter/pkg/apperr"
	"smsfilter/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const maxSignatureLen = 64

// RulesHandler is the settings surface for filter rules.
type RulesHandler struct {
	rules    *filter.RulesService
	messages *message.Service
}

func NewRulesHandler(rules *filter.RulesService, messages *message.Service) *RulesHandler {
	return &RulesHandler{rules: rules, messages: messages}
}

func (h *RulesHandler) Register(router fiber.Router) {
	r := router.Group("/rules")
	r.Get("/", h.Get)
	r.Put("/", h.Replace)
	r.Get("/stats", h.Stats)
	r.Get("/candidates", h.Candidates)
	r.Get("/suppressed-categories", h.SuppressedCategories)
	r.Get("/auto-promotion", h.AutoPromotion)
	r.Put("/auto-promotion", h.SetAutoPromotion)
	r.Put("/signatures/:signature", middleware.ValidateParamLength("signature", maxSignatureLen), h.UpdateSignature)
	r.Delete("/signatures/:signature", middleware.ValidateParamLength("signature", maxSignatureLen), h.RemoveSignature)
	r.Put("/categories/:category", h.UpdateCategory)
	r.Delete("/categories/:category", h.RemoveCategory)
}

func (h *RulesHandler) Get(c *fiber.Ctx) error {
	rules, err := h.rules.Load(c.UserContext())
	if err != nil {
		return apperr.StoreUnavailable("load rules", err)
	}
	return response.OK(c, rules)
}

// Replace stores the whole table.
func (h *RulesHandler) Replace(c *fiber.Ctx) error {
	var rules domain.FilterRules
	if err := parseBody(c, &rules); err != nil {
		return err
	}
	for cat := range rules.CategoryRules {
		if !cat.IsValid() {
			return apperr.InvalidInput("categoryRules", "unknown category "+string(cat))
		}
	}
	if err := h.rules.Save(c.UserContext(), &rules); err != nil {
		return apperr.StoreUnavailable("save rules", err)
	}
	return h.Get(c)
}

func (h *RulesHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.rules.Stats(c.UserContext())
	if err != nil {
		return apperr.StoreUnavailable("load rules", err)
	}
	return response.OK(c, stats)
}

// Candidates proposes signature rules from the current working set.
func (h *RulesHandler) Candidates(c *fiber.Ctx) error {
	candidates, err := h.rules.CreateRulesFromMessages(c.UserContext(), h.messages.Messages())
	if err != nil {
		return apperr.StoreUnavailable("load rules", err)
	}
	if candidates == nil {
		candidates = []domain.SignatureCandidate{}
	}
	return response.OK(c, candidates)
}

func (h *RulesHandler) SuppressedCategories(c *fiber.Ctx) error {
	cats, err := h.rules.SuppressedCategories(c.UserContext())
	if err != nil {
		return apperr.StoreUnavailable("load rules", err)
	}
	if cats == nil {
		cats = []domain.Category{}
	}
	return response.OK(c, fiber.Map{"categories": cats, "count": len(cats)})
}

func (h *RulesHandler) AutoPromotion(c *fiber.Ctx) error {
	enabled, err := h.rules.AutoFilterPromotion(c.UserContext())
	if err != nil {
		return apperr.StoreUnavailable("load rules", err)
	}
	return response.OK(c, fiber.Map{"enabled": enabled})
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *RulesHandler) SetAutoPromotion(c *fiber.Ctx) error {
	var req toggleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Enabled == nil {
		return apperr.MissingField("enabled")
	}
	rules, err := h.rules.SetAutoFilterPromotion(c.UserContext(), *req.Enabled)
	if err != nil {
		return apperr.StoreUnavailable("save rules", err)
	}
	return response.OK(c, rules)
}

type ruleRequest struct {
	Action string `json:"action"`
}

func (h *RulesHandler) UpdateSignature(c *fiber.Ctx) error {
	action, err := h.action(c)
	if err != nil {
		return err
	}
	sig := param(c, "signature")
	if sig == "" {
		return apperr.MissingField("signature")
	}
	rules, err := h.rules.UpdateSignatureRule(c.UserContext(), sig, action)
	if err != nil {
		return apperr.StoreUnavailable("save rules", err)
	}
	return response.OK(c, rules)
}

func (h *RulesHandler) RemoveSignature(c *fiber.Ctx) error {
	rules, err := h.rules.RemoveSignatureRule(c.UserContext(), param(c, "signature"))
	if err != nil {
		return apperr.StoreUnavailable("save rules", err)
	}
	return response.OK(c, rules)
}

func (h *RulesHandler) UpdateCategory(c *fiber.Ctx) error {
	cat, err := categoryParam(c, "category")
	if err != nil {
		return err
	}
	action, err := h.action(c)
	if err != nil {
		return err
	}
	rules, err := h.rules.UpdateCategoryRule(c.UserContext(), cat, action)
	if err != nil {
		return apperr.StoreUnavailable("save rules", err)
	}
	return response.OK(c, rules)
}

func (h *RulesHandler) RemoveCategory(c *fiber.Ctx) error {
	cat, err := categoryParam(c, "category")
	if err != nil {
		return err
	}
	rules, err := h.rules.RemoveCategoryRule(c.UserContext(), cat)
	if err != nil {
		return apperr.StoreUnavailable("save rules", err)
	}
	return response.OK(c, rules)
}

func (h *RulesHandler) action(c *fiber.Ctx) (domain.FilterAction, error) {
	var req ruleRequest
	if err := parseBody(c, &req); err != nil {
		return "", err
	}
	if req.Action == "" {
		return "", apperr.MissingField("action")
	}
	return parseAction(req.Action)
}
