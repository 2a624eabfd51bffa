package http

import (
	"strings"

	"smsfilter/core/domain"
	"smsfilter/core/service/classification"
	"smsfilter/core/service/filter"
	"smsfilter/pkg/apperr"
	"smsfilter/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// FilterHandler serves the filter host: one decision per request.
type FilterHandler struct {
	filter     *filter.Service
	classifier *classification.Classifier
	extractor  *classification.SignatureExtractor
}

func NewFilterHandler(svc *filter.Service, classifier *classification.Classifier, extractor *classification.SignatureExtractor) *FilterHandler {
	if classifier == nil {
		classifier = classification.NewClassifier(nil)
	}
	if extractor == nil {
		extractor = classification.NewSignatureExtractor()
	}
	return &FilterHandler{filter: svc, classifier: classifier, extractor: extractor}
}

func (h *FilterHandler) Register(router fiber.Router) {
	router.Post("/filter", h.Filter)
	router.Get("/filter/capabilities", h.Capabilities)
	router.Post("/classify", h.Classify)
}

// Filter answers allow/suppress. Malformed input is answered with allow
// rather than an error, since the host must always get a verdict.
func (h *FilterHandler) Filter(c *fiber.Ctx) error {
	var msg domain.RawMessage
	if err := c.BodyParser(&msg); err != nil {
		return response.OK(c, domain.AllowDecision())
	}
	return response.OK(c, h.filter.Handle(c.UserContext(), msg))
}

func (h *FilterHandler) Capabilities(c *fiber.Ctx) error {
	return response.OK(c, h.filter.Capabilities())
}

type classifyResponse struct {
	Category    domain.Category                `json:"category"`
	DisplayName string                         `json:"displayName"`
	Confidence  float64                        `json:"confidence"`
	Signature   string                         `json:"signature,omitempty"`
	Scores      []classification.CategoryScore `json:"scores"`
}

// Classify runs the classifier without recording anything.
func (h *FilterHandler) Classify(c *fiber.Ctx) error {
	var msg domain.RawMessage
	if err := parseBody(c, &msg); err != nil {
		return err
	}
	if strings.TrimSpace(msg.Content) == "" {
		return apperr.MissingField("content")
	}

	category := h.classifier.Classify(msg.Sender, msg.Content)
	signature, _ := h.extractor.Extract(msg.Content)
	return response.OK(c, classifyResponse{
		Category:    category,
		DisplayName: category.DisplayName(),
		Confidence:  h.classifier.Confidence(msg.Sender, msg.Content, category),
		Signature:   signature,
		Scores:      h.classifier.Scores(msg.Sender, msg.Content),
	})
}
