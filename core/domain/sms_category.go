package domain

import "strings"

// =============================================================================
// Message Category
// =============================================================================

// Category is the semantic class of a message.
type Category string

// Declaration order is significant: it is the tie-break order of the classifier
// and the display order of grouped views.
const (
	CategoryVerification Category = "verification"
	CategoryPromotion    Category = "promotion"
	CategoryNotification Category = "notification"
	CategoryFinance      Category = "finance"
	CategoryLogistics    Category = "logistics"
	CategorySocial       Category = "social"
	CategoryWork         Category = "work"
	CategoryOther        Category = "other"
)

var allCategories = []Category{
	CategoryVerification,
	CategoryPromotion,
	CategoryNotification,
	CategoryFinance,
	CategoryLogistics,
	CategorySocial,
	CategoryWork,
	CategoryOther,
}

var categoryDisplayNames = map[Category]string{
	CategoryVerification: "验证码",
	CategoryPromotion:    "营销推广",
	CategoryNotification: "通知提醒",
	CategoryFinance:      "金融理财",
	CategoryLogistics:    "物流快递",
	CategorySocial:       "社交娱乐",
	CategoryWork:         "工作相关",
	CategoryOther:        "其他",
}

// AllCategories returns every category in declaration order.
func AllCategories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

// DisplayName returns the user-facing label.
func (c Category) DisplayName() string {
	if name, ok := categoryDisplayNames[c]; ok {
		return name
	}
	return string(c)
}

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	_, ok := categoryDisplayNames[c]
	return ok
}

// ParseCategory accepts either the category code or its display label.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	if c := Category(strings.ToLower(s)); c.IsValid() {
		return c, true
	}
	for c, name := range categoryDisplayNames {
		if name == s {
			return c, true
		}
	}
	return "", false
}

// CategoryPtr returns a pointer to a copy of c.
func CategoryPtr(c Category) *Category {
	return &c
}
