package domain

import (
	"context"
	"fmt"
)

// =============================================================================
// Filter Action
// =============================================================================

// FilterAction is the verdict returned to the filter host.
type FilterAction string

const (
	FilterActionAllow    FilterAction = "allow"
	FilterActionSuppress FilterAction = "suppress"
)

// legacy payloads wrote "filter" for suppress
const legacyFilterAction = "filter"

// UnmarshalText accepts "allow", "suppress" and the legacy "filter".
func (a *FilterAction) UnmarshalText(text []byte) error {
	switch string(text) {
	case string(FilterActionAllow):
		*a = FilterActionAllow
	case string(FilterActionSuppress), legacyFilterAction:
		*a = FilterActionSuppress
	default:
		return fmt.Errorf("unknown filter action %q", text)
	}
	return nil
}

// =============================================================================
// Filter Rules
// =============================================================================

// FilterRule is a single user override.
type FilterRule struct {
	Action  FilterAction `json:"action"`
	Enabled bool         `json:"enabled"`
}

// FilterRules is the user-configured override table. The resolver only reads
// it; mutation goes through the rules service.
type FilterRules struct {
	SignatureRules map[string]FilterRule   `json:"signatureRules"`
	CategoryRules  map[Category]FilterRule `json:"categoryRules"`
}

// NewFilterRules returns an empty rule table.
func NewFilterRules() *FilterRules {
	return &FilterRules{
		SignatureRules: make(map[string]FilterRule),
		CategoryRules:  make(map[Category]FilterRule),
	}
}

// DefaultFilterRules is used when no rules were ever saved: promotions are
// suppressed through an explicit category rule.
func DefaultFilterRules() *FilterRules {
	r := NewFilterRules()
	r.CategoryRules[CategoryPromotion] = FilterRule{Action: FilterActionSuppress, Enabled: true}
	return r
}

// Clone returns a deep copy so callers can mutate without touching a shared snapshot.
func (r *FilterRules) Clone() *FilterRules {
	out := NewFilterRules()
	if r == nil {
		return out
	}
	for k, v := range r.SignatureRules {
		out.SignatureRules[k] = v
	}
	for k, v := range r.CategoryRules {
		out.CategoryRules[k] = v
	}
	return out
}

// FilterRulesStats summarises a rule table.
type FilterRulesStats struct {
	SignatureCount int `json:"signatureCount"`
	CategoryCount  int `json:"categoryCount"`
	EnabledCount   int `json:"enabledCount"`
}

// Stats counts rules in the table.
func (r *FilterRules) Stats() FilterRulesStats {
	s := FilterRulesStats{
		SignatureCount: len(r.SignatureRules),
		CategoryCount:  len(r.CategoryRules),
	}
	for _, rule := range r.SignatureRules {
		if rule.Enabled {
			s.EnabledCount++
		}
	}
	for _, rule := range r.CategoryRules {
		if rule.Enabled {
			s.EnabledCount++
		}
	}
	return s
}

// SignatureCandidate is a frequently seen signature without a rule yet.
type SignatureCandidate struct {
	Signature string `json:"signature"`
	Count     int    `json:"count"`
}

// FilterRulesRepository loads and stores the rule table.
// Load returns (nil, nil) when nothing usable is stored.
type FilterRulesRepository interface {
	Load(ctx context.Context) (*FilterRules, error)
	Save(ctx context.Context, rules *FilterRules) error
}

// =============================================================================
// Filter Decision
// =============================================================================

// SubAction refines a suppress verdict for the host.
type SubAction string

const (
	SubActionNone                       SubAction = "none"
	SubActionTransactionalFinance       SubAction = "transactionalFinance"
	SubActionTransactionalOrders        SubAction = "transactionalOrders"
	SubActionTransactionalOthers        SubAction = "transactionalOthers"
	SubActionTransactionalReminders     SubAction = "transactionalReminders"
	SubActionTransactionalHealth        SubAction = "transactionalHealth"
	SubActionTransactionalWeather       SubAction = "transactionalWeather"
	SubActionTransactionalCarrier       SubAction = "transactionalCarrier"
	SubActionTransactionalRewards       SubAction = "transactionalRewards"
	SubActionTransactionalPublicService SubAction = "transactionalPublicServices"
	SubActionPromotionalOffers          SubAction = "promotionalOffers"
	SubActionPromotionalCoupons         SubAction = "promotionalCoupons"
	SubActionPromotionalOthers          SubAction = "promotionalOthers"
)

// SubActionFor maps a suppressed category to its sub-action tag.
func SubActionFor(c Category) SubAction {
	switch c {
	case CategoryPromotion:
		return SubActionPromotionalOffers
	case CategoryFinance:
		return SubActionTransactionalFinance
	case CategoryLogistics:
		return SubActionTransactionalOrders
	case CategoryVerification:
		return SubActionTransactionalOthers
	default:
		return SubActionNone
	}
}

// FilterCapabilities lists the sub-actions the filter may emit.
type FilterCapabilities struct {
	TransactionalSubActions []SubAction `json:"transactionalSubActions"`
	PromotionalSubActions   []SubAction `json:"promotionalSubActions"`
}

// DefaultFilterCapabilities answers the host capability query.
func DefaultFilterCapabilities() FilterCapabilities {
	return FilterCapabilities{
		TransactionalSubActions: []SubAction{
			SubActionTransactionalFinance,
			SubActionTransactionalOrders,
			SubActionTransactionalOthers,
			SubActionTransactionalReminders,
			SubActionTransactionalHealth,
			SubActionTransactionalWeather,
			SubActionTransactionalCarrier,
			SubActionTransactionalRewards,
			SubActionTransactionalPublicService,
		},
		PromotionalSubActions: []SubAction{
			SubActionPromotionalOffers,
			SubActionPromotionalCoupons,
			SubActionPromotionalOthers,
		},
	}
}

// Rule tiers reported in FilterDecision.Source.
const (
	DecisionSourceSignature = "signature"
	DecisionSourceCategory  = "category"
	DecisionSourceDefault   = "default"
	DecisionSourceFailsafe  = "failsafe"
)

// FilterDecision is the answer returned to the filter host.
type FilterDecision struct {
	Action    FilterAction `json:"action"`
	SubAction SubAction    `json:"subAction"`
	Category  Category     `json:"category"`
	Signature string       `json:"signature,omitempty"`
	Source    string       `json:"source"`
}

// AllowDecision is the failsafe answer.
func AllowDecision() *FilterDecision {
	return &FilterDecision{
		Action:    FilterActionAllow,
		SubAction: SubActionNone,
		Category:  CategoryOther,
		Source:    DecisionSourceFailsafe,
	}
}
