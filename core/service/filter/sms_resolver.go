// Package filter turns a classification into an allow/suppress decision.
package filter

import "smsfilter/core/domain"

// Resolution is a resolved action and the rule tier that produced it.
type Resolution struct {
	Action domain.FilterAction
	Source string
}

// Resolve returns the action for a message. signature may be empty.
func Resolve(signature string, category domain.Category, rules *domain.FilterRules) domain.FilterAction {
	return ResolveWithSource(signature, category, rules).Action
}

// ResolveWithSource applies, in order: an enabled signature rule, an enabled
// category rule, the built-in default (promotion suppressed, everything else
// allowed). The first applicable tier decides; disabled rules are skipped.
func ResolveWithSource(signature string, category domain.Category, rules *domain.FilterRules) Resolution {
	if rules != nil {
		if signature != "" {
			if rule, ok := rules.SignatureRules[signature]; ok && rule.Enabled {
				return Resolution{Action: normalize(rule.Action), Source: domain.DecisionSourceSignature}
			}
		}
		if rule, ok := rules.CategoryRules[category]; ok && rule.Enabled {
			return Resolution{Action: normalize(rule.Action), Source: domain.DecisionSourceCategory}
		}
	}
	return Resolution{Action: DefaultAction(category), Source: domain.DecisionSourceDefault}
}

// DefaultAction is the policy when no rule applies.
func DefaultAction(category domain.Category) domain.FilterAction {
	if category == domain.CategoryPromotion {
		return domain.FilterActionSuppress
	}
	return domain.FilterActionAllow
}

// anything that is not an explicit suppress lets the message through
func normalize(a domain.FilterAction) domain.FilterAction {
	if a == domain.FilterActionSuppress {
		return domain.FilterActionSuppress
	}
	return domain.FilterActionAllow
}
