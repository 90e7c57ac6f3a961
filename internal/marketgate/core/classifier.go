// Package core provides request classification.
package core

import "strings"

// ClassifierRule maps matching requests to extra categories. An empty
// method matches every method. Paths match on the prefix.
type ClassifierRule struct {
	Method     string
	PathPrefix string
	Categories []Category
}

// Classifier resolves the category set a request must draw from.
// Matching is pure and deterministic; every request draws from GLOBAL.
type Classifier struct {
	rules []ClassifierRule
}

// NewClassifier validates and stores the rule list.
func NewClassifier(rules []ClassifierRule) (*Classifier, error) {
	for _, rule := range rules {
		if rule.PathPrefix == "" {
			return nil, Wrap(CodeConfiguration, "classifier rule path prefix is empty", nil)
		}
		if len(rule.Categories) == 0 {
			return nil, Wrap(CodeConfiguration, "classifier rule has no categories", nil)
		}
		for _, category := range rule.Categories {
			if category == "" {
				return nil, Wrap(CodeConfiguration, "classifier rule category is empty", nil)
			}
		}
	}
	copied := make([]ClassifierRule, len(rules))
	copy(copied, rules)
	return &Classifier{rules: copied}, nil
}

// Categories returns GLOBAL plus every category of every matching
// rule, in rule order, without duplicates.
func (c *Classifier) Categories(desc *RequestDescriptor) []Category {
	result := []Category{CategoryGlobal}
	if c == nil || desc == nil {
		return result
	}
	seen := map[Category]bool{CategoryGlobal: true}
	for _, rule := range c.rules {
		if rule.Method != "" && !strings.EqualFold(rule.Method, desc.Method) {
			continue
		}
		if !strings.HasPrefix(desc.Path, rule.PathPrefix) {
			continue
		}
		for _, category := range rule.Categories {
			if seen[category] {
				continue
			}
			seen[category] = true
			result = append(result, category)
		}
	}
	return result
}

// DefaultRules maps the buyback API surface to categories. The rule
// set is configuration data, not fixed logic.
func DefaultRules() []ClassifierRule {
	return []ClassifierRule{
		{PathPrefix: "/ws/buyback/v1/orders", Categories: []Category{CategoryOrders}},
		{PathPrefix: "/ws/buyback/v1/listings", Categories: []Category{CategoryListings, CategoryCatalog}},
		{PathPrefix: "/ws/buyback/v1/products", Categories: []Category{CategoryCatalog}},
	}
}
