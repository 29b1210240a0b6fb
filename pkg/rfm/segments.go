package rfm

import "customer-insights/pkg/models"

// Segment names. The set is fixed; every record lands in exactly one.
const (
	SegmentChampions        = "Champions"
	SegmentAtRisk           = "At Risk"
	SegmentLoyal            = "Loyal Customers"
	SegmentBigSpenders      = "Big Spenders"
	SegmentFrequentLowSpend = "Frequent Low-Spend"
	SegmentLost             = "Lost"
	SegmentRegular          = "Regular"
)

// Segments lists the fixed segment enumeration.
var Segments = []string{
	SegmentChampions,
	SegmentAtRisk,
	SegmentLoyal,
	SegmentBigSpenders,
	SegmentFrequentLowSpend,
	SegmentLost,
	SegmentRegular,
}

// segmentRule is one row of the decision table.
type segmentRule struct {
	name  string
	match func(r, f, m int) bool
}

// decisionTable is evaluated top to bottom, first match wins. Rules are
// ordered most to least restrictive; a customer matching several rules is
// classified by the earliest. Changing this order changes classification.
var decisionTable = []segmentRule{
	{SegmentChampions, func(r, f, m int) bool { return r >= 4 && f >= 4 && m >= 4 }},
	{SegmentAtRisk, func(r, f, m int) bool { return r <= 2 && f >= 4 && m >= 4 }},
	{SegmentLoyal, func(r, f, m int) bool { return r >= 4 && f >= 3 }},
	{SegmentBigSpenders, func(r, f, m int) bool { return r >= 3 && m >= 4 }},
	{SegmentFrequentLowSpend, func(r, f, m int) bool { return f >= 4 && m <= 2 }},
	{SegmentLost, func(r, f, m int) bool { return r <= 2 }},
}

// classify maps a score triple to its segment.
func classify(r, f, m int) string {
	for _, rule := range decisionTable {
		if rule.match(r, f, m) {
			return rule.name
		}
	}
	return SegmentRegular
}

// defaultActions is the built-in segment → recommended action mapping.
// Data, not logic; Config.Actions overrides it per segment.
var defaultActions = map[string]models.Action{
	SegmentChampions:        {DiscountPct: 0, Channel: "email", Note: "reward with loyalty perks and early access"},
	SegmentAtRisk:           {DiscountPct: 20, Channel: "email", Note: "win-back campaign with personalized offer"},
	SegmentLoyal:            {DiscountPct: 5, Channel: "email", Note: "cross-sell and referral invitation"},
	SegmentBigSpenders:      {DiscountPct: 0, Channel: "email", Note: "premium upsell, no discount needed"},
	SegmentFrequentLowSpend: {DiscountPct: 10, Channel: "push", Note: "bundle offers to raise order value"},
	SegmentLost:             {DiscountPct: 30, Channel: "remarketing", Note: "aggressive reactivation offer"},
	SegmentRegular:          {DiscountPct: 10, Channel: "newsletter", Note: "nurture toward loyalty"},
}

// actionFor resolves the recommended action by segment name alone.
func actionFor(segment string, overrides map[string]models.Action) models.Action {
	if a, ok := overrides[segment]; ok {
		return a
	}
	return defaultActions[segment]
}
