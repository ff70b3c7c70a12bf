// Package slots centralizes the editorial business rules: per-slot freshness
// windows, the weekend bridge, the duplicate-exclusion window and the slot-1
// company keyword safety net. Both the pre-filter and the selector evaluate
// these rules, so they must live in exactly one place.
package slots

import (
	"strings"
	"time"
)

// business-rule constants, preserved exactly; these are editorial decisions,
// not derived values
const (
	// ExclusionWindowDays is the trailing window within which a story that
	// already appeared in an issue is excluded from re-selection.
	ExclusionWindowDays = 14

	// Slot1RotationDays enforces the minimum company rotation for the
	// flagship slot: yesterday's slot-1 company is excluded today.
	Slot1RotationDays = 2

	// MaxPoolSize bounds how many candidates are shown to the selection
	// judge per slot, most recent first.
	MaxPoolSize = 15
)

// per-slot freshness windows in hours
const (
	windowDay   = 24 * time.Hour
	windowTwo   = 48 * time.Hour
	windowThree = 72 * time.Hour
	windowWeek  = 168 * time.Hour
)

// Window returns the freshness window for a slot on a given weekday.
// Sunday and Monday runs bridge the no-delivery weekend: slots 1, 2 and 4
// extend to 72h so Friday stories stay eligible on Monday.
func Window(slot int, weekday time.Weekday) time.Duration {
	weekendAdjacent := weekday == time.Sunday || weekday == time.Monday

	switch slot {
	case 1:
		if weekendAdjacent {
			return windowThree
		}
		return windowDay
	case 2:
		if weekendAdjacent {
			return windowThree
		}
		return windowTwo
	case 3:
		return windowWeek
	case 4:
		return windowThree
	case 5:
		return windowWeek
	default:
		return 0
	}
}

// Eligible reports whether an article of the given age qualifies for a slot.
func Eligible(slot int, age time.Duration, weekday time.Weekday) bool {
	if age < 0 {
		age = 0
	}
	w := Window(slot, weekday)
	return w > 0 && age <= w
}

// EligibleSlots maps an article's age and the run weekday to the set of
// slots it qualifies for. Eligibility only shrinks as an article ages.
func EligibleSlots(age time.Duration, weekday time.Weekday) []int {
	var out []int
	for slot := 1; slot <= 5; slot++ {
		if Eligible(slot, age, weekday) {
			out = append(out, slot)
		}
	}
	return out
}

// Definition describes one slot's editorial focus, used verbatim in judge
// prompts.
type Definition struct {
	Slot  int
	Name  string
	Focus string
}

// Definitions returns the five slot definitions in slot order.
func Definitions() []Definition {
	return []Definition{
		{Slot: 1, Name: "lead", Focus: "the day's biggest AI story: major-company announcements, breaking news, market-moving launches"},
		{Slot: 2, Name: "launch", Focus: "notable product launches, funding rounds and startup news"},
		{Slot: 3, Name: "research", Focus: "research results, papers, benchmarks and technical deep dives"},
		{Slot: 4, Name: "industry", Focus: "industry moves, policy, regulation, hiring and strategy"},
		{Slot: 5, Name: "tools", Focus: "practical tools, tutorials and long reads worth bookmarking"},
	}
}

// Tier1Companies are matched by substring against headlines as a recall
// safety net for slot 1: missing a major-company story is costlier than
// over-including one.
var Tier1Companies = []string{
	"openai", "anthropic", "google", "deepmind", "meta", "microsoft",
	"nvidia", "apple", "amazon", "xai", "mistral",
}

// MatchesTier1 reports whether a headline mentions a tier-1 company,
// case-insensitive substring match.
func MatchesTier1(headline string) bool {
	h := strings.ToLower(headline)
	for _, name := range Tier1Companies {
		if strings.Contains(h, name) {
			return true
		}
	}
	return false
}
