package assessment

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Summary is the condensed view of an analysis used to ground the chat
// assistant and to index reports for similarity search.
type Summary struct {
	DamageType      string   `json:"damageType"`
	Severity        string   `json:"severity"`
	AffectedAreas   []string `json:"affectedAreas"`
	EstimatedCost   Cost     `json:"estimatedCost"`
	Safety          string   `json:"safety"`
	Recommendations []string `json:"recommendations"`
}

// Cost is a repair estimate found in the analysis text.
type Cost struct {
	Display  string              `json:"display"`
	Currency string              `json:"currency,omitempty"`
	Low      decimal.NullDecimal `json:"low"`
	High     decimal.NullDecimal `json:"high"`
}

func (c Cost) String() string {
	if c.Display == "" {
		return "Estimation required"
	}
	return c.Display
}

const (
	maxSummaryAreas           = 5
	maxSummaryRecommendations = 3
)

var commonDamageTypes = []string{
	"hail damage", "water damage", "fire damage", "wind damage", "storm damage",
	"flood damage", "collision damage", "vandalism", "theft", "earthquake",
	"structural damage", "cosmetic damage", "mechanical failure", "electrical damage",
}

// DefaultRecommendations are used when an analysis suggests no actions.
var DefaultRecommendations = []string{
	"Document all damage with photos",
	"Contact insurance provider",
	"Secure property from further damage",
}

var (
	severityScore = regexp.MustCompile(`\b(10|[1-9])\s*/\s*10\b`)

	amount      = `(\d{1,3}(?:,\d{2,3})+|\d+)(?:\.(\d{1,2}))?`
	currencySym = `([$€£₹]|\bRs\.?|\bINR|\bUSD)`
	costSymbol  = regexp.MustCompile(`(?i)` + currencySym + `\s?` + amount + `(?:\s*(?:-|–|to)\s*(?:[$€£₹]|Rs\.?|INR|USD)?\s?` + amount + `)?`)
	costWord    = regexp.MustCompile(`(?i)\b` + amount + `(?:\s*(?:-|–|to)\s*` + amount + `)?\s*(dollars|usd|rupees|inr)\b`)

	listMarker = regexp.MustCompile(`^(?:[-•*]+|\d{1,2}[.)])\s*`)

	recommendationWords = []string{"recommend", "should", "advise", "immediate"}
)

// Summarize condenses an analysis.
func Summarize(a NormalizedAnalysis) Summary {
	cost := ParseCost(a.RepairRequirements)
	if cost.Display == "" {
		cost = ParseCost(a.FullReport)
	}
	areas := SplitItems(a.AffectedAreas)
	if len(areas) > maxSummaryAreas {
		areas = areas[:maxSummaryAreas]
	}
	return Summary{
		DamageType:      KeyDamageType(a.DamageType),
		Severity:        CanonicalSeverity(a.SeverityLevel),
		AffectedAreas:   areas,
		EstimatedCost:   cost,
		Safety:          a.SafetyConcerns,
		Recommendations: Recommendations(a.ImmediateActions),
	}
}

// KeyDamageType names the main kind of damage: a well-known category when
// one is mentioned, else the first sentence of the text.
func KeyDamageType(text string) string {
	lower := strings.ToLower(text)
	for _, t := range commonDamageTypes {
		if strings.Contains(lower, t) {
			return strings.ToUpper(t[:1]) + t[1:]
		}
	}
	if first, _, _ := strings.Cut(text, "."); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	return "Damage detected"
}

// CanonicalSeverity maps free-form severity text onto Low, Moderate, High or
// Critical. A "N/10" score is used when present; unknown text is Moderate.
func CanonicalSeverity(text string) string {
	if m := severityScore.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch {
		case n >= 9:
			return "Critical"
		case n >= 7:
			return "High"
		case n >= 4:
			return "Moderate"
		default:
			return "Low"
		}
	}

	lower := strings.ToLower(text)
	for _, level := range []struct{ key, label string }{
		{"critical", "Critical"},
		{"high", "High"},
		{"moderate", "Moderate"},
		{"low", "Low"},
		{"minor", "Low"},
	} {
		if strings.Contains(lower, level.key) {
			return level.label
		}
	}
	return "Moderate"
}

// ParseCost finds the first money amount or range in text.
func ParseCost(text string) Cost {
	if m := costSymbol.FindStringSubmatch(text); m != nil {
		c := Cost{Display: strings.TrimSpace(m[0]), Currency: normalizeCurrency(m[1])}
		c.Low = parseAmount(m[2], m[3])
		c.High = parseAmount(m[4], m[5])
		if !c.High.Valid {
			c.High = c.Low
		}
		return c
	}
	if m := costWord.FindStringSubmatch(text); m != nil {
		c := Cost{Display: strings.TrimSpace(m[0]), Currency: normalizeCurrency(m[5])}
		c.Low = parseAmount(m[1], m[2])
		c.High = parseAmount(m[3], m[4])
		if !c.High.Valid {
			c.High = c.Low
		}
		return c
	}
	return Cost{}
}

func parseAmount(whole, frac string) decimal.NullDecimal {
	if whole == "" {
		return decimal.NullDecimal{}
	}
	s := strings.ReplaceAll(whole, ",", "")
	if frac != "" {
		s += "." + frac
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func normalizeCurrency(s string) string {
	switch strings.ToLower(strings.TrimSuffix(s, ".")) {
	case "$", "usd", "dollars":
		return "USD"
	case "₹", "rs", "inr", "rupees":
		return "INR"
	case "€":
		return "EUR"
	case "£":
		return "GBP"
	}
	return ""
}

// Recommendations picks up to three recommendation lines from the actions
// text. Lines worded as advice are preferred; otherwise the first actions are
// used, and DefaultRecommendations when there are none.
func Recommendations(actions string) []string {
	var lines, advice []string
	for _, line := range strings.Split(actions, "\n") {
		for _, item := range strings.Split(line, itemSeparator) {
			item = strings.TrimSpace(listMarker.ReplaceAllString(strings.TrimSpace(item), ""))
			if item == "" {
				continue
			}
			lines = append(lines, item)
			lower := strings.ToLower(item)
			for _, w := range recommendationWords {
				if strings.Contains(lower, w) {
					advice = append(advice, item)
					break
				}
			}
		}
	}

	switch {
	case len(advice) > 0:
		lines = advice
	case len(lines) == 0:
		lines = DefaultRecommendations
	}
	if len(lines) > maxSummaryRecommendations {
		lines = lines[:maxSummaryRecommendations]
	}
	return append([]string(nil), lines...)
}
