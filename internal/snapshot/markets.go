package snapshot

import (
	"fmt"
	"strings"
)

// countryNames maps spoken country names to ISO codes so callers can
// say "Deutschland" and land on "C1-DE".
var countryNames = map[string]string{
	"deutschland":   "DE",
	"germany":       "DE",
	"österreich":    "AT",
	"oesterreich":   "AT",
	"austria":       "AT",
	"schweiz":       "CH",
	"switzerland":   "CH",
	"usa":           "US",
	"united states": "US",
	"frankreich":    "FR",
	"france":        "FR",
	"italien":       "IT",
	"italy":         "IT",
	"spanien":       "ES",
	"spain":         "ES",
}

// ResolveMarket maps a user-supplied market name to a market code
// present in the dataset. Resolution order: exact case-insensitive
// match, substring match, then country-name lookup. Ambiguous and
// unknown inputs return an explanatory message instead of a code.
func (s *Snapshot) ResolveMarket(input string) string {
	if len(s.markets) == 0 {
		return "❌ Keine Marktdaten verfügbar."
	}

	needle := strings.ToLower(strings.TrimSpace(input))

	for _, market := range s.markets {
		if strings.ToLower(market) == needle {
			return market
		}
	}

	if matches := s.matching(needle); len(matches) == 1 {
		return matches[0]
	} else if len(matches) > 1 {
		return fmt.Sprintf("⚠️ Mehrere Märkte gefunden: %s. Nutze ersten: %s",
			strings.Join(matches, ", "), matches[0])
	}

	if code, ok := countryNames[needle]; ok {
		if matches := s.matching(strings.ToLower(code)); len(matches) == 1 {
			return matches[0]
		} else if len(matches) > 1 {
			return fmt.Sprintf("⚠️ Mehrere Märkte für %s: %s. Nutze ersten: %s",
				input, strings.Join(matches, ", "), matches[0])
		}
	}

	return fmt.Sprintf("❌ Unbekannter Markt: '%s'. Verfügbare Märkte: %s",
		input, strings.Join(s.markets, ", "))
}

func (s *Snapshot) matching(needle string) []string {
	var out []string
	for _, market := range s.markets {
		if strings.Contains(strings.ToLower(market), needle) {
			out = append(out, market)
		}
	}
	return out
}
