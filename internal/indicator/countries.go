package indicator

import (
	"regexp"
	"sort"
	"strings"
)

// countryAliases resolves dataset/WDI name mismatches that a plain name
// table would miss. Keys are exact labels as they appear in event data.
var countryAliases = map[string]string{
	"Bolivia":                      "BOL",
	"Cabo Verde":                   "CPV",
	"Cote d'Ivoire":                "CIV",
	"Cote dIvoire":                 "CIV",
	"Czech Republic":               "CZE",
	"Congo-Brazzaville":            "COG",
	"Congo - Brazzaville":          "COG",
	"Congo-Kinshasa":               "COD",
	"Congo - Kinshasa":             "COD",
	"Democratic Republic of Congo": "COD",
	"DR Congo":                     "COD",
	"Eswatini":                     "SWZ",
	"Iran":                         "IRN",
	"Kyrgyz Republic":              "KGZ",
	"Laos":                         "LAO",
	"Micronesia":                   "FSM",
	"Moldova":                      "MDA",
	"North Korea":                  "PRK",
	"Russia":                       "RUS",
	"Syria":                        "SYR",
	"Tanzania":                     "TZA",
	"Turkey":                       "TUR",
	"Venezuela":                    "VEN",
	"Vietnam":                      "VNM",
	"West Bank and Gaza":           "PSE",
	"Yemen (North)":                "YEM",
	"Yemen (South)":                "YEM",
}

// countryNames maps canonical country names to ISO3 codes for the fuzzy
// fallback and for detecting country mentions inside a message.
var countryNames = map[string]string{
	"Afghanistan": "AFG", "Albania": "ALB", "Algeria": "DZA", "Angola": "AGO",
	"Argentina": "ARG", "Armenia": "ARM", "Azerbaijan": "AZE", "Bangladesh": "BGD",
	"Belarus": "BLR", "Benin": "BEN", "Bolivia": "BOL", "Brazil": "BRA",
	"Burkina Faso": "BFA", "Burundi": "BDI", "Cambodia": "KHM", "Cameroon": "CMR",
	"Central African Republic": "CAF", "Chad": "TCD", "Chile": "CHL", "China": "CHN",
	"Colombia": "COL", "Cote d'Ivoire": "CIV", "Cuba": "CUB", "Ecuador": "ECU",
	"Egypt": "EGY", "El Salvador": "SLV", "Eritrea": "ERI", "Ethiopia": "ETH",
	"Georgia": "GEO", "Ghana": "GHA", "Guatemala": "GTM", "Guinea": "GIN",
	"Guinea-Bissau": "GNB", "Haiti": "HTI", "Honduras": "HND", "India": "IND",
	"Indonesia": "IDN", "Iran": "IRN", "Iraq": "IRQ", "Israel": "ISR",
	"Jordan": "JOR", "Kazakhstan": "KAZ", "Kenya": "KEN", "Lebanon": "LBN",
	"Liberia": "LBR", "Libya": "LBY", "Madagascar": "MDG", "Malawi": "MWI",
	"Mali": "MLI", "Mauritania": "MRT", "Mexico": "MEX", "Morocco": "MAR",
	"Mozambique": "MOZ", "Myanmar": "MMR", "Nepal": "NPL", "Nicaragua": "NIC",
	"Niger": "NER", "Nigeria": "NGA", "Pakistan": "PAK", "Peru": "PER",
	"Philippines": "PHL", "Russia": "RUS", "Rwanda": "RWA", "Senegal": "SEN",
	"Sierra Leone": "SLE", "Somalia": "SOM", "South Africa": "ZAF",
	"South Sudan": "SSD", "Sri Lanka": "LKA", "Sudan": "SDN", "Syria": "SYR",
	"Tajikistan": "TJK", "Tanzania": "TZA", "Thailand": "THA", "Tunisia": "TUN",
	"Turkey": "TUR", "Uganda": "UGA", "Ukraine": "UKR", "Venezuela": "VEN",
	"Vietnam": "VNM", "Yemen": "YEM", "Zambia": "ZMB", "Zimbabwe": "ZWE",
}

// normalizedAliases indexes both tables by normalized label, built once.
var normalizedAliases = func() map[string]string {
	out := make(map[string]string, len(countryAliases)+len(countryNames))
	for name, code := range countryNames {
		out[Normalize(name)] = code
	}
	for name, code := range countryAliases {
		out[Normalize(name)] = code
	}
	return out
}()

// Resolver maps a free-text country label to an ISO3 code. Implementations
// return ok=false for "no match" so the chain can continue.
type Resolver interface {
	Resolve(label string) (string, bool)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(label string) (string, bool)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(label string) (string, bool) { return f(label) }

// Chain tries each resolver in order and short-circuits on the first hit.
// Resolution is a pure function of the label (plus any hint resolvers
// prepended by the caller).
type Chain []Resolver

// Resolve walks the chain.
func (c Chain) Resolve(label string) (string, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", false
	}
	for _, r := range c {
		if code, ok := r.Resolve(label); ok {
			return code, true
		}
	}
	return "", false
}

// AliasResolver matches the direct alias table on the exact label.
func AliasResolver() Resolver {
	return ResolverFunc(func(label string) (string, bool) {
		code, ok := countryAliases[label]
		return code, ok
	})
}

// NormalizedResolver matches the normalized alias table.
func NormalizedResolver() Resolver {
	return ResolverFunc(func(label string) (string, bool) {
		code, ok := normalizedAliases[Normalize(label)]
		return code, ok
	})
}

// FuzzyResolver approximates an external fuzzy name-matching lookup:
// a canonical name whose normalized form contains, or is contained by,
// the normalized label. Shortest candidate wins for determinism.
func FuzzyResolver() Resolver {
	type entry struct{ name, code string }
	entries := make([]entry, 0, len(countryNames))
	for name, code := range countryNames {
		entries = append(entries, entry{Normalize(name), code})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	return ResolverFunc(func(label string) (string, bool) {
		n := Normalize(label)
		if n == "" {
			return "", false
		}
		best := ""
		code := ""
		for _, e := range entries {
			if strings.Contains(e.name, n) || strings.Contains(n, e.name) {
				if best == "" || len(e.name) < len(best) {
					best = e.name
					code = e.code
				}
			}
		}
		return code, best != ""
	})
}

var nonLetters = regexp.MustCompile(`[^A-Za-z]`)

// HeuristicResolver treats a stripped 3-letter label as its own ISO3 code.
// Last element of the chain.
func HeuristicResolver() Resolver {
	return ResolverFunc(func(label string) (string, bool) {
		letters := strings.ToUpper(nonLetters.ReplaceAllString(label, ""))
		if len(letters) == 3 {
			return letters, true
		}
		return "", false
	})
}

// HintResolver resolves labels against a country->code mapping derived from
// the dataset's own code column. Takes priority over the static tables.
func HintResolver(hints map[string]string) Resolver {
	normalized := make(map[string]string, len(hints))
	for name, code := range hints {
		code = strings.ToUpper(strings.TrimSpace(code))
		if len(code) == 3 {
			normalized[Normalize(name)] = code
		}
	}
	return ResolverFunc(func(label string) (string, bool) {
		code, ok := normalized[Normalize(label)]
		return code, ok
	})
}

// DefaultChain is the standard resolution order: direct alias, normalized
// alias, fuzzy lookup, 3-letter heuristic.
func DefaultChain() Chain {
	return Chain{AliasResolver(), NormalizedResolver(), FuzzyResolver(), HeuristicResolver()}
}

// MentionedCountries returns (label, ISO3) pairs for every known country
// name found in the message by normalized phrase containment, in sorted
// label order.
func MentionedCountries(message string) ([]string, []string) {
	n := Normalize(message)
	var labels, codes []string
	names := make([]string, 0, len(countryNames)+len(countryAliases))
	seen := make(map[string]bool)
	for name := range countryNames {
		names = append(names, name)
	}
	for name := range countryAliases {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !containsPhrase(n, Normalize(name)) {
			continue
		}
		code, ok := normalizedAliases[Normalize(name)]
		if !ok || seen[code] {
			continue
		}
		seen[code] = true
		labels = append(labels, name)
		codes = append(codes, code)
	}
	return labels, codes
}
