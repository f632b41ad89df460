package listing

import "strings"

// languageMask is a bitset of the month-name languages a listing could
// still plausibly be using. It narrows as more month tokens are parsed:
// once a token only matches under a subset of the current candidates, the
// mask shrinks to that subset, the way the original plugin disambiguates
// "mar"/"jan" (shared across English/Norwegian/Swedish) from "mai"/"maj"
// (German/Swedish use a different third letter than English's "may").
type languageMask int

const (
	LangEnglish languageMask = 1 << iota
	LangGerman
	LangNorwegian
	LangSwedish

	// AllLanguages is the mask a fresh listing starts with: nothing ruled
	// out yet.
	AllLanguages = LangEnglish | LangGerman | LangNorwegian | LangSwedish
)

var monthTables = map[languageMask]map[string]int{
	LangEnglish: {
		"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
		"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
	},
	LangGerman: {
		"jan": 1, "feb": 2, "mär": 3, "mar": 3, "apr": 4, "mai": 5, "jun": 6,
		"jul": 7, "aug": 8, "sep": 9, "okt": 10, "nov": 11, "dez": 12,
	},
	LangNorwegian: {
		"jan": 1, "feb": 2, "mar": 3, "apr": 4, "mai": 5, "jun": 6,
		"jul": 7, "aug": 8, "sep": 9, "okt": 10, "nov": 11, "des": 12,
	},
	LangSwedish: {
		"jan": 1, "feb": 2, "mar": 3, "apr": 4, "maj": 5, "jun": 6,
		"jul": 7, "aug": 8, "sep": 9, "okt": 10, "nov": 11, "dec": 12,
	},
}

var allLangs = []languageMask{LangEnglish, LangGerman, LangNorwegian, LangSwedish}

// matchMonth3 resolves a three-letter token against every language still
// allowed by mask, returning the month number, the narrowed mask of
// languages that recognised it, and whether it matched at all. Month
// tokens are matched case-insensitively.
func matchMonth3(token string, mask languageMask) (month int, narrowed languageMask, ok bool) {
	key := strings.ToLower(token)

	for _, lang := range allLangs {
		if mask&lang == 0 {
			continue
		}

		table := monthTables[lang]
		if m, found := table[key]; found {
			if !ok {
				month = m
				ok = true
			}
			narrowed |= lang
		}
	}

	return month, narrowed, ok
}

// monthName renders month (1-12) in English, the form used for re-display
// and for tests; callers needing another language consult monthTables
// directly.
func monthName(month int) string {
	for name, m := range monthTables[LangEnglish] {
		if m == month {
			return name
		}
	}

	return ""
}
