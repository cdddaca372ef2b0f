package cleaner

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"nepal_jobs/internal/domain"
)

// Salaries above this are data errors on the portals.
const maxSalaryNPR = 10_000_000

var amountPattern = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)\s*([kK]\b)?`)

var countPattern = regexp.MustCompile(`\d+`)

var locationAliases = map[string]string{
	"ktm":              "Kathmandu",
	"kathmandu valley": "Kathmandu",
	"pkr":              "Pokhara",
	"pkr.":             "Pokhara",
	"bkt":              "Bhaktapur",
	"llt":              "Lalitpur",
	"patan":            "Lalitpur",
	"brt":              "Birgunj",
	"btw":              "Butwal",
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02 Jan, 2006",
}

var (
	entryLevelWords  = []string{"entry", "junior", "fresher", "fresh", "graduate"}
	midLevelWords    = []string{"mid", "intermediate", "associate"}
	seniorLevelWords = []string{"senior", "sr.", "lead", "principal"}
	managementWords  = []string{"manager", "management", "head", "director", "vp", "chief", "ceo", "cto"}
)

// collapse applies NFC normalization, trims and squeezes internal whitespace.
func collapse(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// isBlank reports whether an already collapsed value carries no information.
func isBlank(s string) bool {
	switch strings.ToLower(s) {
	case "", "n/a", "na", "none", "null", "-":
		return true
	}
	return false
}

func orDefault(s, def string) string {
	if isBlank(s) {
		return def
	}
	return s
}

func cleanTitle(s string) string {
	s = collapse(s)
	if isBlank(s) {
		return ""
	}
	return titleCase(s)
}

// titleCase title-cases every word except short all-caps acronyms such as IT or HR.
func titleCase(s string) string {
	caser := cases.Title(language.English)
	words := strings.Fields(s)
	for i, w := range words {
		if isAcronym(w) {
			continue
		}
		words[i] = caser.String(w)
	}
	return strings.Join(words, " ")
}

func isAcronym(w string) bool {
	letters := 0
	for _, r := range w {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters > 0 && letters <= 4
}

func cleanLocation(s string) string {
	s = collapse(s)
	if isBlank(s) {
		return unknownLocation
	}
	if mapped, ok := locationAliases[strings.ToLower(s)]; ok {
		return mapped
	}
	return s
}

func standardizeJobLevel(s string) string {
	s = collapse(s)
	lower := strings.ToLower(s)

	switch {
	case containsAny(lower, entryLevelWords):
		return "Entry Level"
	case containsAny(lower, midLevelWords):
		return "Mid Level"
	case containsAny(lower, seniorLevelWords):
		return "Senior Level"
	case containsAny(lower, managementWords):
		return "Management"
	case isBlank(lower) || lower == "not specified":
		return "Not Specified"
	}
	return titleCase(s)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// cleanSkills trims a comma separated list and drops empty and repeated entries.
func cleanSkills(s string) string {
	seen := make(map[string]bool)
	var out []string
	for _, part := range strings.Split(s, ",") {
		skill := collapse(part)
		key := strings.ToLower(skill)
		if isBlank(skill) || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, skill)
	}
	return strings.Join(out, ", ")
}

func cleanSalary(s *domain.Salary) *domain.Salary {
	if s == nil {
		return nil
	}

	out := domain.Salary{
		Raw:      orDefault(collapse(s.Raw), ""),
		Currency: strings.ToUpper(orDefault(collapse(s.Currency), "")),
		Min:      copyFloat(s.Min),
		Max:      copyFloat(s.Max),
	}

	if out.Min == nil && out.Max == nil && out.Raw != "" {
		out.Min, out.Max = parseSalaryRange(out.Raw)
	}
	out.Min = capSalary(out.Min)
	out.Max = capSalary(out.Max)
	if out.Min != nil && out.Max != nil && *out.Min > *out.Max {
		out.Min, out.Max = out.Max, out.Min
	}

	if out.Raw == "" && out.Min == nil && out.Max == nil {
		return nil
	}
	if out.Currency == "" {
		out.Currency = defaultCurrency
	}
	return &out
}

// parseSalaryRange extracts the first two amounts from text like
// "Nrs. 20,000 - 30,000". "Negotiable" yields no amounts.
func parseSalaryRange(raw string) (*float64, *float64) {
	matches := amountPattern.FindAllStringSubmatch(raw, 2)
	amounts := make([]*float64, 0, 2)
	for _, m := range matches {
		v := parseAmount(m[1])
		if v != nil && m[2] != "" {
			scaled := *v * 1000
			v = &scaled
		}
		amounts = append(amounts, v)
	}

	switch len(amounts) {
	case 0:
		return nil, nil
	case 1:
		return amounts[0], nil
	}
	return amounts[0], amounts[1]
}

// parseVacancies reads the first whole number in s; "N/A" and the like are 0.
func parseVacancies(s string) int {
	n, err := strconv.Atoi(countPattern.FindString(s))
	if err != nil {
		return 0
	}
	return n
}

func parseAmount(s string) *float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func capSalary(v *float64) *float64 {
	if v == nil || *v <= 0 || *v > maxSalaryNPR {
		return nil
	}
	return v
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// parseDate accepts the date formats seen on the portals and returns the
// calendar date at UTC midnight, or nil when the text is not a date.
func parseDate(s string) *time.Time {
	s = collapse(s)
	if isBlank(s) {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDate(&t)
		}
	}
	return nil
}

func truncateDate(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	y, m, d := t.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &date
}
