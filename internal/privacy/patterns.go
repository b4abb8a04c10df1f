package privacy

import "regexp"

// Severity grades a detected violation.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Violation is a single detected instance of sensitive content. Start is a
// byte offset into the original text, never the sanitized text.
type Violation struct {
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	Content  string   `json:"content"`
	Start    int      `json:"start"`
}

// detector is one entry in the fixed pattern battery. These are intentionally
// literal pattern tables, not statistical classifiers.
type detector struct {
	category    string
	severity    Severity
	placeholder string
	pattern     *regexp.Regexp
}

var detectors = []detector{
	{
		category:    "email",
		severity:    SeverityMedium,
		placeholder: "[EMAIL]",
		pattern:     regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
	},
	{
		// Card detection runs before phone so card numbers are not
		// classified as phone numbers.
		category:    "payment_card",
		severity:    SeverityHigh,
		placeholder: "[PAYMENT_CARD]",
		pattern:     regexp.MustCompile(`\b(?:\d[ \-]*?){13,19}\b`),
	},
	{
		category:    "national_id",
		severity:    SeverityHigh,
		placeholder: "[NATIONAL_ID]",
		pattern:     regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	},
	{
		category:    "phone",
		severity:    SeverityMedium,
		placeholder: "[PHONE]",
		pattern:     regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`),
	},
	{
		category:    "date_of_birth",
		severity:    SeverityMedium,
		placeholder: "[DATE_OF_BIRTH]",
		pattern:     regexp.MustCompile(`(?i)(?:born on|birthday|date of birth|dob)[:\s]+\d{1,4}[/\-.]\d{1,2}[/\-.]\d{1,4}`),
	},
	{
		category:    "person_name",
		severity:    SeverityLow,
		placeholder: "[NAME]",
		pattern:     regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`),
	},
	{
		category:    "financial",
		severity:    SeverityMedium,
		placeholder: "[FINANCIAL]",
		pattern:     regexp.MustCompile(`(?i)\b(?:salary|bank account|credit score|mortgage|net worth|loan balance)\b`),
	},
	{
		category:    "health",
		severity:    SeverityMedium,
		placeholder: "[HEALTH]",
		pattern:     regexp.MustCompile(`(?i)\b(?:diagnosed with|diagnosis|medication|prescription|chronic illness|therapy session)\b`),
	},
}

// Detect runs the full battery and returns every violation with offsets into
// the original text.
func Detect(text string) []Violation {
	if text == "" {
		return nil
	}
	var out []Violation
	for _, d := range detectors {
		for _, loc := range d.pattern.FindAllStringIndex(text, -1) {
			out = append(out, Violation{
				Category: d.category,
				Severity: d.severity,
				Content:  text[loc[0]:loc[1]],
				Start:    loc[0],
			})
		}
	}
	return out
}

func placeholderFor(category string) string {
	for _, d := range detectors {
		if d.category == category {
			return d.placeholder
		}
	}
	return "[REDACTED]"
}

func severityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}
