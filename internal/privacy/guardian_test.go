package privacy

import (
	"context"
	"strings"
	"testing"

	"github.com/lucafauri/mnemos/internal/agent"
	"github.com/lucafauri/mnemos/internal/store"
)

func TestDetectBattery(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		category string
		severity Severity
	}{
		{"email", "reach me at sam@example.com please", "email", SeverityMedium},
		{"card", "My card is 4532-1234-5678-9010", "payment_card", SeverityHigh},
		{"ssn", "my ssn is 123-45-6789 ok", "national_id", SeverityHigh},
		{"phone", "call +1 (555) 123-9876 tomorrow", "phone", SeverityMedium},
		{"dob", "my date of birth: 12/03/1991", "date_of_birth", SeverityMedium},
		{"name", "I met Ada Lovelace yesterday", "person_name", SeverityLow},
		{"financial", "my salary went up", "financial", SeverityMedium},
		{"health", "I was diagnosed with asthma", "health", SeverityMedium},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			violations := Detect(tc.text)
			found := false
			for _, v := range violations {
				if v.Category == tc.category {
					found = true
					if v.Severity != tc.severity {
						t.Fatalf("severity = %q, want %q", v.Severity, tc.severity)
					}
					if tc.text[v.Start:v.Start+len(v.Content)] != v.Content {
						t.Fatalf("offset %d does not point at matched content %q", v.Start, v.Content)
					}
				}
			}
			if !found {
				t.Fatalf("Detect(%q) missed category %s: %+v", tc.text, tc.category, violations)
			}
		})
	}
}

func TestDetectEmptyText(t *testing.T) {
	if got := Detect(""); got != nil {
		t.Fatalf("Detect(\"\") = %+v, want nil", got)
	}
}

func TestRedactDescendingOffsets(t *testing.T) {
	text := "Email sam@example.com or call +1 555 123 9876 now"
	out := Redact(text, Detect(text))
	if !strings.Contains(out, "[EMAIL]") {
		t.Fatalf("redacted output missing [EMAIL]: %q", out)
	}
	if !strings.Contains(out, "[PHONE]") {
		t.Fatalf("redacted output missing [PHONE]: %q", out)
	}
	if strings.Contains(out, "sam@example.com") {
		t.Fatalf("redacted output leaks email: %q", out)
	}
}

func TestRedactOverlappingSpans(t *testing.T) {
	// Card digits also match the phone pattern; overlapping spans must
	// collapse into one replacement without slicing out of range.
	text := "card 4242 4242 4242 4242 end"
	violations := Detect(text)
	if len(violations) < 2 {
		t.Fatalf("expected overlapping violations, got %+v", violations)
	}
	out := Redact(text, violations)
	if strings.Contains(out, "4242") {
		t.Fatalf("redacted output leaks digits: %q", out)
	}
	if !strings.HasSuffix(out, " end") || !strings.HasPrefix(out, "card ") {
		t.Fatalf("redaction damaged surrounding text: %q", out)
	}
}

func TestScreenPolicyTable(t *testing.T) {
	g := NewGuardian(nil)
	ctx := context.Background()
	card := "My card is 4532-1234-5678-9010"

	open, res := g.Screen(ctx, ScreenInput{Text: card, Mode: agent.ModeOpen})
	if !res.OK {
		t.Fatalf("Screen(open) result not OK: %+v", res)
	}
	if !open.Allowed || open.SanitizedText != card || len(open.Warnings) == 0 {
		t.Fatalf("open mode: %+v, want allowed, unmodified text, warnings", open)
	}

	incog, _ := g.Screen(ctx, ScreenInput{Text: card, Mode: agent.ModeIncognito})
	if incog.Allowed {
		t.Fatalf("incognito with high-severity card: allowed = true, want false")
	}
	if !incog.Sanitized || strings.Contains(incog.SanitizedText, "4532") {
		t.Fatalf("incognito sanitized text leaks card: %q", incog.SanitizedText)
	}

	ro, _ := g.Screen(ctx, ScreenInput{Text: "hello there", Mode: agent.ModeRetrievalOnly})
	if !ro.Allowed || ro.Sanitized {
		t.Fatalf("retrieval-only: %+v, want allowed and unmodified", ro)
	}
	foundNotice := false
	for _, w := range ro.Warnings {
		if strings.Contains(w, "nothing new will be stored") {
			foundNotice = true
		}
	}
	if !foundNotice {
		t.Fatalf("retrieval-only missing storage notice: %+v", ro.Warnings)
	}
}

func TestScreenIncognitoAllowsMediumSeverity(t *testing.T) {
	g := NewGuardian(nil)
	out, _ := g.Screen(context.Background(), ScreenInput{
		Text: "email me at sam@example.com",
		Mode: agent.ModeIncognito,
	})
	if !out.Allowed {
		t.Fatalf("medium-severity violation blocked in incognito: %+v", out)
	}
	if !strings.Contains(out.SanitizedText, "[EMAIL]") {
		t.Fatalf("sanitized text = %q, want [EMAIL] placeholder", out.SanitizedText)
	}
}

func TestScreenIsolationMismatchIsFlagNotBlock(t *testing.T) {
	g := NewGuardian(nil)
	out, _ := g.Screen(context.Background(), ScreenInput{
		Text:             "hello",
		Mode:             agent.ModeOpen,
		ProfileID:        "p2",
		SessionProfileID: "p1",
	})
	if out.IsolationOK {
		t.Fatalf("isolation mismatch not flagged")
	}
	if !out.Allowed {
		t.Fatalf("isolation mismatch must not block by itself")
	}
}

func TestScreenAuditNeverStoresRawContent(t *testing.T) {
	st := store.NewInMemoryStore()
	g := NewGuardian(st)
	g.Screen(context.Background(), ScreenInput{
		SessionID: "s1",
		Text:      "reach me at secret@example.com",
		Mode:      agent.ModeOpen,
	})

	entries := st.AuditEntries()
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(entries))
	}
	if strings.Contains(entries[0].Detail, "secret@example.com") {
		t.Fatalf("audit entry leaks raw content: %q", entries[0].Detail)
	}
	if !strings.Contains(entries[0].Detail, "email=medium") {
		t.Fatalf("audit entry missing category/severity: %q", entries[0].Detail)
	}
}
