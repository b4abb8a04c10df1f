package privacy

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/lucafauri/mnemos/internal/agent"
	"github.com/lucafauri/mnemos/internal/store"
)

// AuditLog receives coarse violation records. Raw matched content is never
// written to it.
type AuditLog interface {
	AppendAudit(ctx context.Context, e store.AuditEntry) error
}

// Guardian screens incoming text and enforces the privacy policy table.
type Guardian struct {
	audit AuditLog
}

func NewGuardian(audit AuditLog) *Guardian {
	return &Guardian{audit: audit}
}

func (g *Guardian) Name() string { return "privacy_guardian" }

// ScreenInput carries the guardian-specific request fields.
type ScreenInput struct {
	SessionID        string
	Text             string
	Mode             agent.PrivacyMode
	ProfileID        string
	SessionProfileID string
}

// ScreenOutput is the guardian's typed payload.
type ScreenOutput struct {
	Violations    []Violation `json:"violations"`
	Warnings      []string    `json:"warnings"`
	SanitizedText string      `json:"sanitized_text"`
	Sanitized     bool        `json:"sanitized"`
	Allowed       bool        `json:"allowed"`
	IsolationOK   bool        `json:"isolation_ok"`
}

// Screen runs detection and applies the 3-state policy table. It is pure
// text analysis aside from the audit side effect, which is best-effort.
func (g *Guardian) Screen(ctx context.Context, in ScreenInput) (ScreenOutput, agent.Result) {
	started := time.Now()

	violations := Detect(in.Text)
	out := ScreenOutput{
		Violations:    violations,
		SanitizedText: in.Text,
		Allowed:       true,
		IsolationOK:   true,
	}

	for _, v := range violations {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("detected %s (%s severity)", v.Category, v.Severity))
	}

	switch in.Mode {
	case agent.ModeIncognito:
		out.SanitizedText = Redact(in.Text, violations)
		out.Sanitized = out.SanitizedText != in.Text
		for _, v := range violations {
			if v.Severity == SeverityHigh {
				out.Allowed = false
				break
			}
		}
	case agent.ModeRetrievalOnly:
		out.Warnings = append(out.Warnings, "retrieval-only mode: nothing new will be stored this session")
	}

	// Isolation: a mismatched target profile is logged as an independent flag,
	// policy on it belongs to the orchestrator.
	if in.ProfileID != "" && in.SessionProfileID != "" && in.ProfileID != in.SessionProfileID {
		out.IsolationOK = false
		out.Warnings = append(out.Warnings, "profile isolation mismatch between request and session")
		log.Printf("privacy: isolation mismatch session_profile=%s request_profile=%s", in.SessionProfileID, in.ProfileID)
	}

	if len(violations) > 0 && g.audit != nil {
		if err := g.audit.AppendAudit(ctx, store.AuditEntry{
			SessionID: in.SessionID,
			ProfileID: in.SessionProfileID,
			Agent:     g.Name(),
			Action:    "violations_detected",
			Detail:    auditDetail(violations, len(in.Text)),
		}); err != nil {
			// Audit writes are optional, never fail the screen.
			log.Printf("privacy: audit write failed: %v", err)
		}
	}

	return out, agent.Succeed(0, time.Since(started), out.Warnings...)
}

// Redact replaces every violation span with its category placeholder, applied
// in descending offset order so earlier replacements never shift later
// offsets. Overlapping spans are collapsed into the first replacement.
func Redact(text string, violations []Violation) string {
	if len(violations) == 0 {
		return text
	}

	sorted := make([]Violation, len(violations))
	copy(sorted, violations)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start > sorted[j].Start
		}
		if len(sorted[i].Content) != len(sorted[j].Content) {
			return len(sorted[i].Content) > len(sorted[j].Content)
		}
		return severityRank(sorted[i].Severity) > severityRank(sorted[j].Severity)
	})

	out := text
	lastStart := len(text)
	for _, v := range sorted {
		end := v.Start + len(v.Content)
		if v.Start < 0 || end > len(text) {
			continue
		}
		if end > lastStart {
			// Overlaps a span already replaced.
			continue
		}
		out = out[:v.Start] + placeholderFor(v.Category) + out[end:]
		lastStart = v.Start
	}
	return out
}

func auditDetail(violations []Violation, contentLen int) string {
	detail := fmt.Sprintf("count=%d content_length=%d", len(violations), contentLen)
	for _, v := range violations {
		detail += fmt.Sprintf(" %s=%s", v.Category, v.Severity)
	}
	return detail
}
