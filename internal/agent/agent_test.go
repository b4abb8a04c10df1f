package agent

import (
	"errors"
	"testing"
	"time"
)

func TestParseMode(t *testing.T) {
	cases := []struct {
		in      string
		want    PrivacyMode
		wantErr bool
	}{
		{"open", ModeOpen, false},
		{"incognito", ModeIncognito, false},
		{"retrieval-only", ModeRetrievalOnly, false},
		{"", ModeOpen, false},
		{"stealth", "", true},
		{"Open", "", true},
	}
	for _, tc := range cases {
		got, err := ParseMode(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseMode(%q) error = nil, want error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMode(%q) error = %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSucceedAndFailEnvelopes(t *testing.T) {
	ok := Succeed(42, 10*time.Millisecond, "minor warning")
	if !ok.OK || ok.TokensUsed != 42 || ok.ErrorCode != ErrNone {
		t.Fatalf("Succeed() = %+v", ok)
	}
	if len(ok.Warnings) != 1 {
		t.Fatalf("Succeed() warnings = %v, want one", ok.Warnings)
	}

	bad := Fail(ErrCompletionFailed, errors.New("upstream down"), 7, time.Millisecond)
	if bad.OK || bad.ErrorCode != ErrCompletionFailed || bad.Err != "upstream down" {
		t.Fatalf("Fail() = %+v", bad)
	}
	if bad.TokensUsed != 7 {
		t.Fatalf("Fail() tokens = %d, want 7 (cost counted even on failure)", bad.TokensUsed)
	}

	nilErr := Fail(ErrInternal, nil, 0, 0)
	if nilErr.Err != "" {
		t.Fatalf("Fail(nil error) message = %q, want empty", nilErr.Err)
	}
}
