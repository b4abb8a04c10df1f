package observability

import "testing"

func TestAgentWindowSnapshot(t *testing.T) {
	w := NewAgentWindow(8)
	w.Observe("response_generator", 500)
	w.Observe("response_generator", 700)
	w.Observe("response_generator", 900)
	w.ObserveIndicator("fallback_reply")
	w.ObserveIndicator("fallback_reply")

	snap := w.Snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Agents) != 1 {
		t.Fatalf("len(Agents) = %d, want 1", len(snap.Agents))
	}
	s := snap.Agents[0]
	if s.Agent != "response_generator" {
		t.Fatalf("Agent = %q, want %q", s.Agent, "response_generator")
	}
	if s.Samples != 3 {
		t.Fatalf("Samples = %d, want 3", s.Samples)
	}
	if s.LastMS != 900 {
		t.Fatalf("LastMS = %.2f, want 900", s.LastMS)
	}
	if s.P50MS != 700 {
		t.Fatalf("P50MS = %.2f, want 700", s.P50MS)
	}
	if s.P95MS <= 700 || s.P95MS > 900 {
		t.Fatalf("P95MS = %.2f, want (700,900]", s.P95MS)
	}
	if len(snap.Indicators) != 1 {
		t.Fatalf("len(Indicators) = %d, want 1", len(snap.Indicators))
	}
	if snap.Indicators[0].Name != "fallback_reply" {
		t.Fatalf("Indicators[0].Name = %q, want %q", snap.Indicators[0].Name, "fallback_reply")
	}
	if snap.Indicators[0].Count != 2 {
		t.Fatalf("Indicators[0].Count = %d, want %d", snap.Indicators[0].Count, 2)
	}
}

func TestAgentWindowWrapsRing(t *testing.T) {
	w := NewAgentWindow(4)
	for i := 0; i < 10; i++ {
		w.Observe("memory_retriever", float64(i*100))
	}
	snap := w.Snapshot()
	if len(snap.Agents) != 1 {
		t.Fatalf("len(Agents) = %d, want 1", len(snap.Agents))
	}
	s := snap.Agents[0]
	if s.Samples != 4 {
		t.Fatalf("Samples = %d, want 4 after wrap", s.Samples)
	}
	if s.LastMS != 900 {
		t.Fatalf("LastMS = %.2f, want 900", s.LastMS)
	}
}
