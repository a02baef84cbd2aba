package peerset

import "testing"

func TestAddIsIdempotent(t *testing.T) {
	s := New()
	s.Add("127.0.0.1:5001")
	s.Add("127.0.0.1:5001")

	if got := s.List(); len(got) != 1 {
		t.Errorf("List() = %v, want a single entry after adding the same endpoint twice", got)
	}
}

func TestRemove(t *testing.T) {
	s := New()
	s.Add("127.0.0.1:5001")
	s.Remove("127.0.0.1:5001")

	if got := s.List(); len(got) != 0 {
		t.Errorf("List() = %v, want empty after Remove", got)
	}
}

func TestReplaceAll(t *testing.T) {
	s := New()
	s.Add("127.0.0.1:5001")
	s.ReplaceAll([]string{"127.0.0.1:6001", "127.0.0.1:6002"})

	got := s.List()
	if len(got) != 2 {
		t.Fatalf("List() = %v, want 2 entries after ReplaceAll", got)
	}
	seen := map[string]bool{}
	for _, endpoint := range got {
		seen[endpoint] = true
	}
	if !seen["127.0.0.1:6001"] || !seen["127.0.0.1:6002"] {
		t.Errorf("List() = %v, want the replaced endpoints", got)
	}
}
