package store

import (
	"encoding/json"
	"testing"
)

func TestMatchStatusValues(t *testing.T) {
	statuses := []MatchStatus{MatchPending, MatchApproved, MatchDismissed, MatchConverted}
	expected := []string{"pending", "approved", "dismissed", "converted"}
	for i, s := range statuses {
		if string(s) != expected[i] {
			t.Errorf("expected %s, got %s", expected[i], s)
		}
		if !s.Valid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if MatchStatus("archived").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}

func TestMatchFilterDefaults(t *testing.T) {
	f := MatchFilter{}
	if f.Limit != 0 {
		t.Errorf("expected 0 default limit, got %d", f.Limit)
	}
	if f.Statuses != nil {
		t.Error("expected nil status filter")
	}
	if f.IncludeConverted {
		t.Error("expected converted matches hidden by default")
	}
}

func TestJSONIDs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{`[7, "8", {"id": 9}]`, []string{"7", "8", "9"}},
		{`{"country_id": 12}`, []string{"12"}},
		{`12`, []string{"12"}},
		{`not json`, nil},
		{``, nil},
	}
	for _, tt := range tests {
		got := jsonIDs(json.RawMessage(tt.in))
		if len(got) != len(tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.in, tt.want, got)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%s: expected %v, got %v", tt.in, tt.want, got)
			}
		}
	}
}
