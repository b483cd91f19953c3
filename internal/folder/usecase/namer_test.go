package usecase

import "testing"

func TestFolderNamer_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "Misc"},
		{"whitespace only", "   ", "Misc"},
		{"known root kept", "Finance/Receipts", "Finance/Receipts"},
		{"lowercase repaired", "finance/receipts", "Finance/Receipts"},
		{"mixed case repaired", "fINANCE/rECEIPTS", "Finance/Receipts"},
		{"unknown root reparented", "Taxes/2026", "Misc/Taxes/2026"},
		{"disallowed chars stripped", "Finance/Tax + Documents!", "Finance/Tax Documents"},
		{"multi word segment", "Finance/tax documents", "Finance/Tax Documents"},
		{"depth capped", "Finance/A/B/C/D", "Finance/A/B"},
		{"unknown root depth capped", "Deep/A/B/C", "Misc/Deep/A"},
		{"empty segments dropped", "Finance//Receipts", "Finance/Receipts"},
		{"only punctuation", "!!!", "Misc"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n := &FolderNamer{}
			if got := n.Normalize(tc.in); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestFolderNamer_NormalizeIsIdempotent(t *testing.T) {
	n := &FolderNamer{}
	inputs := []string{"finance/receipts", "Taxes/2026", "Finance/Tax + Documents!", ""}
	for _, in := range inputs {
		once := n.Normalize(in)
		twice := n.Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}
