package storefront

import "testing"

func TestIsRelevant(t *testing.T) {
	cases := []struct {
		title, term string
		want        bool
	}{
		{"Bamboo Sunglasses", "sunglasses", true},
		{"Polarized Shades", "sunglasses", true},
		{"Insulated Flask 750ml", "water bottle", true},
		{"Wooden Phone Dock", "phone stand", true},
		{"Silk Scarf", "shawl", true},
		{"Cotton Tote", "sunglasses", false},
		{"The Best Gift", "the gift of", true},
		{"An Apple", "an", false},
	}
	for _, c := range cases {
		if got := IsRelevant(c.title, c.term); got != c.want {
			t.Errorf("IsRelevant(%q, %q) = %v; want %v", c.title, c.term, got, c.want)
		}
	}
}

func TestExpandSearchTerms(t *testing.T) {
	got := ExpandSearchTerms("  Coffee Mug ")
	if len(got) == 0 || got[0] != "coffee mug" {
		t.Fatalf("ExpandSearchTerms first element = %v; want original term first", got)
	}
	if len(got) > MaxTermVariations {
		t.Errorf("got %d variations; want at most %d", len(got), MaxTermVariations)
	}
	seen := map[string]bool{}
	for _, v := range got {
		if seen[v] {
			t.Errorf("duplicate variation %q in %v", v, got)
		}
		seen[v] = true
	}

	if got := ExpandSearchTerms("wooden phone stand"); len(got) != MaxTermVariations {
		t.Errorf("wooden phone stand variations = %v; want %d", got, MaxTermVariations)
	}
	want := []string{"water bottle", "insulated bottle", "water bottle flask"}
	got = ExpandSearchTerms("water bottle")
	if len(got) != len(want) {
		t.Fatalf("ExpandSearchTerms(%q) = %v; want %v", "water bottle", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ExpandSearchTerms(%q)[%d] = %q; want %q", "water bottle", i, got[i], want[i])
		}
	}
	if got := ExpandSearchTerms("   "); got != nil {
		t.Errorf("blank term = %v; want nil", got)
	}
	if got := ExpandSearchTerms("gift card"); len(got) != 1 {
		t.Errorf("term without synonyms = %v; want just the term", got)
	}
}
