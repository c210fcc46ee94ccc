package matcher

import "testing"

func TestSingleWordRespectsTokenBoundaries(t *testing.T) {
	cases := []struct {
		haystack string
		expected bool
	}{
		{"suspicious lesions noted", false},
		{"average risk patient", false},
		{"breast us performed", true},
		{"US examination", true},
		{"focus on results", false},
	}

	for _, tc := range cases {
		matches, err := FindMatches(tc.haystack, []string{"us"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := len(matches) > 0; got != tc.expected {
			t.Fatalf("haystack %q: expected match=%v, got %v", tc.haystack, tc.expected, got)
		}
	}
}

func TestSeparatorsAreBoundaries(t *testing.T) {
	filenames := []string{
		"dxa_scan.pdf",
		"DXA-scan.pdf",
		"dxa.scan.pdf",
		"bone_density_dxa.pdf",
	}

	set, err := Compile([]string{"dxa"})
	if err != nil {
		t.Fatalf("failed to compile: %v", err)
	}

	for _, name := range filenames {
		matches := set.FindMatches(name)
		if len(matches) != 1 {
			t.Fatalf("filename %q: expected exactly one match, got %d", name, len(matches))
		}
		if matches[0].IsPhrase {
			t.Fatalf("filename %q: single word reported as phrase", name)
		}
	}
}

func TestPhraseAllowsFlexibleSeparators(t *testing.T) {
	positives := []string{
		"breast US examination",
		"Breast-US shows normal findings",
		"breast_us recommended",
		"breast.us follow-up",
	}

	set, err := Compile([]string{"breast us"})
	if err != nil {
		t.Fatalf("failed to compile: %v", err)
	}

	for _, haystack := range positives {
		matches := set.FindMatches(haystack)
		if len(matches) != 1 {
			t.Fatalf("haystack %q: expected one phrase match, got %d", haystack, len(matches))
		}
		if !matches[0].IsPhrase {
			t.Fatalf("haystack %q: expected phrase match", haystack)
		}
	}

	if matches := set.FindMatches("breastus combined token"); len(matches) != 0 {
		t.Fatalf("expected no match inside fused token, got %d", len(matches))
	}
	if matches := set.FindMatches("us breast reversed order"); len(matches) != 0 {
		t.Fatalf("expected no match for reversed word order, got %d", len(matches))
	}
}

func TestNoSubstringOfLongerToken(t *testing.T) {
	set, err := Compile([]string{"mammogram", "mammography", "breast us"})
	if err != nil {
		t.Fatalf("failed to compile: %v", err)
	}

	haystack := "average risk patient with suspicious lesions, no imaging terms here"
	if matches := set.FindMatches(haystack); len(matches) != 0 {
		t.Fatalf("expected zero matches, got %v", matches)
	}
}

func TestMatchSpanExcludesBoundaryCharacters(t *testing.T) {
	set, err := Compile([]string{"dxa"})
	if err != nil {
		t.Fatalf("failed to compile: %v", err)
	}

	haystack := "bone_density_dxa.pdf"
	matches := set.FindMatches(haystack)
	if len(matches) != 1 {
		t.Fatalf("expected one match, got %d", len(matches))
	}
	if got := haystack[matches[0].Start:matches[0].End]; got != "dxa" {
		t.Fatalf("expected span %q, got %q", "dxa", got)
	}
}

func TestCompileSkipsBlankAndDuplicatePatterns(t *testing.T) {
	set, err := Compile([]string{" dxa ", "DXA", "", "  "})
	if err != nil {
		t.Fatalf("failed to compile: %v", err)
	}
	if set.Len() != 1 {
		t.Fatalf("expected one compiled pattern, got %d", set.Len())
	}
}
