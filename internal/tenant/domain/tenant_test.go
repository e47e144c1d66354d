package domain

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Acme", "acme"},
		{"spaces", "Acme Corp", "acme-corp"},
		{"punctuation runs", "Acme,  Inc. (EU)", "acme-inc-eu"},
		{"leading and trailing", "  --Acme--  ", "acme"},
		{"digits", "Team 42", "team-42"},
		{"non ascii dropped", "Café Zürich", "caf-z-rich"},
		{"nothing usable", "!!!", "tenant"},
		{"empty", "", "tenant"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Slugify(tc.in); got != tc.want {
				t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSlugify_Truncates(t *testing.T) {
	got := Slugify(strings.Repeat("ab ", 40))
	if len(got) > maxSlugLength {
		t.Fatalf("len = %d, want <= %d", len(got), maxSlugLength)
	}
	if strings.HasSuffix(got, "-") {
		t.Errorf("slug %q ends with hyphen", got)
	}
}

func TestTenant_Validate(t *testing.T) {
	if err := (&Tenant{Slug: "x"}).Validate(); err == nil {
		t.Error("missing name should fail")
	}
	if err := (&Tenant{Name: "X"}).Validate(); err == nil {
		t.Error("missing slug should fail")
	}
	if err := (&Tenant{Name: "X", Slug: "x"}).Validate(); err != nil {
		t.Errorf("valid tenant: %v", err)
	}
}
