package billing

import (
	"testing"

	"github.com/prepvidya/PrepVidya/app/models"
)

func TestExternalProductIDGateway(t *testing.T) {
	catalog := NewDefaultCatalog()

	plan := &models.Plan{ID: 42, Name: "NEET 2026"}
	if got := catalog.ExternalProductID(plan, RailGateway); got != "plan:42" {
		t.Fatalf("expected plan:42, got %q", got)
	}

	// Gateway product ids are intrinsic, even without an explicit mapping.
	unmapped := &models.Plan{ID: 7, Name: "Some Future Plan"}
	if got := catalog.ExternalProductID(unmapped, RailGateway); got != "plan:7" {
		t.Fatalf("expected plan:7, got %q", got)
	}
}

func TestExternalProductIDAppleExplicit(t *testing.T) {
	catalog := NewDefaultCatalog()

	plan := &models.Plan{ID: 1, Name: "NEET 2026", AppleProductID: "neet_2026_plan"}
	if got := catalog.ExternalProductID(plan, RailAppleIAP); got != "neet_2026_plan" {
		t.Fatalf("expected neet_2026_plan, got %q", got)
	}
}

func TestExternalProductIDAppleLegacyTranslation(t *testing.T) {
	catalog := NewDefaultCatalog()

	legacy := &models.Plan{ID: 1, Name: "NEET 2026", AppleProductID: "com.prepvidya.neetapp.neet2026"}
	if got := catalog.ExternalProductID(legacy, RailAppleIAP); got != "neet_2026_plan" {
		t.Fatalf("expected legacy id to translate to neet_2026_plan, got %q", got)
	}

	// A legacy entry mapping to "" is deliberately unresolvable.
	blocked := &models.Plan{ID: 2, Name: "NEET 2027", AppleProductID: "com.prepvidya.neetapp.neet2027"}
	if got := catalog.ExternalProductID(blocked, RailAppleIAP); got != "" {
		t.Fatalf("expected blocked legacy id to resolve to empty, got %q", got)
	}
}

func TestExternalProductIDAppleNameFallback(t *testing.T) {
	catalog := NewDefaultCatalog()

	cases := []struct {
		name     string
		planName string
		want     string
	}{
		{"neet 2026 by name", "NEET 2026 Full Course", "neet_2026_plan"},
		{"case insensitive", "neet 2026", "neet_2026_plan"},
		{"unrelated name", "JEE 2026 Full Course", ""},
		{"empty name", "", ""},
		{"year without exam", "Crash Course 2026", ""},
	}

	for _, tc := range cases {
		plan := &models.Plan{ID: 5, Name: tc.planName}
		if got := catalog.ExternalProductID(plan, RailAppleIAP); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestExternalProductIDFailsClosed(t *testing.T) {
	catalog := NewDefaultCatalog()

	if got := catalog.ExternalProductID(nil, RailAppleIAP); got != "" {
		t.Fatalf("expected empty for nil plan, got %q", got)
	}

	plan := &models.Plan{ID: 1, Name: "NEET 2026"}
	if got := catalog.ExternalProductID(plan, Rail("GOOGLE_PLAY")); got != "" {
		t.Fatalf("expected empty for unknown rail, got %q", got)
	}
}

func TestNewCatalogCopiesTable(t *testing.T) {
	table := map[string]string{"old_id": "new_id"}
	catalog := NewCatalog(table)

	table["old_id"] = "mutated"

	plan := &models.Plan{ID: 1, Name: "x", AppleProductID: "old_id"}
	if got := catalog.ExternalProductID(plan, RailAppleIAP); got != "new_id" {
		t.Fatalf("expected catalog to be isolated from caller mutation, got %q", got)
	}
}
