package billing

import (
	"strconv"
	"strings"

	"github.com/prepvidya/PrepVidya/app/models"
)

// LegacyAppleProductIDs translates bundle-style identifiers stored by early
// seeds into the product-id convention the App Store uses today. The table
// must be preserved exactly for existing entitlements to keep resolving.
// An entry mapping to "" is deliberately unresolvable: the App Store product
// does not exist yet and must not be auto-mapped.
var LegacyAppleProductIDs = map[string]string{
	"com.prepvidya.neetapp.neet2026": "neet_2026_plan",
	"com.prepvidya.neetapp.neet2027": "",
}

// Catalog resolves a plan's external product id per payment rail.
type Catalog struct {
	legacyAppleIDs map[string]string
}

// NewCatalog builds a catalog around an immutable legacy-id translation
// table. The map is copied so callers (and tests) can swap tables freely.
func NewCatalog(legacyAppleIDs map[string]string) *Catalog {
	cp := make(map[string]string, len(legacyAppleIDs))
	for k, v := range legacyAppleIDs {
		cp[k] = v
	}
	return &Catalog{legacyAppleIDs: cp}
}

// NewDefaultCatalog builds a catalog with the production translation table.
func NewDefaultCatalog() *Catalog {
	return NewCatalog(LegacyAppleProductIDs)
}

// ExternalProductID maps a plan to the rail's product identifier. An empty
// result means the plan cannot be purchased through that rail (fail closed).
func (c *Catalog) ExternalProductID(plan *models.Plan, rail Rail) string {
	if plan == nil {
		return ""
	}

	switch rail {
	case RailGateway:
		// Gateway orders are created server-side against an internal plan,
		// so the plan id itself is the product identity on that rail.
		return "plan:" + strconv.FormatUint(uint64(plan.ID), 10)
	case RailAppleIAP:
		return c.appleProductID(plan)
	default:
		return ""
	}
}

func (c *Catalog) appleProductID(plan *models.Plan) string {
	// Prefer the explicit catalog value.
	if explicit := strings.TrimSpace(plan.AppleProductID); explicit != "" {
		if translated, ok := c.legacyAppleIDs[explicit]; ok {
			return translated
		}
		return explicit
	}

	// Fallback mapping for legacy rows seeded before appleProductId existed.
	// Intentionally simple and deterministic; new plans must be mapped
	// explicitly, never by name.
	lowered := strings.ToLower(strings.TrimSpace(plan.Name))
	if lowered == "" {
		return ""
	}
	if strings.Contains(lowered, "neet") && strings.Contains(lowered, "2026") {
		return "neet_2026_plan"
	}

	return ""
}
