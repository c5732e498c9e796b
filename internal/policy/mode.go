package policy

import (
	"fmt"

	"github.com/google/uuid"
)

// Mode selects how product reads are authorized.
type Mode string

const (
	// ModeCatalogScoped grants product reads through the owning catalog only.
	ModeCatalogScoped Mode = "catalog-scoped"
	// ModeLegacyProductScoped additionally honors a product's own accessibleTo list.
	// Deprecated: kept for data created before catalog permissions existed.
	ModeLegacyProductScoped Mode = "legacy-product-scoped"
)

// ParseMode maps a configuration value to a Mode. Empty selects ModeCatalogScoped.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case "", ModeCatalogScoped:
		return ModeCatalogScoped, nil
	case ModeLegacyProductScoped:
		return ModeLegacyProductScoped, nil
	}
	return "", fmt.Errorf("unknown access mode %q", raw)
}

// CanReadProduct decides product visibility under the given mode.
func CanReadProduct(mode Mode, c CatalogView, accessibleTo []uuid.UUID, s Subject) bool {
	if CanRead(c, s) {
		return true
	}
	return mode == ModeLegacyProductScoped && contains(accessibleTo, s.UserID)
}
