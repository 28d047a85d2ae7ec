package rules

import (
	"strings"

	"github.com/numaken/genpost-sub001/internal/domain/model"
)

// IsAvailable reports whether a caller may use item. Free items are available
// to everyone; paid items only to an identified user holding an active
// purchase. An empty userID is an anonymous caller.
func IsAvailable(item model.CatalogItem, userID string, hasActivePurchase bool) bool {
	if item.IsFree {
		return true
	}
	if strings.TrimSpace(userID) == "" {
		return false
	}
	return hasActivePurchase
}
