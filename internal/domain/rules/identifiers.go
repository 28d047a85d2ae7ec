package rules

import (
	"strconv"
	"strings"
)

// IsNumericItemID reports whether an item id has the legacy numeric shape,
// i.e. it was written with the catalog row id instead of the canonical id.
func IsNumericItemID(itemID string) bool {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return false
	}
	for _, r := range itemID {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func ParseInternalID(itemID string) (int64, bool) {
	if !IsNumericItemID(itemID) {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(itemID), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func NormalizeUserID(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func NormalizeItemID(raw string) string {
	return strings.TrimSpace(raw)
}
