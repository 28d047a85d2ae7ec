package rules

import (
	"testing"

	"github.com/numaken/genpost-sub001/internal/domain/model"
)

func TestIsAvailableMatrix(t *testing.T) {
	free := model.CatalogItem{CanonicalID: "free-01", IsFree: true}
	paid := model.CatalogItem{CanonicalID: "seo-basic-01", Price: 500}

	cases := []struct {
		name      string
		item      model.CatalogItem
		userID    string
		purchased bool
		want      bool
	}{
		{"anonymous free", free, "", false, true},
		{"anonymous paid", paid, "", false, false},
		{"anonymous paid ignores purchase flag", paid, "  ", true, false},
		{"user free", free, "u1", false, true},
		{"user paid without purchase", paid, "u1", false, false},
		{"user paid with purchase", paid, "u1", true, true},
	}

	for _, tc := range cases {
		if got := IsAvailable(tc.item, tc.userID, tc.purchased); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}
