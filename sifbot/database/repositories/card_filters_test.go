package repositories

import (
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestCardFilters_Match(t *testing.T) {
	tests := []struct {
		name    string
		filters CardFilters
		want    bson.M
	}{
		{
			name:    "empty filters match everything",
			filters: CardFilters{},
			want:    bson.M{},
		},
		{
			name:    "single equality",
			filters: CardFilters{Rarity: "UR"},
			want:    bson.M{"rarity": "UR"},
		},
		{
			name: "conjunction over idol fields",
			filters: CardFilters{
				Name:     "Honoka Kousaka",
				Year:     "Second",
				MainUnit: "μ's",
			},
			want: bson.M{
				"idol.name":      "Honoka Kousaka",
				"idol.year":      "Second",
				"idol.main_unit": "μ's",
			},
		},
		{
			name: "multi-value takes precedence",
			filters: CardFilters{
				Rarity:     "R",
				Rarities:   []string{"SR", "UR"},
				Attribute:  "Smile",
				Attributes: []string{"Pure", "Cool"},
			},
			want: bson.M{
				"rarity":    bson.M{"$in": []string{"SR", "UR"}},
				"attribute": bson.M{"$in": []string{"Pure", "Cool"}},
			},
		},
		{
			name:    "sub unit",
			filters: CardFilters{SubUnit: "Printemps"},
			want:    bson.M{"idol.sub_unit": "Printemps"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filters.Match(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}
