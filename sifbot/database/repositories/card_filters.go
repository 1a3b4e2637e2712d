package repositories

import "go.mongodb.org/mongo-driver/bson"

// CardFilters defines the available filters for catalog queries. Zero-value
// fields are ignored; set fields combine as a conjunction.
type CardFilters struct {
	Name     string
	Year     string
	MainUnit string
	SubUnit  string

	Rarity    string
	Attribute string

	// Multi-value variants; take precedence over the single-value fields.
	Rarities   []string
	Attributes []string
}

// Match builds the equality/$in predicate document for a $match stage.
func (f CardFilters) Match() bson.M {
	match := bson.M{}

	if f.Name != "" {
		match["idol.name"] = f.Name
	}
	if f.Year != "" {
		match["idol.year"] = f.Year
	}
	if f.MainUnit != "" {
		match["idol.main_unit"] = f.MainUnit
	}
	if f.SubUnit != "" {
		match["idol.sub_unit"] = f.SubUnit
	}

	switch {
	case len(f.Rarities) > 0:
		match["rarity"] = bson.M{"$in": f.Rarities}
	case f.Rarity != "":
		match["rarity"] = f.Rarity
	}

	switch {
	case len(f.Attributes) > 0:
		match["attribute"] = bson.M{"$in": f.Attributes}
	case f.Attribute != "":
		match["attribute"] = f.Attribute
	}

	return match
}
