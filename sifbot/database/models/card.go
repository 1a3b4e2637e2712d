// models/card.go
package models

// Idol is the nested idol document embedded in a catalog card.
type Idol struct {
	Name     string `bson:"name,omitempty" json:"name"`
	Year     string `bson:"year,omitempty" json:"year"`
	MainUnit string `bson:"main_unit,omitempty" json:"main_unit"`
	SubUnit  string `bson:"sub_unit,omitempty" json:"sub_unit"`
}

// Card is one catalog entry. The card ID doubles as the storage primary key;
// upserts fully overwrite every attribute field keyed by it.
type Card struct {
	ID int `bson:"_id" json:"id"`

	Idol      Idol   `bson:"idol,omitempty" json:"idol"`
	Rarity    string `bson:"rarity,omitempty" json:"rarity"`
	Attribute string `bson:"attribute,omitempty" json:"attribute"`

	CardImage              string `bson:"card_image,omitempty" json:"card_image"`
	CardIdolizedImage      string `bson:"card_idolized_image,omitempty" json:"card_idolized_image"`
	RoundCardImage         string `bson:"round_card_image,omitempty" json:"round_card_image"`
	RoundCardIdolizedImage string `bson:"round_card_idolized_image,omitempty" json:"round_card_idolized_image"`
}
