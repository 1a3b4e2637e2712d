package models

// AlbumEntry tracks ownership of one card: at most one entry exists per
// (user, card) pair. TimeAcquired is set once, at first acquisition, in
// milliseconds since epoch.
type AlbumEntry struct {
	CardID          int   `bson:"id"`
	UnidolizedCount int   `bson:"unidolized_count"`
	IdolizedCount   int   `bson:"idolized_count"`
	TimeAcquired    int64 `bson:"time_acquired"`
}

// User is a player document. The album is embedded and kept sorted ascending
// by card ID.
type User struct {
	ID    string       `bson:"_id"`
	Album []AlbumEntry `bson:"album"`
}
