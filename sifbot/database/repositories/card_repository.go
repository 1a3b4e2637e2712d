package repositories

import (
	"context"
	"fmt"

	"github.com/hahanour/sifbot/sifbot/config"
	"github.com/hahanour/sifbot/sifbot/database"
	"github.com/hahanour/sifbot/sifbot/database/models"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sahilm/fuzzy"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// cardProjection limits reads to the display fields; internal catalog fields
// never leave the repository.
var cardProjection = bson.D{
	{Key: "idol.name", Value: 1},
	{Key: "idol.year", Value: 1},
	{Key: "idol.main_unit", Value: 1},
	{Key: "idol.sub_unit", Value: 1},
	{Key: "rarity", Value: 1},
	{Key: "attribute", Value: 1},
	{Key: "card_image", Value: 1},
	{Key: "card_idolized_image", Value: 1},
	{Key: "round_card_image", Value: 1},
	{Key: "round_card_idolized_image", Value: 1},
}

type CardRepository interface {
	// Upsert writes the card keyed by its ID, creating it if absent and
	// fully overwriting it if present. The ID must be set.
	Upsert(ctx context.Context, card *models.Card) error
	// GetByID returns the card with the given ID, or nil if not found.
	GetByID(ctx context.Context, id int) (*models.Card, error)
	// GetByIDs returns every catalog entry whose ID is in ids. Order is
	// store-defined and not guaranteed to match the input.
	GetByIDs(ctx context.Context, ids []int) ([]*models.Card, error)
	// GetRandom returns up to count cards matching the filters, sampled
	// uniformly without replacement.
	GetRandom(ctx context.Context, filters CardFilters, count int) ([]*models.Card, error)
	// GetAllIDs returns the distinct set of all card IDs in the catalog.
	GetAllIDs(ctx context.Context) ([]int, error)
	// SearchByIdolName fuzzy-matches the query against idol names and
	// returns the best-matching cards, at most limit of them.
	SearchByIdolName(ctx context.Context, query string, limit int) ([]*models.Card, error)
}

type cardRepository struct {
	coll  database.Collection
	cache *lru.Cache
}

func NewCardRepository(db *database.DB) CardRepository {
	return newCardRepository(db.Collection("cards"))
}

func newCardRepository(coll database.Collection) *cardRepository {
	cache, _ := lru.New(config.CardCacheSize)
	return &cardRepository{
		coll:  coll,
		cache: cache,
	}
}

func (r *cardRepository) Upsert(ctx context.Context, card *models.Card) error {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	if card == nil || card.ID <= 0 {
		return fmt.Errorf("card upsert requires a positive id")
	}

	set := bson.M{
		"idol":                      card.Idol,
		"rarity":                    card.Rarity,
		"attribute":                 card.Attribute,
		"card_image":                card.CardImage,
		"card_idolized_image":       card.CardIdolizedImage,
		"round_card_image":          card.RoundCardImage,
		"round_card_idolized_image": card.RoundCardIdolizedImage,
	}

	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": card.ID},
		bson.M{"$set": set},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert card %d: %w", card.ID, err)
	}

	r.cache.Remove(card.ID)
	return nil
}

func (r *cardRepository) GetByID(ctx context.Context, id int) (*models.Card, error) {
	if cached, ok := r.cache.Get(id); ok {
		return cached.(*models.Card), nil
	}

	cards, err := r.GetByIDs(ctx, []int{id})
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, nil
	}

	r.cache.Add(id, cards[0])
	return cards[0], nil
}

func (r *cardRepository) GetByIDs(ctx context.Context, ids []int) ([]*models.Card, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	cursor, err := r.coll.Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().
			SetProjection(cardProjection).
			SetLimit(config.MaxResultSetSize),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer cursor.Close(ctx)

	var cards []*models.Card
	if err := cursor.All(ctx, &cards); err != nil {
		return nil, fmt.Errorf("failed to decode cards: %w", err)
	}
	return cards, nil
}

func (r *cardRepository) GetRandom(ctx context.Context, filters CardFilters, count int) ([]*models.Card, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	if count > config.MaxSampleSize {
		count = config.MaxSampleSize
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filters.Match()}},
		{{Key: "$sample", Value: bson.D{{Key: "size", Value: count}}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to sample cards: %w", err)
	}
	defer cursor.Close(ctx)

	var cards []*models.Card
	if err := cursor.All(ctx, &cards); err != nil {
		return nil, fmt.Errorf("failed to decode sampled cards: %w", err)
	}
	return cards, nil
}

func (r *cardRepository) GetAllIDs(ctx context.Context) ([]int, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	values, err := r.coll.Distinct(ctx, "_id", bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to list card ids: %w", err)
	}

	ids := make([]int, 0, len(values))
	for _, v := range values {
		if id, ok := asInt(v); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *cardRepository) SearchByIdolName(ctx context.Context, query string, limit int) ([]*models.Card, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	cursor, err := r.coll.Find(ctx, bson.D{},
		options.Find().
			SetProjection(cardProjection).
			SetLimit(config.MaxResultSetSize),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog for search: %w", err)
	}
	defer cursor.Close(ctx)

	var cards []*models.Card
	if err := cursor.All(ctx, &cards); err != nil {
		return nil, fmt.Errorf("failed to decode catalog for search: %w", err)
	}

	names := make([]string, len(cards))
	for i, card := range cards {
		names[i] = card.Idol.Name
	}

	var results []*models.Card
	for _, match := range fuzzy.Find(query, names) {
		results = append(results, cards[match.Index])
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

// asInt normalizes the numeric types the driver hands back for _id values.
func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
