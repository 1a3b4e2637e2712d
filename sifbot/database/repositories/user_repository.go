package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hahanour/sifbot/sifbot/config"
	"github.com/hahanour/sifbot/sifbot/database"
	"github.com/hahanour/sifbot/sifbot/database/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UserRepository interface {
	// Create inserts a new user with an empty album. Returns ErrDuplicateKey
	// (wrapped) when the user already exists.
	Create(ctx context.Context, userID string) error
	// Delete removes the user document. Deleting a missing user is a no-op.
	Delete(ctx context.Context, userID string) error
	// GetAllIDs returns the distinct set of all user IDs.
	GetAllIDs(ctx context.Context) ([]string, error)
	// GetByID returns the full user document, or nil if not found.
	GetByID(ctx context.Context, userID string) (*models.User, error)
	// GetAlbum returns the user's album. A missing user and an empty album
	// both yield an empty slice; callers needing the distinction use GetByID.
	GetAlbum(ctx context.Context, userID string) ([]models.AlbumEntry, error)
	// GetAlbumEntry returns the album entry for one card, or nil if the user
	// does not own it.
	GetAlbumEntry(ctx context.Context, userID string, cardID int) (*models.AlbumEntry, error)
	// AddCards records an acquisition of each card, inserting a fresh album
	// entry or incrementing the matching counter. Cards are processed
	// sequentially; a failure leaves earlier cards committed.
	AddCards(ctx context.Context, userID string, cards []*models.Card, idolized bool) error
	// RemoveFromAlbum decrements one of the entry's counters by count and
	// reports whether an entry existed. Counts are written back as computed:
	// they are not clamped at zero and the entry is never pruned.
	RemoveFromAlbum(ctx context.Context, userID string, cardID int, idolized bool, count int) (bool, error)
}

type userRepository struct {
	coll database.Collection
}

func NewUserRepository(db *database.DB) UserRepository {
	return &userRepository{coll: db.Collection("users")}
}

func (r *userRepository) Create(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	_, err := r.coll.InsertOne(ctx, models.User{
		ID:    userID,
		Album: []models.AlbumEntry{},
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("user %s: %w", userID, ErrDuplicateKey)
		}
		return fmt.Errorf("failed to create user %s: %w", userID, err)
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete user %s: %w", userID, err)
	}
	return nil
}

func (r *userRepository) GetAllIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	values, err := r.coll.Distinct(ctx, "_id", bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *userRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	slog.Debug("UserRepository.GetByID called",
		slog.String("type", "db"),
		slog.String("operation", "GetByID"),
		slog.String("user_id", userID))

	user := new(models.User)
	err := r.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		slog.Error("Database error when getting user",
			slog.String("type", "db"),
			slog.String("operation", "GetByID"),
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to find user %s: %w", userID, err)
	}
	return user, nil
}

func (r *userRepository) GetAlbum(ctx context.Context, userID string) ([]models.AlbumEntry, error) {
	user, err := r.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return []models.AlbumEntry{}, nil
	}
	return user.Album, nil
}

func (r *userRepository) GetAlbumEntry(ctx context.Context, userID string, cardID int) (*models.AlbumEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	var user models.User
	err := r.coll.FindOne(ctx,
		bson.M{"_id": userID},
		options.FindOne().SetProjection(bson.M{
			"album": bson.M{"$elemMatch": bson.M{"id": cardID}},
		}),
	).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query album entry %s/%d: %w", userID, cardID, err)
	}

	if len(user.Album) == 0 {
		return nil, nil
	}
	return &user.Album[0], nil
}

func (r *userRepository) AddCards(ctx context.Context, userID string, cards []*models.Card, idolized bool) error {
	// Each card is an independent round trip; the batch is not atomic.
	// The hasCard probe and the follow-up write are also separate commands,
	// so concurrent adds of the same card can race into duplicate entries.
	for _, card := range cards {
		has, err := r.hasCard(ctx, userID, card.ID)
		if err != nil {
			return err
		}

		if !has {
			if err := r.pushAlbumEntry(ctx, userID, card.ID); err != nil {
				return err
			}
			continue
		}

		field := "album.$.unidolized_count"
		if idolized {
			field = "album.$.idolized_count"
		}
		qctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
		_, err = r.coll.UpdateOne(qctx,
			bson.M{"_id": userID, "album.id": card.ID},
			bson.M{"$inc": bson.M{field: 1}},
		)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to increment album count %s/%d: %w", userID, card.ID, err)
		}
	}
	return nil
}

// pushAlbumEntry inserts a fresh entry and re-sorts the album ascending by
// card ID. The first acquisition always counts as unidolized; the idolized
// flag only affects increments of an existing entry.
func (r *userRepository) pushAlbumEntry(ctx context.Context, userID string, cardID int) error {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	entry := models.AlbumEntry{
		CardID:          cardID,
		UnidolizedCount: 1,
		IdolizedCount:   0,
		TimeAcquired:    time.Now().UnixMilli(),
	}

	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$push": bson.M{"album": bson.M{
			"$each": bson.A{entry},
			"$sort": bson.M{"id": 1},
		}}},
	)
	if err != nil {
		return fmt.Errorf("failed to push album entry %s/%d: %w", userID, cardID, err)
	}
	return nil
}

func (r *userRepository) RemoveFromAlbum(ctx context.Context, userID string, cardID int, idolized bool, count int) (bool, error) {
	entry, err := r.GetAlbumEntry(ctx, userID, cardID)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}

	newUnidolized := entry.UnidolizedCount
	newIdolized := entry.IdolizedCount
	if idolized {
		newIdolized -= count
	} else {
		newUnidolized -= count
	}

	// Written back as computed: a count larger than the current value drives
	// the counter negative, and an all-zero entry stays in the album.
	qctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	_, err = r.coll.UpdateOne(qctx,
		bson.M{"_id": userID, "album.id": cardID},
		bson.M{"$set": bson.M{
			"album.$.unidolized_count": newUnidolized,
			"album.$.idolized_count":   newIdolized,
		}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to update album entry %s/%d: %w", userID, cardID, err)
	}
	return true, nil
}

// hasCard reports whether the user's album holds an entry for the card. The
// projection returns only the identity field when there is no match, so the
// "found" signal is any field beyond it.
func (r *userRepository) hasCard(ctx context.Context, userID string, cardID int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	raw, err := r.coll.FindOne(ctx,
		bson.M{"_id": userID},
		options.FindOne().SetProjection(bson.M{
			"album": bson.M{"$elemMatch": bson.M{"id": cardID}},
		}),
	).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("failed to probe album %s/%d: %w", userID, cardID, err)
	}

	elements, err := raw.Elements()
	if err != nil {
		return false, fmt.Errorf("failed to inspect album probe %s/%d: %w", userID, cardID, err)
	}
	return len(elements) > 1, nil
}
