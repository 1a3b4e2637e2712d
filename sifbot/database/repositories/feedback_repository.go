package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/hahanour/sifbot/sifbot/config"
	"github.com/hahanour/sifbot/sifbot/database"
	"github.com/hahanour/sifbot/sifbot/database/models"
)

type FeedbackRepository interface {
	// Add appends one feedback record, stamped with the current time.
	Add(ctx context.Context, userID, username, message string) error
}

type feedbackRepository struct {
	coll database.Collection
}

func NewFeedbackRepository(db *database.DB) FeedbackRepository {
	return &feedbackRepository{coll: db.Collection("feedback")}
}

func (r *feedbackRepository) Add(ctx context.Context, userID, username, message string) error {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultQueryTimeout)
	defer cancel()

	_, err := r.coll.InsertOne(ctx, models.Feedback{
		UserID:   userID,
		Username: username,
		Date:     time.Now(),
		Message:  message,
	})
	if err != nil {
		return fmt.Errorf("failed to add feedback from %s: %w", userID, err)
	}
	return nil
}
