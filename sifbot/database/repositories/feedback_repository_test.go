package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/hahanour/sifbot/sifbot/database/mock"
	"github.com/hahanour/sifbot/sifbot/database/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/mock/gomock"
)

func Test_feedbackRepository_Add(t *testing.T) {
	coll := mock.NewMockCollection(gomock.NewController(t))
	repo := &feedbackRepository{coll: coll}

	var inserted models.Feedback
	coll.EXPECT().
		InsertOne(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, document interface{}, _ ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
			inserted = document.(models.Feedback)
			return &mongo.InsertOneResult{}, nil
		})

	err := repo.Add(context.Background(), "u1", "honk", "more cards please")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if inserted.UserID != "u1" || inserted.Username != "honk" || inserted.Message != "more cards please" {
		t.Errorf("inserted = %+v, want the given fields", inserted)
	}
	if inserted.Date.IsZero() {
		t.Errorf("inserted.Date is zero, want a timestamp")
	}
}

func Test_feedbackRepository_Add_error(t *testing.T) {
	coll := mock.NewMockCollection(gomock.NewController(t))
	repo := &feedbackRepository{coll: coll}

	wantErr := errors.New("connection reset")
	coll.EXPECT().
		InsertOne(gomock.Any(), gomock.Any()).
		Return(nil, wantErr)

	err := repo.Add(context.Background(), "u1", "honk", "oops")
	if !errors.Is(err, wantErr) {
		t.Errorf("Add() error = %v, want wrapped %v", err, wantErr)
	}
}
