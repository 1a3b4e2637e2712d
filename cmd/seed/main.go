package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hahanour/sifbot/sifbot"
	"github.com/hahanour/sifbot/sifbot/config"
	"github.com/hahanour/sifbot/sifbot/database"
	"github.com/hahanour/sifbot/sifbot/database/models"
	"github.com/hahanour/sifbot/sifbot/database/repositories"
	"github.com/hahanour/sifbot/sifbot/logger"
	"github.com/hahanour/sifbot/sifbot/services"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	customHandler := logger.NewHandler()
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting SIFBot card seeder",
		slog.String("version", version),
		slog.String("commit", commit))

	configPath := flag.String("config", "config.toml", "path to config")
	cardsPath := flag.String("cards", "cards.json", "path to the card catalog file")
	verifyImages := flag.Bool("verify-images", false, "check that card artwork exists in Spaces")
	flag.Parse()

	cfg, err := sifbot.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Failed to connect to database", slog.Any("error", err))
		os.Exit(-1)
	}
	defer db.Close(context.Background())

	cards, err := loadCards(*cardsPath)
	if err != nil {
		logger.LogError("Failed to load card catalog", err)
		os.Exit(-1)
	}
	logger.LogSystem("Card catalog loaded",
		slog.String("path", *cardsPath),
		slog.Int("count", len(cards)))

	repo := repositories.NewCardRepository(db)

	startTime := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.SeedWorkers)

	for _, card := range cards {
		card := card
		g.Go(func() error {
			return repo.Upsert(gctx, card)
		})
	}
	err = g.Wait()
	logger.LogQuery("seed.upsert", time.Since(startTime), err)
	if err != nil {
		os.Exit(-1)
	}

	if *verifyImages {
		verifyCardImages(ctx, cfg.Spaces, cards)
	}
}

// loadCards reads the catalog file, dropping entries without a usable ID and
// keeping the last occurrence of any duplicated ID.
func loadCards(path string) ([]*models.Card, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []*models.Card
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}

	byID := make(map[int]*models.Card, len(entries))
	var order []int
	for _, card := range entries {
		if card == nil || card.ID <= 0 {
			slog.Warn("Skipping card without a valid ID")
			continue
		}
		if _, seen := byID[card.ID]; !seen {
			order = append(order, card.ID)
		} else {
			slog.Warn("Duplicate card ID in catalog, keeping the later entry",
				slog.Int("card_id", card.ID))
		}
		byID[card.ID] = card
	}

	cards := make([]*models.Card, 0, len(order))
	for _, id := range order {
		cards = append(cards, byID[id])
	}
	return cards, nil
}

func verifyCardImages(ctx context.Context, spacesCfg sifbot.SpacesConfig, cards []*models.Card) {
	spaces := services.NewSpacesService(
		spacesCfg.Key,
		spacesCfg.Secret,
		spacesCfg.Region,
		spacesCfg.Bucket,
		spacesCfg.CardRoot,
	)

	missing := 0
	for _, card := range cards {
		result, err := spaces.VerifyCardImages(ctx, card.ID)
		if err != nil {
			slog.Error("Image verification failed",
				slog.Int("card_id", card.ID),
				slog.Any("error", err))
			continue
		}
		if len(result.Missing) > 0 {
			missing++
			slog.Warn("Card is missing artwork",
				slog.Int("card_id", card.ID),
				slog.Any("variants", result.Missing))
		}
	}
	slog.Info("Image verification completed",
		slog.Int("cards", len(cards)),
		slog.Int("with_missing_artwork", missing))
}
