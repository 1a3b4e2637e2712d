package repositories

import (
	"context"
	"reflect"
	"sort"
	"testing"

	"github.com/hahanour/sifbot/sifbot/database/models"
	"github.com/hahanour/sifbot/sifbot/database/mongotest"
)

func testCard(id int, name, rarity, attribute string) *models.Card {
	return &models.Card{
		ID: id,
		Idol: models.Idol{
			Name:     name,
			Year:     "Second",
			MainUnit: "μ's",
		},
		Rarity:                 rarity,
		Attribute:              attribute,
		CardImage:              "https://cards.example/normal.png",
		CardIdolizedImage:      "https://cards.example/idolized.png",
		RoundCardImage:         "https://cards.example/round.png",
		RoundCardIdolizedImage: "https://cards.example/round_idolized.png",
	}
}

func seedCards(t *testing.T, repo *cardRepository, cards ...*models.Card) {
	t.Helper()
	for _, card := range cards {
		if err := repo.Upsert(context.Background(), card); err != nil {
			t.Fatalf("Upsert(%d) error = %v", card.ID, err)
		}
	}
}

func Test_cardRepository_Upsert(t *testing.T) {
	mem := mongotest.NewCollection()
	repo := newCardRepository(mem)
	ctx := context.Background()

	if err := repo.Upsert(ctx, testCard(1, "Honoka Kousaka", "SR", "Smile")); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := repo.GetByID(ctx, 1)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got == nil || got.Rarity != "SR" || got.Idol.Name != "Honoka Kousaka" {
		t.Errorf("GetByID() = %+v, want the seeded card", got)
	}

	// A second upsert of the same ID replaces attributes in place.
	if err := repo.Upsert(ctx, testCard(1, "Honoka Kousaka", "UR", "Smile")); err != nil {
		t.Fatalf("Upsert() second error = %v", err)
	}
	if mem.Count() != 1 {
		t.Errorf("document count = %d, want 1", mem.Count())
	}

	got, err = repo.GetByID(ctx, 1)
	if err != nil {
		t.Fatalf("GetByID() after update error = %v", err)
	}
	if got.Rarity != "UR" {
		t.Errorf("Rarity = %q, want %q", got.Rarity, "UR")
	}
}

func Test_cardRepository_Upsert_invalidID(t *testing.T) {
	repo := newCardRepository(mongotest.NewCollection())

	tests := []struct {
		name string
		card *models.Card
	}{
		{name: "nil card", card: nil},
		{name: "zero ID", card: testCard(0, "Nobody", "R", "Pure")},
		{name: "negative ID", card: testCard(-3, "Nobody", "R", "Pure")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.Upsert(context.Background(), tt.card); err == nil {
				t.Errorf("Upsert() error = nil, want error")
			}
		})
	}
}

func Test_cardRepository_Upsert_invalidatesCache(t *testing.T) {
	repo := newCardRepository(mongotest.NewCollection())
	ctx := context.Background()

	seedCards(t, repo, testCard(7, "Kotori Minami", "R", "Cool"))
	if _, err := repo.GetByID(ctx, 7); err != nil {
		t.Fatalf("GetByID() warmup error = %v", err)
	}

	seedCards(t, repo, testCard(7, "Kotori Minami", "SSR", "Cool"))

	got, err := repo.GetByID(ctx, 7)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Rarity != "SSR" {
		t.Errorf("Rarity after re-upsert = %q, want %q (stale cache)", got.Rarity, "SSR")
	}
}

func Test_cardRepository_GetByID_absent(t *testing.T) {
	repo := newCardRepository(mongotest.NewCollection())

	got, err := repo.GetByID(context.Background(), 404)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetByID() = %+v, want nil", got)
	}
}

func Test_cardRepository_GetByIDs(t *testing.T) {
	repo := newCardRepository(mongotest.NewCollection())
	seedCards(t, repo,
		testCard(1, "Honoka Kousaka", "SR", "Smile"),
		testCard(2, "Kotori Minami", "R", "Pure"),
		testCard(3, "Umi Sonoda", "UR", "Cool"),
	)

	tests := []struct {
		name    string
		ids     []int
		wantIDs []int
	}{
		{name: "intersection", ids: []int{2, 3, 99}, wantIDs: []int{2, 3}},
		{name: "all known", ids: []int{1, 2, 3}, wantIDs: []int{1, 2, 3}},
		{name: "none known", ids: []int{98, 99}, wantIDs: nil},
		{name: "empty input", ids: []int{}, wantIDs: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.GetByIDs(context.Background(), tt.ids)
			if err != nil {
				t.Fatalf("GetByIDs() error = %v", err)
			}
			var gotIDs []int
			for _, card := range got {
				gotIDs = append(gotIDs, card.ID)
			}
			sort.Ints(gotIDs)
			if !reflect.DeepEqual(gotIDs, tt.wantIDs) {
				t.Errorf("GetByIDs() ids = %v, want %v", gotIDs, tt.wantIDs)
			}
		})
	}
}

func Test_cardRepository_GetRandom(t *testing.T) {
	repo := newCardRepository(mongotest.NewCollection())
	seedCards(t, repo,
		testCard(1, "Honoka Kousaka", "SR", "Smile"),
		testCard(2, "Kotori Minami", "R", "Pure"),
		testCard(3, "Umi Sonoda", "UR", "Cool"),
		testCard(4, "Maki Nishikino", "UR", "Smile"),
	)

	tests := []struct {
		name      string
		filters   CardFilters
		count     int
		wantLen   int
		wantMatch func(*models.Card) bool
	}{
		{
			name:    "sample within bounds",
			count:   2,
			wantLen: 2,
		},
		{
			name:    "count larger than catalog",
			count:   10,
			wantLen: 4,
		},
		{
			name:      "rarity filter",
			filters:   CardFilters{Rarity: "UR"},
			count:     10,
			wantLen:   2,
			wantMatch: func(c *models.Card) bool { return c.Rarity == "UR" },
		},
		{
			name:    "no matches",
			filters: CardFilters{Attribute: "Mystery"},
			count:   3,
			wantLen: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.GetRandom(context.Background(), tt.filters, tt.count)
			if err != nil {
				t.Fatalf("GetRandom() error = %v", err)
			}
			if len(got) != tt.wantLen {
				t.Errorf("GetRandom() len = %d, want %d", len(got), tt.wantLen)
			}
			seen := map[int]bool{}
			for _, card := range got {
				if seen[card.ID] {
					t.Errorf("GetRandom() returned card %d twice", card.ID)
				}
				seen[card.ID] = true
				if tt.wantMatch != nil && !tt.wantMatch(card) {
					t.Errorf("GetRandom() returned card %d outside the filter", card.ID)
				}
			}
		})
	}
}

func Test_cardRepository_GetAllIDs(t *testing.T) {
	repo := newCardRepository(mongotest.NewCollection())

	got, err := repo.GetAllIDs(context.Background())
	if err != nil {
		t.Fatalf("GetAllIDs() on empty catalog error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("GetAllIDs() on empty catalog = %v, want none", got)
	}

	seedCards(t, repo,
		testCard(3, "Umi Sonoda", "UR", "Cool"),
		testCard(1, "Honoka Kousaka", "SR", "Smile"),
		testCard(2, "Kotori Minami", "R", "Pure"),
	)

	got, err = repo.GetAllIDs(context.Background())
	if err != nil {
		t.Fatalf("GetAllIDs() error = %v", err)
	}
	sort.Ints(got)
	if want := []int{1, 2, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("GetAllIDs() = %v, want %v", got, want)
	}
}

func Test_cardRepository_SearchByIdolName(t *testing.T) {
	repo := newCardRepository(mongotest.NewCollection())
	seedCards(t, repo,
		testCard(1, "Honoka Kousaka", "SR", "Smile"),
		testCard(2, "Kotori Minami", "R", "Pure"),
		testCard(3, "Umi Sonoda", "UR", "Cool"),
		testCard(4, "Honoka Kousaka", "UR", "Pure"),
	)

	got, err := repo.SearchByIdolName(context.Background(), "honoka", 0)
	if err != nil {
		t.Fatalf("SearchByIdolName() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("SearchByIdolName() len = %d, want 2", len(got))
	}
	for _, card := range got {
		if card.Idol.Name != "Honoka Kousaka" {
			t.Errorf("SearchByIdolName() matched %q", card.Idol.Name)
		}
	}

	got, err = repo.SearchByIdolName(context.Background(), "honoka", 1)
	if err != nil {
		t.Fatalf("SearchByIdolName() with limit error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("SearchByIdolName() with limit len = %d, want 1", len(got))
	}

	got, err = repo.SearchByIdolName(context.Background(), "zzzz", 0)
	if err != nil {
		t.Fatalf("SearchByIdolName() no match error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("SearchByIdolName() no match len = %d, want 0", len(got))
	}
}
