package game

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/cbodonnell/ninetyfive/pkg/game/rules"
	"github.com/cbodonnell/ninetyfive/pkg/game/types"
	"github.com/cbodonnell/ninetyfive/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func card(rank types.Rank, suit types.Suit) types.Card {
	return types.Card{Suit: suit, Rank: rank}
}

// deckWith returns a full deck with front drawn first and the remaining
// cards in construction order.
func deckWith(front ...types.Card) types.Deck {
	deck := append(types.Deck{}, front...)
	for _, c := range types.NewDeck() {
		if types.IndexOf(front, c) == -1 {
			deck = append(deck, c)
		}
	}
	return deck
}

func newTestEngine() *Engine {
	return NewEngine(NewEngineOptions{
		Rand: rand.New(rand.NewSource(1)),
		Now:  func() time.Time { return time.UnixMilli(1700000000000) },
	})
}

// newTestGame seats ids in order, gives each player the listed hand and
// puts the rest of the deck in the draw pile.
func newTestGame(total int, ids []string, hands map[string][]types.Card) *types.GameState {
	g := types.NewGameState("ABCDE")
	var dealt []types.Card
	for _, id := range ids {
		p := types.NewPlayerState(id, "user-"+id, "")
		p.Hand = append(p.Hand, hands[id]...)
		dealt = append(dealt, hands[id]...)
		g.AddPlayer(p)
	}
	for _, c := range types.NewDeck() {
		if types.IndexOf(dealt, c) == -1 {
			g.Deck = append(g.Deck, c)
		}
	}
	g.Total = total
	return g
}

func TestEngine_StartGame(t *testing.T) {
	e := newTestEngine()
	roster := []Seat{
		{ID: "a", Username: "alice"},
		{ID: "b", Username: "bob"},
		{ID: "c", Username: "carol"},
	}

	g, events, err := e.StartGame("ABCDE", roster)
	require.NoError(t, err)

	assert.Equal(t, 52, g.CardCount())
	assert.Equal(t, []string{"a", "b", "c"}, g.TurnQueue.IDs())
	assert.Equal(t, []string{"a", "b", "c"}, g.PlayerOrder)
	for _, id := range g.PlayerOrder {
		assert.Len(t, g.Players[id].Hand, 3)
		assert.True(t, g.Players[id].Active())
	}
	require.Len(t, g.PlayedPile, 1)
	base, err := rules.BaseValue(g.PlayedPile[0])
	require.NoError(t, err)
	assert.Equal(t, base, g.Total)
	assert.Equal(t, 52-3*3-1, g.Deck.Len())
	assert.Equal(t, int64(1), g.Version)
	assert.False(t, g.GameOver)

	require.Len(t, events, 1)
	assert.Equal(t, EventGameStarted, events[0].Type)
	assert.True(t, events[0].Broadcast())
}

func TestEngine_StartGame_Errors(t *testing.T) {
	e := newTestEngine()

	_, _, err := e.StartGame("", []Seat{{ID: "a"}, {ID: "b"}})
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.ErrorIs(t, err, ErrMissingRoomID)

	_, _, err = e.StartGame("ABCDE", []Seat{{ID: "a"}})
	var se *StateError
	assert.True(t, errors.As(err, &se))
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)
	assert.Equal(t, "not_enough_players", Code(err))
}

func TestEngine_PlayCard_Effects(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		ids       []string
		card      types.Card
		wantTotal int
		wantQueue []string
	}{
		{
			name:      "number adds face value",
			total:     20,
			ids:       []string{"a", "b", "c"},
			card:      card(types.RankSeven, types.SuitHearts),
			wantTotal: 27,
			wantQueue: []string{"b", "c", "a"},
		},
		{
			name:      "ace adds one",
			total:     20,
			ids:       []string{"a", "b"},
			card:      card(types.RankAce, types.SuitHearts),
			wantTotal: 21,
			wantQueue: []string{"b", "a"},
		},
		{
			name:      "king sets seventy",
			total:     42,
			ids:       []string{"a", "b", "c"},
			card:      card(types.RankKing, types.SuitClubs),
			wantTotal: 70,
			wantQueue: []string{"b", "c", "a"},
		},
		{
			name:      "queen subtracts ten below zero",
			total:     5,
			ids:       []string{"a", "b", "c"},
			card:      card(types.RankQueen, types.SuitDiamonds),
			wantTotal: -5,
			wantQueue: []string{"b", "c", "a"},
		},
		{
			name:      "jack reverses the queue and the new head acts",
			total:     33,
			ids:       []string{"a", "b", "c", "d"},
			card:      card(types.RankJack, types.SuitSpades),
			wantTotal: 33,
			wantQueue: []string{"d", "c", "b", "a"},
		},
		{
			name:      "jack with two players passes the turn",
			total:     33,
			ids:       []string{"a", "b"},
			card:      card(types.RankJack, types.SuitSpades),
			wantTotal: 33,
			wantQueue: []string{"b", "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine()
			g := newTestGame(tt.total, tt.ids, map[string][]types.Card{
				"a": {tt.card, card(types.RankTwo, types.SuitClubs), card(types.RankThree, types.SuitClubs)},
			})
			deckBefore := g.Deck.Len()

			next, events, err := e.PlayCard(g, "a", tt.card)
			require.NoError(t, err)

			assert.Equal(t, tt.wantTotal, next.Total)
			assert.Equal(t, tt.wantQueue, next.TurnQueue.IDs())
			assert.Equal(t, tt.card, next.PlayedPile[len(next.PlayedPile)-1])
			assert.False(t, next.Players["a"].Holds(tt.card))
			assert.Len(t, next.Players["a"].Hand, 3, "player draws a replacement")
			assert.Equal(t, deckBefore-1, next.Deck.Len())
			assert.Equal(t, 52, next.CardCount())
			assert.Equal(t, g.Version+1, next.Version)
			assert.Equal(t, EventGameUpdated, events[0].Type)

			// the input state is untouched
			assert.Equal(t, tt.total, g.Total)
			assert.Equal(t, tt.ids, g.TurnQueue.IDs())
			assert.True(t, g.Players["a"].Holds(tt.card))
		})
	}
}

func TestEngine_PlayCard_Alert(t *testing.T) {
	e := newTestEngine()
	g := newTestGame(5, []string{"a", "b"}, map[string][]types.Card{
		"a": {card(types.RankFive, types.SuitHearts)},
	})

	next, events, err := e.PlayCard(g, "a", card(types.RankFive, types.SuitHearts))
	require.NoError(t, err)
	assert.Equal(t, 10, next.Total)
	require.Len(t, events, 2)
	assert.Equal(t, EventAlert, events[1].Type)
	payload, ok := events[1].Payload.(AlertPayload)
	require.True(t, ok)
	assert.Equal(t, rules.AlertLevel, payload.Kind)
	assert.Equal(t, 10, payload.Total)
}

func TestEngine_PlayCard_EmptyDeck(t *testing.T) {
	e := newTestEngine()
	g := newTestGame(10, []string{"a", "b"}, map[string][]types.Card{
		"a": {card(types.RankTwo, types.SuitHearts), card(types.RankThree, types.SuitHearts)},
	})
	g.Deck = types.Deck{}

	next, _, err := e.PlayCard(g, "a", card(types.RankTwo, types.SuitHearts))
	require.NoError(t, err)
	assert.Len(t, next.Players["a"].Hand, 1)
}

func TestEngine_PlayCard_Loss(t *testing.T) {
	e := newTestEngine()
	g := newTestGame(90, []string{"a", "b", "c"}, map[string][]types.Card{
		"a": {card(types.RankFive, types.SuitHearts)},
		"b": {card(types.RankTwo, types.SuitHearts)},
	})

	next, events, err := e.PlayCard(g, "a", card(types.RankFive, types.SuitHearts))
	require.NoError(t, err)

	assert.Equal(t, 95, next.Total)
	assert.True(t, next.GameOver)
	assert.Equal(t, "a", next.LoserID)
	assert.True(t, next.Players["a"].HasLost())
	assert.True(t, next.Players["b"].HasWon())
	assert.True(t, next.Players["c"].HasWon())
	assert.Zero(t, next.TurnQueue.Len())
	assert.Equal(t, 52, next.CardCount())

	require.Len(t, events, 2)
	payload, ok := events[1].Payload.(AlertPayload)
	require.True(t, ok)
	assert.Equal(t, rules.AlertLost, payload.Kind)
	assert.Equal(t, "a", payload.PlayerID)
	assert.Contains(t, payload.Message, "user-a")

	_, _, err = e.PlayCard(next, "b", card(types.RankTwo, types.SuitHearts))
	var se *StateError
	assert.True(t, errors.As(err, &se))
	assert.ErrorIs(t, err, ErrGameOver)
}

func TestEngine_PlayCard_Rejections(t *testing.T) {
	held := card(types.RankFour, types.SuitSpades)
	tests := []struct {
		name     string
		game     func() *types.GameState
		playerID string
		card     types.Card
		wantErr  error
		wantKind ErrorKind
	}{
		{
			name:     "invalid card",
			game:     func() *types.GameState { return newTestGame(0, []string{"a", "b"}, nil) },
			playerID: "a",
			card:     types.Card{Suit: "x", Rank: "1"},
			wantErr:  ErrInvalidCard,
			wantKind: ErrorKindValidation,
		},
		{
			name:     "no game",
			game:     func() *types.GameState { return nil },
			playerID: "a",
			card:     held,
			wantErr:  ErrGameNotFound,
			wantKind: ErrorKindState,
		},
		{
			name:     "player not in game",
			game:     func() *types.GameState { return newTestGame(0, []string{"a", "b"}, nil) },
			playerID: "z",
			card:     held,
			wantErr:  ErrPlayerNotInGame,
			wantKind: ErrorKindState,
		},
		{
			name: "not your turn",
			game: func() *types.GameState {
				return newTestGame(0, []string{"a", "b"}, map[string][]types.Card{"b": {held}})
			},
			playerID: "b",
			card:     held,
			wantErr:  ErrNotYourTurn,
			wantKind: ErrorKindState,
		},
		{
			name:     "card not held",
			game:     func() *types.GameState { return newTestGame(0, []string{"a", "b"}, nil) },
			playerID: "a",
			card:     held,
			wantErr:  ErrCardNotHeld,
			wantKind: ErrorKindState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine()
			g := tt.game()
			var version int64
			if g != nil {
				version = g.Version
			}

			next, events, err := e.PlayCard(g, tt.playerID, tt.card)
			assert.Nil(t, next)
			assert.Nil(t, events)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantKind, Kind(err))
			if g != nil {
				assert.Equal(t, version, g.Version)
			}
		})
	}
}

func TestEngine_JoinGame_Repairs(t *testing.T) {
	e := newTestEngine()
	g := newTestGame(12, []string{"a", "b"}, nil)
	g.PlayerOrder = nil
	g.TurnQueue = nil
	g.Players["a"].Hand = nil

	next, events, repaired, err := e.JoinGame(g, "b")
	require.NoError(t, err)
	assert.True(t, repaired)
	assert.Equal(t, []string{"a", "b"}, next.PlayerOrder)
	assert.Equal(t, []string{"a", "b"}, next.TurnQueue.IDs())
	assert.NotNil(t, next.Players["a"].Hand)
	require.Len(t, events, 1)
	assert.Equal(t, EventGameState, events[0].Type)
	assert.Equal(t, []string{"b"}, events[0].Recipients)

	again, _, repaired, err := e.JoinGame(next, "a")
	require.NoError(t, err)
	assert.False(t, repaired)
	assert.Same(t, next, again)

	_, _, _, err = e.JoinGame(nil, "a")
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestCode(t *testing.T) {
	assert.Equal(t, "card_not_held", Code(stateError(ErrCardNotHeld)))
	assert.Equal(t, "insufficient_deck", Code(resourceError(ErrInsufficientDeck, 5, 2)))
	assert.Equal(t, "internal", Code(errors.New("boom")))
	assert.Equal(t, ErrorKindOperational, Kind(errors.New("boom")))
	assert.Equal(t, ErrorKindResource, Kind(resourceError(ErrDeckEmpty, 1, 0)))

	persistence := fmt.Errorf("%w: %v", state.ErrPersistence, errors.New("timeout"))
	assert.Equal(t, "persistence_failed", Code(persistence))
	assert.Equal(t, ErrorKindOperational, Kind(persistence))
	assert.Equal(t, "room_not_found", Code(state.ErrRoomNotFound))
	assert.Equal(t, ErrorKindState, Kind(state.ErrRoomNotFound))
}
