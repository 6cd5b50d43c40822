package types

import (
	"time"

	"github.com/google/uuid"
)

// GameState is one game of ninety-five: the unit of concurrency owned by a
// single session actor.
type GameState struct {
	ID          uuid.UUID               `json:"id"`
	RoomID      string                  `json:"roomId"`
	Deck        Deck                    `json:"deck"`
	PlayedPile  []Card                  `json:"playedCards"`
	Total       int                     `json:"total"`
	TurnQueue   TurnQueue               `json:"turnQueue"`
	PlayerOrder []string                `json:"playerOrder"`
	Players     map[string]*PlayerState `json:"players"`
	GameOver    bool                    `json:"gameOver"`
	LoserID     string                  `json:"loserId,omitempty"`
	Autoroute   *AutorouteState         `json:"autoroute,omitempty"`
	Version     int64                   `json:"version"`
	CreatedAt   int64                   `json:"createdAt"`
	UpdatedAt   int64                   `json:"updatedAt"`
}

func NewGameState(roomID string) *GameState {
	now := time.Now().UnixMilli()
	return &GameState{
		ID:          uuid.New(),
		RoomID:      roomID,
		Deck:        Deck{},
		PlayedPile:  []Card{},
		TurnQueue:   TurnQueue{},
		PlayerOrder: []string{},
		Players:     make(map[string]*PlayerState),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AddPlayer seats a player at the end of the roster and the turn queue.
func (g *GameState) AddPlayer(p *PlayerState) {
	g.Players[p.ID] = p
	g.PlayerOrder = append(g.PlayerOrder, p.ID)
	if p.Active() {
		g.TurnQueue = append(g.TurnQueue, p.ID)
	}
}

// ActivePlayers returns active players in roster order.
func (g *GameState) ActivePlayers() []*PlayerState {
	var out []*PlayerState
	for _, id := range g.PlayerOrder {
		if p, ok := g.Players[id]; ok && p.Active() {
			out = append(out, p)
		}
	}
	return out
}

// CurrentPlayer returns the id of the player whose turn it is.
func (g *GameState) CurrentPlayer() (string, error) {
	return g.TurnQueue.Current()
}

// CardCount counts every card held anywhere in the game.
func (g *GameState) CardCount() int {
	n := len(g.Deck) + len(g.PlayedPile)
	for _, p := range g.Players {
		n += len(p.Hand)
	}
	if g.Autoroute != nil {
		// drawn cards stay in the guess history until a restart folds them
		n += len(g.Autoroute.River) + len(g.Autoroute.Discard) + len(g.Autoroute.GuessHistory)
	}
	return n
}

// Copy returns a deep copy. Engine transitions run against a copy and are
// swapped in only when they succeed.
func (g *GameState) Copy() *GameState {
	cp := *g
	cp.Deck = append(Deck{}, g.Deck...)
	cp.PlayedPile = append([]Card{}, g.PlayedPile...)
	cp.TurnQueue = append(TurnQueue{}, g.TurnQueue...)
	cp.PlayerOrder = append([]string{}, g.PlayerOrder...)
	cp.Players = make(map[string]*PlayerState, len(g.Players))
	for id, p := range g.Players {
		cp.Players[id] = p.Copy()
	}
	cp.Autoroute = g.Autoroute.Copy()
	return &cp
}
