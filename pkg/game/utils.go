package game

import (
	"sort"

	"github.com/cbodonnell/ninetyfive/pkg/game/types"
)

func sortedKeys(players map[string]*types.PlayerState) []string {
	keys := make([]string, 0, len(players))
	for id := range players {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	return keys
}

// PlayerSummary is the public view of a player used in room-wide payloads.
type PlayerSummary struct {
	ID        string             `json:"id"`
	Username  string             `json:"username"`
	Avatar    string             `json:"avatar"`
	CardCount int                `json:"cardCount"`
	Penalties int                `json:"penalties"`
	Status    types.PlayerStatus `json:"status"`
}

// SummarizePlayers lists players in roster order.
func SummarizePlayers(state *types.GameState) []PlayerSummary {
	out := make([]PlayerSummary, 0, len(state.PlayerOrder))
	for _, id := range state.PlayerOrder {
		p, ok := state.Players[id]
		if !ok {
			continue
		}
		out = append(out, PlayerSummary{
			ID:        p.ID,
			Username:  p.Username,
			Avatar:    p.Avatar,
			CardCount: len(p.Hand),
			Penalties: p.Penalties,
			Status:    p.Status,
		})
	}
	return out
}

// GameSummary is the view of a game that does not reveal the deck or other
// players' hands.
type GameSummary struct {
	RoomID          string                `json:"roomId"`
	Total           int                   `json:"total"`
	TopCard         *types.Card           `json:"topCard,omitempty"`
	DeckCount       int                   `json:"deckCount"`
	CurrentPlayer   string                `json:"currentPlayer,omitempty"`
	Players         []PlayerSummary       `json:"players"`
	Hand            []types.Card          `json:"hand,omitempty"`
	GameOver        bool                  `json:"gameOver"`
	LoserID         string                `json:"loserId,omitempty"`
	AutorouteStatus types.AutorouteStatus `json:"autorouteStatus,omitempty"`
	Version         int64                 `json:"version"`
}

// Summarize builds the summary seen by viewerID, which includes the viewer's
// own hand when they are playing.
func Summarize(g *types.GameState, viewerID string) *GameSummary {
	s := &GameSummary{
		RoomID:    g.RoomID,
		Total:     g.Total,
		DeckCount: g.Deck.Len(),
		Players:   SummarizePlayers(g),
		GameOver:  g.GameOver,
		LoserID:   g.LoserID,
		Version:   g.Version,
	}
	if n := len(g.PlayedPile); n > 0 {
		top := g.PlayedPile[n-1]
		s.TopCard = &top
	}
	if current, err := g.CurrentPlayer(); err == nil {
		s.CurrentPlayer = current
	}
	if p, ok := g.Players[viewerID]; ok {
		s.Hand = append([]types.Card{}, p.Hand...)
	}
	if g.Autoroute != nil {
		s.AutorouteStatus = g.Autoroute.Status
	}
	return s
}
