package game

import (
	"math/rand"
	"sync"
	"time"

	"github.com/cbodonnell/ninetyfive/pkg/game/constants"
	"github.com/cbodonnell/ninetyfive/pkg/game/rules"
	"github.com/cbodonnell/ninetyfive/pkg/game/types"
)

// Engine applies player actions to a game state. It never mutates the state
// it is given: every transition works on a copy and returns the new state
// only when it succeeds.
type Engine struct {
	// rngMu guards rng, which is shared by every session actor
	rngMu    sync.Mutex
	rng      *rand.Rand
	watcher  *rules.ThresholdWatcher
	handSize int
	now      func() time.Time
}

// NewEngineOptions contains options for creating a new Engine.
type NewEngineOptions struct {
	// Rand shuffles new decks. A time-seeded source is used when nil.
	Rand            *rand.Rand
	AlertThresholds []int
	LoseThreshold   int
	HandSize        int
	// Now is the clock used for UpdatedAt. Defaults to time.Now.
	Now func() time.Time
}

func NewEngine(opts NewEngineOptions) *Engine {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	thresholds := opts.AlertThresholds
	if thresholds == nil {
		thresholds = constants.AlertThresholds
	}
	loseThreshold := opts.LoseThreshold
	if loseThreshold == 0 {
		loseThreshold = constants.LoseThreshold
	}
	handSize := opts.HandSize
	if handSize == 0 {
		handSize = constants.HandSize
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		rng:      rng,
		watcher:  rules.NewThresholdWatcher(thresholds, loseThreshold),
		handSize: handSize,
		now:      now,
	}
}

// Seat is a roster entry used to start a game.
type Seat struct {
	ID       string
	Username string
	Avatar   string
}

// StartGame shuffles a fresh deck, deals every seat in roster order and
// lays the opening card.
func (e *Engine) StartGame(roomID string, roster []Seat) (*types.GameState, []Event, error) {
	if roomID == "" {
		return nil, nil, validationError(ErrMissingRoomID, "")
	}
	if len(roster) < constants.MinPlayers {
		return nil, nil, stateError(ErrNotEnoughPlayers)
	}
	needed := len(roster)*e.handSize + 1
	deck := types.NewDeck()
	if needed > len(deck) {
		return nil, nil, resourceError(ErrInsufficientDeck, needed, len(deck))
	}

	e.rngMu.Lock()
	deck.Shuffle(e.rng)
	e.rngMu.Unlock()

	g := types.NewGameState(roomID)
	for _, seat := range roster {
		if g.Players[seat.ID] != nil {
			continue
		}
		p := types.NewPlayerState(seat.ID, seat.Username, seat.Avatar)
		p.Hand = deck.Draw(e.handSize)
		g.AddPlayer(p)
	}

	opening, _ := deck.DrawOne()
	base, err := rules.BaseValue(opening)
	if err != nil {
		return nil, nil, validationError(ErrInvalidCard, err.Error())
	}
	g.PlayedPile = append(g.PlayedPile, opening)
	g.Total = base
	g.Deck = deck
	e.commit(g)

	return g, []Event{{Type: EventGameStarted, Payload: g}}, nil
}

// JoinGame returns the snapshot for a player (re)joining the room. Documents
// written by older servers are repaired first; the boolean reports whether
// anything changed and needs saving.
func (e *Engine) JoinGame(g *types.GameState, playerID string) (*types.GameState, []Event, bool, error) {
	if g == nil {
		return nil, nil, false, stateError(ErrGameNotFound)
	}
	next := g.Copy()
	repaired := repair(next)
	if repaired {
		e.commit(next)
	} else {
		next = g
	}
	return next, []Event{{Type: EventGameState, Payload: next, Recipients: []string{playerID}}}, repaired, nil
}

// repair fills fields missing from legacy documents. Nil slices and maps
// are already normalized by Copy.
func repair(g *types.GameState) bool {
	changed := false
	for id, p := range g.Players {
		if p.ID == "" {
			p.ID = id
			changed = true
		}
		if p.Status == "" {
			p.Status = types.PlayerStatusActive
			changed = true
		}
	}
	if len(g.PlayerOrder) != len(g.Players) {
		order := make([]string, 0, len(g.Players))
		seen := make(map[string]bool, len(g.Players))
		for _, id := range g.PlayerOrder {
			if _, ok := g.Players[id]; ok && !seen[id] {
				order = append(order, id)
				seen[id] = true
			}
		}
		for _, id := range g.TurnQueue {
			if _, ok := g.Players[id]; ok && !seen[id] {
				order = append(order, id)
				seen[id] = true
			}
		}
		for _, id := range sortedKeys(g.Players) {
			if !seen[id] {
				order = append(order, id)
				seen[id] = true
			}
		}
		g.PlayerOrder = order
		changed = true
	}
	if g.TurnQueue.Len() == 0 && !g.GameOver {
		for _, p := range g.ActivePlayers() {
			g.TurnQueue = append(g.TurnQueue, p.ID)
			changed = true
		}
	}
	return changed
}

// PlayCard plays card from the hand of the player at the head of the turn
// queue.
func (e *Engine) PlayCard(g *types.GameState, playerID string, card types.Card) (*types.GameState, []Event, error) {
	if err := card.Validate(); err != nil {
		return nil, nil, validationError(ErrInvalidCard, err.Error())
	}
	if g == nil {
		return nil, nil, stateError(ErrGameNotFound)
	}
	if g.GameOver {
		return nil, nil, stateError(ErrGameOver)
	}
	if _, ok := g.Players[playerID]; !ok {
		return nil, nil, stateError(ErrPlayerNotInGame)
	}
	current, err := g.CurrentPlayer()
	if err != nil || current != playerID {
		return nil, nil, stateError(ErrNotYourTurn)
	}
	if !g.Players[playerID].Holds(card) {
		return nil, nil, stateError(ErrCardNotHeld)
	}
	effect, err := rules.ResolveEffect(card)
	if err != nil {
		return nil, nil, validationError(ErrInvalidCard, err.Error())
	}

	next := g.Copy()
	player := next.Players[playerID]
	player.Hand, _ = types.RemoveCard(player.Hand, card)
	next.PlayedPile = append(next.PlayedPile, card)

	reversed := false
	if effect.Type == rules.EffectReverse {
		reversed = next.TurnQueue.Reverse(constants.MinReversePlayers)
	} else {
		next.Total = rules.ApplyEffect(next.Total, effect)
	}

	if drawn, ok := next.Deck.DrawOne(); ok {
		player.Hand = append(player.Hand, drawn)
	}

	events := []Event{{Type: EventGameUpdated, Payload: next}}
	if alert, ok := e.watcher.Check(next.Total); ok {
		payload := AlertPayload{Alert: alert}
		if alert.Kind == rules.AlertLost {
			payload.PlayerID = playerID
			payload.Message = alert.Message + " " + player.Username + " lost, everyone else won!"
		}
		events = append(events, Event{Type: EventAlert, Payload: payload})
	}

	if e.watcher.Lost(next.Total) {
		e.finish(next, playerID)
	} else if !reversed {
		// after a reversal the new head acts next
		next.TurnQueue.Advance()
	}

	e.commit(next)
	return next, events, nil
}

// finish ends the game with loserID as the only loser.
func (e *Engine) finish(g *types.GameState, loserID string) {
	for _, id := range g.PlayerOrder {
		p := g.Players[id]
		if id == loserID {
			p.Finish(types.PlayerStatusLost)
		} else {
			p.Finish(types.PlayerStatusWon)
		}
		g.TurnQueue.Remove(id)
	}
	g.GameOver = true
	g.LoserID = loserID
}

func (e *Engine) commit(g *types.GameState) {
	g.Version++
	g.UpdatedAt = e.now().UnixMilli()
}

// LoseThreshold is the total at or above which the acting player loses.
func (e *Engine) LoseThreshold() int {
	return e.watcher.LoseThreshold()
}
