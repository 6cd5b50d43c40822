package game

import (
	"github.com/cbodonnell/ninetyfive/pkg/game/constants"
	"github.com/cbodonnell/ninetyfive/pkg/game/types"
)

// StartAutoroute lays the river for the loser of a finished game.
func (e *Engine) StartAutoroute(g *types.GameState, playerID string) (*types.GameState, []Event, error) {
	if g == nil {
		return nil, nil, stateError(ErrGameNotFound)
	}
	if !g.GameOver || g.LoserID != playerID {
		return nil, nil, stateError(ErrNotLoser)
	}
	if g.Autoroute != nil && g.Autoroute.Status != types.AutorouteInactive {
		return nil, nil, stateError(ErrAutorouteAlreadyStarted)
	}
	if g.Deck.Len() < constants.RiverSize {
		return nil, nil, resourceError(ErrInsufficientDeck, constants.RiverSize, g.Deck.Len())
	}

	next := g.Copy()
	river := next.Deck.Draw(constants.RiverSize)
	next.Autoroute = types.NewAutorouteState(playerID, river)
	e.commit(next)

	return next, []Event{{
		Type: EventAutorouteStarted,
		Payload: AutorouteStartedPayload{
			PlayerID: playerID,
			River:    next.Autoroute.River,
		},
	}}, nil
}

// ChooseAceValue fixes whether aces count low (1) or high (14).
func (e *Engine) ChooseAceValue(g *types.GameState, playerID string, value int) (*types.GameState, []Event, error) {
	if value != constants.AceLow && value != constants.AceHigh {
		return nil, nil, validationError(ErrInvalidAceValue, "")
	}
	if err := checkAutorouteTurn(g, playerID); err != nil {
		return nil, nil, err
	}
	if g.Autoroute.Status != types.AutorouteAceSelection {
		return nil, nil, stateError(ErrWrongAutoroutePhase)
	}

	next := g.Copy()
	next.Autoroute.AceValue = value
	next.Autoroute.Status = types.AutorouteDirectionSelection
	e.commit(next)

	return next, []Event{{
		Type: EventAutorouteAceValue,
		Payload: AutorouteAceValuePayload{
			PlayerID: playerID,
			AceValue: value,
		},
	}}, nil
}

// ChooseDirection picks the end of the river the player starts from.
func (e *Engine) ChooseDirection(g *types.GameState, playerID string, dir types.Direction) (*types.GameState, []Event, error) {
	if !dir.Valid() {
		return nil, nil, validationError(ErrInvalidDirection, string(dir))
	}
	if err := checkAutorouteTurn(g, playerID); err != nil {
		return nil, nil, err
	}
	if g.Autoroute.AceValue == 0 {
		return nil, nil, stateError(ErrAceValueNotChosen)
	}
	if g.Autoroute.Status != types.AutorouteDirectionSelection {
		return nil, nil, stateError(ErrWrongAutoroutePhase)
	}

	next := g.Copy()
	ar := next.Autoroute
	ar.Direction = dir
	ar.Position = dir.Start(len(ar.River))
	ar.Status = types.AutorouteGuessing
	e.commit(next)

	return next, []Event{{
		Type: EventAutorouteDirection,
		Payload: AutorouteDirectionPayload{
			PlayerID:  playerID,
			Direction: dir,
			Position:  ar.Position,
		},
	}}, nil
}

// Guess draws a card and compares it with the river card at the current
// position. A tie counts as correct and makes everyone else drink. A wrong
// call leaves the position where it is until the player restarts.
func (e *Engine) Guess(g *types.GameState, playerID string, call types.Call) (*types.GameState, []Event, error) {
	if !call.Valid() {
		return nil, nil, validationError(ErrInvalidCall, string(call))
	}
	if err := checkAutorouteTurn(g, playerID); err != nil {
		return nil, nil, err
	}
	switch g.Autoroute.Status {
	case types.AutorouteGuessing:
	case types.AutorouteAwaitingRestart:
		return nil, nil, stateError(ErrAwaitingRestart)
	default:
		return nil, nil, stateError(ErrWrongAutoroutePhase)
	}
	if g.Deck.Len() == 0 {
		return nil, nil, resourceError(ErrDeckEmpty, 1, 0)
	}

	next := g.Copy()
	ar := next.Autoroute
	drawn, _ := next.Deck.DrawOne()
	riverCard := ar.River[ar.Position]
	drawnValue, riverValue := ar.CardValue(drawn), ar.CardValue(riverCard)

	guess := types.Guess{
		Position:  ar.Position,
		RiverCard: riverCard,
		DrawnCard: drawn,
		Call:      call,
	}
	switch {
	case drawnValue == riverValue:
		guess.Correct = true
		guess.Tie = true
	case call == types.CallHigher:
		guess.Correct = drawnValue > riverValue
	default:
		guess.Correct = drawnValue < riverValue
	}
	ar.GuessHistory = append(ar.GuessHistory, guess)

	var events []Event
	if guess.Correct {
		if nextPos := ar.Position + ar.Direction.Step(); nextPos >= 0 && nextPos < len(ar.River) {
			ar.Position = nextPos
		} else {
			ar.Status = types.AutorouteCompleted
		}
	} else {
		ar.Status = types.AutorouteAwaitingRestart
		next.Players[playerID].Penalties++
	}
	e.commit(next)

	events = append(events, Event{
		Type: EventAutorouteGuess,
		Payload: AutorouteGuessPayload{
			PlayerID:  playerID,
			Guess:     guess,
			River:     ar.River,
			Position:  ar.Position,
			Completed: ar.Status == types.AutorouteCompleted,
		},
	})
	if guess.Tie {
		events = append(events, Event{
			Type: EventEveryoneDrinks,
			Payload: EveryoneDrinksPayload{
				PlayerID: playerID,
				Card:     drawn,
			},
		})
	}
	switch ar.Status {
	case types.AutorouteCompleted:
		events = append(events, Event{
			Type: EventAutorouteCompleted,
			Payload: AutorouteCompletedPayload{
				PlayerID: playerID,
				River:    ar.River,
				Attempts: ar.Attempts,
			},
		})
	case types.AutorouteAwaitingRestart:
		events = append(events, Event{
			Type: EventAutorouteRestartPrompt,
			Payload: AutorouteRestartPromptPayload{
				PlayerID:  playerID,
				DrawnCard: drawn,
				Position:  ar.Position,
				Penalties: next.Players[playerID].Penalties,
			},
			Recipients: []string{playerID},
		})
	}
	return next, events, nil
}

// RestartAutoroute folds every drawn card into the river at the position it
// was drawn for, discards the river cards it covers and starts again from
// the first position. Calling it twice folds nothing the second time.
func (e *Engine) RestartAutoroute(g *types.GameState, playerID string) (*types.GameState, []Event, error) {
	if err := checkAutorouteTurn(g, playerID); err != nil {
		return nil, nil, err
	}
	switch g.Autoroute.Status {
	case types.AutorouteGuessing, types.AutorouteAwaitingRestart:
	default:
		return nil, nil, stateError(ErrWrongAutoroutePhase)
	}

	next := g.Copy()
	ar := next.Autoroute
	pending := ar.Status == types.AutorouteAwaitingRestart
	for _, guess := range ar.GuessHistory {
		ar.Discard = append(ar.Discard, ar.River[guess.Position])
		ar.River[guess.Position] = guess.DrawnCard
	}
	ar.GuessHistory = []types.Guess{}
	ar.Position = ar.Direction.Start(len(ar.River))
	ar.Status = types.AutorouteGuessing
	if pending {
		ar.Attempts++
	}
	e.commit(next)

	return next, []Event{{
		Type: EventAutorouteRestarted,
		Payload: AutorouteRestartedPayload{
			PlayerID: playerID,
			River:    ar.River,
			Position: ar.Position,
			Attempts: ar.Attempts,
		},
	}}, nil
}

func checkAutorouteTurn(g *types.GameState, playerID string) error {
	if g == nil {
		return stateError(ErrGameNotFound)
	}
	if g.Autoroute == nil || !g.Autoroute.InProgress() {
		return stateError(ErrAutorouteNotInProgress)
	}
	if g.Autoroute.PlayerID != playerID {
		return stateError(ErrNotAutorouteTurn)
	}
	return nil
}
