package game

import (
	"github.com/cbodonnell/ninetyfive/pkg/game/rules"
	"github.com/cbodonnell/ninetyfive/pkg/game/types"
)

type EventType string

const (
	EventGameStarted            EventType = "game_started"
	EventGameState              EventType = "game_state"
	EventGameUpdated            EventType = "game_updated"
	EventAlert                  EventType = "alert"
	EventAutorouteStarted       EventType = "autoroute_started"
	EventAutorouteAceValue      EventType = "autoroute_ace_value"
	EventAutorouteDirection     EventType = "autoroute_direction"
	EventAutorouteGuess         EventType = "autoroute_guess"
	EventAutorouteRestartPrompt EventType = "autoroute_restart_prompt"
	EventAutorouteRestarted     EventType = "autoroute_restarted"
	EventAutorouteCompleted     EventType = "autoroute_completed"
	EventEveryoneDrinks         EventType = "everyone_drinks"
)

// Event is produced by an engine transition. An empty Recipients list means
// the whole room.
type Event struct {
	Type       EventType
	Payload    interface{}
	Recipients []string
}

// Broadcast reports whether the event goes to every client in the room.
func (e Event) Broadcast() bool {
	return len(e.Recipients) == 0
}

type AlertPayload struct {
	rules.Alert
	PlayerID string `json:"playerId,omitempty"`
}

type AutorouteStartedPayload struct {
	PlayerID string       `json:"playerId"`
	River    []types.Card `json:"river"`
}

type AutorouteAceValuePayload struct {
	PlayerID string `json:"playerId"`
	AceValue int    `json:"aceValue"`
}

type AutorouteDirectionPayload struct {
	PlayerID  string          `json:"playerId"`
	Direction types.Direction `json:"direction"`
	Position  int             `json:"currentPosition"`
}

type AutorouteGuessPayload struct {
	PlayerID  string       `json:"playerId"`
	Guess     types.Guess  `json:"guess"`
	River     []types.Card `json:"river"`
	Position  int          `json:"currentPosition"`
	Completed bool         `json:"completed"`
}

type AutorouteRestartPromptPayload struct {
	PlayerID  string     `json:"playerId"`
	DrawnCard types.Card `json:"drawnCard"`
	Position  int        `json:"currentPosition"`
	Penalties int        `json:"penalties"`
}

type AutorouteRestartedPayload struct {
	PlayerID string       `json:"playerId"`
	River    []types.Card `json:"river"`
	Position int          `json:"currentPosition"`
	Attempts int          `json:"attempts"`
}

type AutorouteCompletedPayload struct {
	PlayerID string       `json:"playerId"`
	River    []types.Card `json:"river"`
	Attempts int          `json:"attempts"`
}

type EveryoneDrinksPayload struct {
	PlayerID string     `json:"playerId"`
	Card     types.Card `json:"card"`
}
