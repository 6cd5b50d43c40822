package game

import (
	"errors"
	"fmt"

	"github.com/cbodonnell/ninetyfive/pkg/rooms"
	"github.com/cbodonnell/ninetyfive/pkg/state"
)

// Validation errors: malformed or missing fields.
var (
	ErrMissingRoomID    = errors.New("missing room id")
	ErrInvalidCard      = errors.New("invalid card")
	ErrInvalidAceValue  = errors.New("invalid value")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrInvalidCall      = errors.New("invalid guess")
	ErrInvalidPayload   = errors.New("invalid payload")
)

// State errors: the action is illegal in the current state.
var (
	ErrRoomNotFound            = state.ErrRoomNotFound
	ErrGameNotFound            = errors.New("game not found")
	ErrNotEnoughPlayers        = errors.New("not enough players")
	ErrGameAlreadyStarted      = errors.New("game already started")
	ErrGameOver                = errors.New("game over")
	ErrPlayerNotInGame         = errors.New("player not in game")
	ErrNotYourTurn             = errors.New("not your turn")
	ErrCardNotHeld             = errors.New("card not held")
	ErrNotLoser                = errors.New("not the loser")
	ErrAutorouteAlreadyStarted = errors.New("autoroute already started")
	ErrAutorouteNotInProgress  = errors.New("autoroute not in progress")
	ErrNotAutorouteTurn        = errors.New("not your turn in autoroute")
	ErrAceValueNotChosen       = errors.New("ace value not chosen")
	ErrWrongAutoroutePhase     = errors.New("action not allowed in this autoroute phase")
	ErrAwaitingRestart         = errors.New("autoroute must be restarted")
)

// Resource errors: the deck cannot supply the cards an action needs.
var (
	ErrInsufficientDeck = errors.New("insufficient deck")
	ErrDeckEmpty        = errors.New("deck empty")
)

type ErrorKind string

const (
	ErrorKindValidation  ErrorKind = "validation"
	ErrorKindState       ErrorKind = "state"
	ErrorKindResource    ErrorKind = "resource"
	ErrorKindOperational ErrorKind = "operational"
)

// ValidationError reports a malformed or missing field.
type ValidationError struct {
	Err    error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StateError reports an action that is illegal in the current state.
type StateError struct {
	Err error
}

func (e *StateError) Error() string { return e.Err.Error() }

func (e *StateError) Unwrap() error { return e.Err }

// ResourceError reports an exhausted deck or river.
type ResourceError struct {
	Err       error
	Needed    int
	Available int
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%v: need %d, have %d", e.Err, e.Needed, e.Available)
}

func (e *ResourceError) Unwrap() error { return e.Err }

func validationError(err error, detail string) error {
	return &ValidationError{Err: err, Detail: detail}
}

func stateError(err error) error {
	return &StateError{Err: err}
}

func resourceError(err error, needed, available int) error {
	return &ResourceError{Err: err, Needed: needed, Available: available}
}

// Kind classifies err for the caller-facing error message.
func Kind(err error) ErrorKind {
	var ve *ValidationError
	var se *StateError
	var re *ResourceError
	switch {
	case errors.As(err, &ve):
		return ErrorKindValidation
	case errors.As(err, &se):
		return ErrorKindState
	case errors.As(err, &re):
		return ErrorKindResource
	case errors.Is(err, ErrRoomNotFound), isLobbyError(err):
		return ErrorKindState
	default:
		return ErrorKindOperational
	}
}

var errorCodes = map[error]string{
	ErrMissingRoomID:           "missing_room_id",
	ErrInvalidCard:             "invalid_card",
	ErrInvalidAceValue:         "invalid_value",
	ErrInvalidDirection:        "invalid_direction",
	ErrInvalidCall:             "invalid_guess",
	ErrRoomNotFound:            "room_not_found",
	ErrGameNotFound:            "game_not_found",
	ErrNotEnoughPlayers:        "not_enough_players",
	ErrGameAlreadyStarted:      "game_already_started",
	ErrGameOver:                "game_over",
	ErrPlayerNotInGame:         "player_not_in_game",
	ErrNotYourTurn:             "not_your_turn",
	ErrCardNotHeld:             "card_not_held",
	ErrNotLoser:                "not_the_loser",
	ErrAutorouteAlreadyStarted: "autoroute_already_started",
	ErrAutorouteNotInProgress:  "autoroute_not_in_progress",
	ErrNotAutorouteTurn:        "not_your_turn_in_autoroute",
	ErrAceValueNotChosen:       "ace_value_not_chosen",
	ErrWrongAutoroutePhase:     "wrong_autoroute_phase",
	ErrAwaitingRestart:         "restart_required",
	ErrInsufficientDeck:        "insufficient_deck",
	ErrDeckEmpty:               "deck_empty",
	state.ErrPersistence:       "persistence_failed",
	ErrInvalidPayload:          "invalid_payload",
	rooms.ErrUserNotFound:      "user_not_found",
	rooms.ErrRoomFull:          "room_full",
	rooms.ErrGameInProgress:    "game_in_progress",
	rooms.ErrNotHost:           "not_host",
	rooms.ErrNotInRoom:         "not_in_room",
}

func isLobbyError(err error) bool {
	for _, sentinel := range []error{
		rooms.ErrUserNotFound,
		rooms.ErrRoomFull,
		rooms.ErrGameInProgress,
		rooms.ErrNotHost,
		rooms.ErrNotInRoom,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// Code returns a stable identifier for err, or "internal" when err is not
// one of the engine's errors.
func Code(err error) string {
	for sentinel, code := range errorCodes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return "internal"
}
