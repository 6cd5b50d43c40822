package types

import (
	"fmt"
	"strconv"
	"strings"
)

type Suit string

const (
	SuitSpades   Suit = "♠"
	SuitHearts   Suit = "♥"
	SuitDiamonds Suit = "♦"
	SuitClubs    Suit = "♣"
)

// Suits lists the suits in deck construction order.
var Suits = []Suit{SuitSpades, SuitHearts, SuitDiamonds, SuitClubs}

type Rank string

const (
	RankAce   Rank = "A"
	RankTwo   Rank = "2"
	RankThree Rank = "3"
	RankFour  Rank = "4"
	RankFive  Rank = "5"
	RankSix   Rank = "6"
	RankSeven Rank = "7"
	RankEight Rank = "8"
	RankNine  Rank = "9"
	RankTen   Rank = "10"
	RankJack  Rank = "J"
	RankQueen Rank = "Q"
	RankKing  Rank = "K"
)

// Ranks lists the ranks in deck construction order.
var Ranks = []Rank{
	RankAce, RankTwo, RankThree, RankFour, RankFive, RankSix, RankSeven,
	RankEight, RankNine, RankTen, RankJack, RankQueen, RankKing,
}

// Card is an immutable playing card. Two cards are equal when suit and rank match.
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

func (c Card) String() string {
	return string(c.Rank) + string(c.Suit)
}

// Numeric returns the face value of a numeric rank (2-10).
func (r Rank) Numeric() (int, bool) {
	switch r {
	case RankJack, RankQueen, RankKing, RankAce:
		return 0, false
	}
	n, err := strconv.Atoi(string(r))
	if err != nil || n < 2 || n > 10 {
		return 0, false
	}
	return n, true
}

func (r Rank) Valid() bool {
	for _, rank := range Ranks {
		if r == rank {
			return true
		}
	}
	return false
}

func (s Suit) Valid() bool {
	for _, suit := range Suits {
		if s == suit {
			return true
		}
	}
	return false
}

// Validate checks that the card is one of the 52 standard cards.
func (c Card) Validate() error {
	if !c.Suit.Valid() {
		return fmt.Errorf("invalid suit %q", c.Suit)
	}
	if !c.Rank.Valid() {
		return fmt.Errorf("invalid rank %q", c.Rank)
	}
	return nil
}

var suitLetters = map[string]Suit{
	"S": SuitSpades,
	"H": SuitHearts,
	"D": SuitDiamonds,
	"C": SuitClubs,
}

// ParseCard reads a card written as rank then suit, e.g. "10H", "qs" or "A♠".
func ParseCard(s string) (Card, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, suit := range Suits {
		if rank, ok := strings.CutSuffix(s, string(suit)); ok {
			c := Card{Suit: suit, Rank: Rank(rank)}
			return c, c.Validate()
		}
	}
	if len(s) < 2 {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}
	suit, ok := suitLetters[s[len(s)-1:]]
	if !ok {
		return Card{}, fmt.Errorf("invalid suit in %q", s)
	}
	c := Card{Suit: suit, Rank: Rank(s[:len(s)-1])}
	return c, c.Validate()
}
