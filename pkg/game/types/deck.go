package types

import "math/rand"

// Deck is an ordered pile of cards. Cards are drawn from the front.
type Deck []Card

// NewDeck returns the 52-card deck in suit-major order.
func NewDeck() Deck {
	deck := make(Deck, 0, len(Suits)*len(Ranks))
	for _, s := range Suits {
		for _, r := range Ranks {
			deck = append(deck, Card{Suit: s, Rank: r})
		}
	}
	return deck
}

// Shuffle permutes the deck in place.
func (d Deck) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(d), func(i, j int) { d[i], d[j] = d[j], d[i] })
}

// Draw removes and returns up to n cards from the front of the deck.
func (d *Deck) Draw(n int) []Card {
	if n > len(*d) {
		n = len(*d)
	}
	drawn := make([]Card, n)
	copy(drawn, (*d)[:n])
	*d = (*d)[n:]
	return drawn
}

// DrawOne removes the front card. ok is false when the deck is empty.
func (d *Deck) DrawOne() (Card, bool) {
	if len(*d) == 0 {
		return Card{}, false
	}
	c := (*d)[0]
	*d = (*d)[1:]
	return c, true
}

func (d Deck) Len() int {
	return len(d)
}

// IndexOf returns the index of c in cards or -1.
func IndexOf(cards []Card, c Card) int {
	for i, card := range cards {
		if card == c {
			return i
		}
	}
	return -1
}

// RemoveCard returns cards without the first occurrence of c.
func RemoveCard(cards []Card, c Card) ([]Card, bool) {
	i := IndexOf(cards, c)
	if i == -1 {
		return cards, false
	}
	out := make([]Card, 0, len(cards)-1)
	out = append(out, cards[:i]...)
	out = append(out, cards[i+1:]...)
	return out, true
}
