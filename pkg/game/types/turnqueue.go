package types

import "errors"

var ErrNoActivePlayers = errors.New("no active players")

// TurnQueue is the ordered list of players still able to act.
// The head is the player whose turn it is.
type TurnQueue []string

// Current returns the player at the head of the queue.
func (q TurnQueue) Current() (string, error) {
	if len(q) == 0 {
		return "", ErrNoActivePlayers
	}
	return q[0], nil
}

// Advance moves the head to the tail.
func (q *TurnQueue) Advance() {
	if len(*q) < 2 {
		return
	}
	head := (*q)[0]
	copy(*q, (*q)[1:])
	(*q)[len(*q)-1] = head
}

// Reverse replaces the queue order with its reverse. With fewer than
// minPlayers entries the call is a no-op and returns false.
func (q TurnQueue) Reverse(minPlayers int) bool {
	if len(q) < minPlayers {
		return false
	}
	for i, j := 0, len(q)-1; i < j; i, j = i+1, j-1 {
		q[i], q[j] = q[j], q[i]
	}
	return true
}

// Remove drops id from the queue, keeping the order of the others.
func (q *TurnQueue) Remove(id string) bool {
	for i, pid := range *q {
		if pid == id {
			*q = append((*q)[:i:i], (*q)[i+1:]...)
			return true
		}
	}
	return false
}

func (q TurnQueue) Contains(id string) bool {
	for _, pid := range q {
		if pid == id {
			return true
		}
	}
	return false
}

func (q TurnQueue) Len() int {
	return len(q)
}

// IDs returns a copy of the queue.
func (q TurnQueue) IDs() []string {
	out := make([]string, len(q))
	copy(out, q)
	return out
}
