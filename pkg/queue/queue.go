package queue

import "errors"

// ErrQueueFull is returned by Enqueue when the queue cannot take more items.
var ErrQueueFull = errors.New("queue full")

// ErrQueueEmpty is returned by Dequeue when there is nothing to read.
var ErrQueueEmpty = errors.New("queue empty")

// Queue represents a basic queue.
type Queue interface {
	Enqueue(item interface{}) error
	Dequeue() (interface{}, error)
	Size() int
	ReadAllMessages() ([]interface{}, error)
	ClearQueue() error
}
