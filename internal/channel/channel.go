// Package channel wraps Go channels behind small generic interfaces so
// producers and consumers of input lines can be swapped in tests.
package channel

import "context"

// Receiver provides read access to a channel.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender provides write access to a channel.
type Sender[T any] interface {
	Send(T)
	SendContext(ctx context.Context, v T) error
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}

// Pipe is a Channel backed by a plain Go channel.
type Pipe[T any] struct {
	ch chan T
}

// NewBuffered returns a pipe holding up to size values.
func NewBuffered[T any](size int) *Pipe[T] {
	return &Pipe[T]{ch: make(chan T, size)}
}

// NewUnbuffered returns a pipe whose Send blocks until the value is taken.
func NewUnbuffered[T any]() *Pipe[T] {
	return &Pipe[T]{ch: make(chan T)}
}

// Send blocks until v is queued or taken.
func (p *Pipe[T]) Send(v T) {
	p.ch <- v
}

// SendContext is Send that gives up when ctx is done.
func (p *Pipe[T]) SendContext(ctx context.Context, v T) error {
	select {
	case p.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the receive-only side.
func (p *Pipe[T]) Receive() <-chan T {
	return p.ch
}

// Len returns the number of queued values, always 0 when unbuffered.
func (p *Pipe[T]) Len() int {
	return len(p.ch)
}

// Close closes the pipe. Only the producer may call it.
func (p *Pipe[T]) Close() {
	close(p.ch)
}
