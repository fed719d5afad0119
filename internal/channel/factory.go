//go:build !debug

package channel

// New returns a pipe buffered to size.
func New[T any](size int) Channel[T] {
	return NewBuffered[T](size)
}
