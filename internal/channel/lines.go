package channel

import (
	"bufio"
	"context"
	"io"
)

// Lines scans r line by line on its own goroutine and delivers each line
// on the returned channel. The channel is closed when r reaches EOF, r
// fails or ctx is done. A scan error is sent on errc before the close.
//
// A read blocked in r only returns when r does. If r is an io.Closer it
// is closed once ctx is done; otherwise the goroutine exits after the
// pending read completes.
func Lines(ctx context.Context, r io.Reader, size int) (lines Receiver[string], errc <-chan error) {
	ch := New[string](size)
	ec := make(chan error, 1)

	go func() {
		defer ch.Close()
		defer close(ec)

		if c, ok := r.(io.Closer); ok {
			stop := context.AfterFunc(ctx, func() { _ = c.Close() })
			defer stop()
		}

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if ch.SendContext(ctx, scanner.Text()) != nil {
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			ec <- err
		}
	}()

	return ch, ec
}
