package audio

import "context"

// Rechunk coalesces the chunks read from in into chunks of at least minBytes
// and sends them on the returned channel. The remainder is flushed when in is
// closed. The returned channel is closed when in is closed or ctx is done.
func Rechunk(ctx context.Context, in <-chan []byte, minBytes int) <-chan []byte {
	out := make(chan []byte, 4)
	go func() {
		defer close(out)

		send := func(b []byte) bool {
			select {
			case out <- b:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var pending []byte
		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-in:
				if !ok {
					if len(pending) > 0 {
						send(pending)
					}
					return
				}
				pending = append(pending, chunk...)
				if len(pending) < minBytes {
					continue
				}
				if !send(pending) {
					return
				}
				pending = nil
			}
		}
	}()
	return out
}
