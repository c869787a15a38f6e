package llm

import (
	"context"
	"iter"
	"strings"
	"sync"
)

// Producer emits fragments through yield until the backend is done. It must
// stop once yield returns false or ctx is canceled. A non-nil return becomes
// the stream's terminal error.
type Producer func(ctx context.Context, yield func(string) bool) error

// Stream is a lazy, finite, single-use sequence of generated fragments.
//
// Next, Text, Err and Close belong to a single consumer goroutine. To abort
// from elsewhere, cancel the context passed to Generate. Callers must Close
// a stream they stop reading early; a drained stream closes itself.
type Stream struct {
	next   func() (string, error, bool)
	stop   func()
	cancel context.CancelFunc

	cur string
	err error

	mu     sync.Mutex
	closed bool
	hooks  []func()
}

// NewStream wires a producer behind a pull-style Stream. The producer runs
// only while the consumer asks for the next fragment.
func NewStream(ctx context.Context, produce Producer) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	seq := func(yield func(string, error) bool) {
		open := true
		err := produce(ctx, func(frag string) bool {
			if !open {
				return false
			}
			open = yield(frag, nil)
			return open
		})
		if err != nil && open {
			if cerr := ctx.Err(); cerr != nil {
				err = cerr
			}
			yield("", err)
		}
	}
	next, stop := iter.Pull2(iter.Seq2[string, error](seq))
	return &Stream{next: next, stop: stop, cancel: cancel}
}

// Next advances to the next fragment. It returns false when the stream is
// exhausted, failed, or closed.
func (s *Stream) Next() bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}
	frag, err, ok := s.next()
	if !ok {
		_ = s.Close()
		return false
	}
	if err != nil {
		s.err = err
		_ = s.Close()
		return false
	}
	s.cur = frag
	return true
}

// Text returns the fragment produced by the last successful Next.
func (s *Stream) Text() string { return s.cur }

// Err returns the terminal error, if any.
func (s *Stream) Err() error { return s.err }

// Close releases the producer and runs close hooks. It is idempotent.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	hooks := s.hooks
	s.hooks = nil
	s.mu.Unlock()

	s.cancel()
	s.stop()
	for _, fn := range hooks {
		fn()
	}
	return nil
}

// OnClose registers fn to run once when the stream closes. If the stream is
// already closed fn runs immediately.
func (s *Stream) OnClose(fn func()) {
	s.mu.Lock()
	if !s.closed {
		s.hooks = append(s.hooks, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	fn()
}

// Collect drains s and returns the concatenated text.
func Collect(s *Stream) (string, error) {
	defer s.Close()
	var b strings.Builder
	for s.Next() {
		b.WriteString(s.Text())
	}
	return b.String(), s.Err()
}

// FromSlice returns a stream over fixed fragments. Useful for tests and
// canned responses.
func FromSlice(ctx context.Context, frags []string) *Stream {
	return NewStream(ctx, func(ctx context.Context, yield func(string) bool) error {
		for _, f := range frags {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !yield(f) {
				return nil
			}
		}
		return nil
	})
}
