package pipeline

import (
	"context"
	"io"
	"sync"
)

// DefaultEventBuffer bounds the progress events a stream holds.
const DefaultEventBuffer = 32

// Stream is a bounded queue of run events for a single consumer. Publishing
// never blocks: when the queue is full the oldest progress event is dropped.
// The terminal event is held apart and delivered last, exactly once.
type Stream struct {
	mu        sync.Mutex
	queue     []Event
	capacity  int
	terminal  *Event
	delivered bool
	dropped   int
	notify    chan struct{}
}

func newStream(capacity int) *Stream {
	if capacity <= 0 {
		capacity = DefaultEventBuffer
	}
	return &Stream{capacity: capacity, notify: make(chan struct{})}
}

func (s *Stream) publish(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal != nil {
		return
	}
	if len(s.queue) >= s.capacity {
		s.queue = s.queue[1:]
		s.dropped++
	}
	s.queue = append(s.queue, e)
	s.wake()
}

func (s *Stream) close(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal != nil {
		return
	}
	s.terminal = &e
	s.wake()
}

// wake must be called with mu held.
func (s *Stream) wake() {
	close(s.notify)
	s.notify = make(chan struct{})
}

// Next blocks until an event is available. After the terminal event has
// been returned it reports io.EOF.
func (s *Stream) Next(ctx context.Context) (Event, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			e := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return e, nil
		}
		if s.terminal != nil {
			if s.delivered {
				s.mu.Unlock()
				return Event{}, io.EOF
			}
			s.delivered = true
			e := *s.terminal
			s.mu.Unlock()
			return e, nil
		}
		wait := s.notify
		s.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// C adapts Next to a channel that is closed after the terminal event or
// when ctx is done.
func (s *Stream) C(ctx context.Context) <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)
		for {
			e, err := s.Next(ctx)
			if err != nil {
				return
			}
			select {
			case ch <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// Dropped returns how many progress events were discarded on overflow.
func (s *Stream) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
