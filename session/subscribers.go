package session

import (
	"sync"

	"github.com/sandlbn/ultimate64-manager/media"
)

// StreamEvent is an informational event surfaced to subscribers: a loss
// marker or a corrupt-frame report. These never interrupt streaming.
type StreamEvent struct {
	Loss    *media.LossMarker
	Corrupt *media.CorruptFrame
}

// subscribers is the publish/subscribe hub between the stream receiver
// goroutines and external consumers. Callbacks run on the goroutine that
// produced the event; consumers needing decoupling should hand off to
// their own channel. Unsubscribe functions are safe to call after the
// session is torn down.
type subscribers struct {
	mu     sync.RWMutex
	nextID int
	video  map[int]func(*media.VideoFrame)
	audio  map[int]func(*media.AudioBlock)
	state  map[int]func(State, error)
	events map[int]func(StreamEvent)
}

func newSubscribers() *subscribers {
	return &subscribers{
		video:  make(map[int]func(*media.VideoFrame)),
		audio:  make(map[int]func(*media.AudioBlock)),
		state:  make(map[int]func(State, error)),
		events: make(map[int]func(StreamEvent)),
	}
}

func (s *subscribers) addVideo(fn func(*media.VideoFrame)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.video[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.video, id)
	}
}

func (s *subscribers) addAudio(fn func(*media.AudioBlock)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.audio[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.audio, id)
	}
}

func (s *subscribers) addState(fn func(State, error)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.state[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.state, id)
	}
}

func (s *subscribers) addEvents(fn func(StreamEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.events[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.events, id)
	}
}

func (s *subscribers) publishVideo(f *media.VideoFrame) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fn := range s.video {
		fn(f)
	}
}

func (s *subscribers) publishAudio(b *media.AudioBlock) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fn := range s.audio {
		fn(b)
	}
}

func (s *subscribers) publishState(st State, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fn := range s.state {
		fn(st, err)
	}
}

func (s *subscribers) publishEvent(ev StreamEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fn := range s.events {
		fn(ev)
	}
}
