package demux

import "sort"

// DefaultReorderWindow is how far ahead of the expected sequence number a
// datagram may arrive and still be buffered for in-order release. Anything
// further ahead is treated as loss and forces a resync.
const DefaultReorderWindow = 32

// sequencer restores per-channel datagram order. Datagrams carry a 16-bit
// wrapping sequence counter; the sequencer releases payloads strictly in
// sequence, buffering limited reordering and reporting gaps.
type sequencer struct {
	expected uint16
	started  bool
	window   int
	pending  map[uint16][]byte
}

// seqEvent is one ordered release or a detected gap.
type seqEvent struct {
	payload []byte // nil when this event is a gap report
	seq     uint16
	gap     int    // >0 when datagrams were skipped
	gapFrom uint16 // expected seq at the time of the gap
}

func newSequencer(window int) *sequencer {
	if window <= 0 {
		window = DefaultReorderWindow
	}
	return &sequencer{
		window:  window,
		pending: make(map[uint16][]byte),
	}
}

// accept feeds one datagram payload with its sequence number and returns
// the events it unlocks: zero or more in-order releases, possibly preceded
// by a single gap report.
func (s *sequencer) accept(seq uint16, payload []byte) []seqEvent {
	if !s.started {
		s.started = true
		s.expected = seq
	}

	d := int(int16(seq - s.expected))

	switch {
	case d < 0:
		// Stale or duplicate, already consumed. Drop.
		return nil

	case d == 0:
		events := []seqEvent{{payload: payload, seq: seq}}
		s.expected++
		return append(events, s.drain()...)

	case d <= s.window:
		// Ahead but within the reorder window. Hold until contiguous.
		// The caller reuses its receive buffer across reads, so a held
		// payload must own its bytes.
		if _, ok := s.pending[seq]; !ok {
			s.pending[seq] = append([]byte(nil), payload...)
		}
		return nil

	default:
		// Beyond the window: whatever is still missing will never
		// arrive. Report one gap for the missing datagrams, release any
		// buffered ones that did arrive, and resync to the new base.
		events := s.jumpTo(seq)
		events = append(events, seqEvent{payload: payload, seq: seq})
		s.expected = seq + 1
		return append(events, s.drain()...)
	}
}

// drain releases buffered datagrams that are now contiguous with expected.
func (s *sequencer) drain() []seqEvent {
	var events []seqEvent
	for {
		payload, ok := s.pending[s.expected]
		if !ok {
			return events
		}
		delete(s.pending, s.expected)
		events = append(events, seqEvent{payload: payload, seq: s.expected})
		s.expected++
	}
}

// jumpTo moves the sequence base forward to seq after a gap. Buffered
// datagrams between the old base and seq arrived and are released in
// order; only the datagrams that never showed up count toward the gap.
func (s *sequencer) jumpTo(seq uint16) []seqEvent {
	var arrived []uint16
	for k := range s.pending {
		if int(int16(k-s.expected)) >= 0 && int(int16(seq-k)) > 0 {
			arrived = append(arrived, k)
		}
	}
	sort.Slice(arrived, func(i, j int) bool {
		return int(int16(arrived[i]-s.expected)) < int(int16(arrived[j]-s.expected))
	})

	gap := int(int16(seq-s.expected)) - len(arrived)
	events := []seqEvent{{gap: gap, gapFrom: s.expected, seq: seq}}
	for _, k := range arrived {
		events = append(events, seqEvent{payload: s.pending[k], seq: k})
		delete(s.pending, k)
	}
	for k := range s.pending {
		if int(int16(k-seq)) < 0 {
			delete(s.pending, k)
		}
	}
	s.expected = seq
	return events
}
