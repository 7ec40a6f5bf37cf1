// Package demux turns the raw datagram flow of one device stream into
// ordered, loss-annotated frame events. Each stream kind gets its own
// Channel: datagrams are sequenced through a bounded reorder window,
// assembled into complete byte runs, and released together with loss
// markers for any datagrams that never arrived.
package demux

import (
	"sync/atomic"

	"github.com/sandlbn/ultimate64-manager/media"
	"github.com/sandlbn/ultimate64-manager/wire"
)

// packedFrameSize is the byte length of one fully assembled video frame:
// two 4-bit pixels per byte over the fixed raster.
const packedFrameSize = media.VICWidth / 2 * media.VICHeight

// Event is one output of a Channel: either an assembled frame payload or
// a loss marker. Exactly one of Payload and Loss is set.
type Event struct {
	Kind    media.StreamKind
	Payload []byte
	Seq     uint16 // frame counter for video, datagram seq for audio
	Loss    *media.LossMarker
}

// Stats are cumulative channel counters, safe to read from any goroutine.
type Stats struct {
	Datagrams int64
	Frames    int64
	Gaps      int64
	LostPkts  int64
	Malformed int64
}

// Channel reassembles one stream. Push is not safe for concurrent use;
// it is intended to be called from a single receiver goroutine.
type Channel struct {
	kind media.StreamKind
	seq  *sequencer

	// video frame assembly
	assembly []byte
	frameSeq uint16

	datagrams atomic.Int64
	frames    atomic.Int64
	gaps      atomic.Int64
	lostPkts  atomic.Int64
	malformed atomic.Int64
}

// NewChannel creates a Channel for the given stream kind with the given
// reorder window (0 means DefaultReorderWindow).
func NewChannel(kind media.StreamKind, window int) *Channel {
	return &Channel{
		kind: kind,
		seq:  newSequencer(window),
	}
}

// Push feeds one raw datagram and returns the events it produces, in
// order. Malformed datagrams are counted and dropped.
func (c *Channel) Push(buf []byte) []Event {
	c.datagrams.Add(1)

	switch c.kind {
	case media.StreamVideo:
		return c.pushVideo(buf)
	default:
		return c.pushAudio(buf)
	}
}

func (c *Channel) pushVideo(buf []byte) []Event {
	pkt, err := wire.ParseVideoPacket(buf)
	if err != nil {
		c.malformed.Add(1)
		return nil
	}

	var events []Event
	for _, ev := range c.seq.accept(pkt.Seq, buf) {
		if ev.gap > 0 {
			events = append(events, c.lossEvent(ev))
			// Datagrams are missing from the current frame; drop the
			// partial assembly so a short buffer surfaces at the next
			// frame boundary instead of pixels landing in the wrong rows.
			c.assembly = nil
			continue
		}
		// Re-parse: the sequencer may release buffered datagrams.
		p, err := wire.ParseVideoPacket(ev.payload)
		if err != nil {
			c.malformed.Add(1)
			continue
		}
		events = append(events, c.appendVideo(p)...)
	}
	return events
}

// appendVideo adds one in-order packet's payload to the frame assembly and
// emits the frame when the end-of-frame flag arrives.
func (c *Channel) appendVideo(p *wire.VideoPacket) []Event {
	if c.assembly == nil {
		c.assembly = make([]byte, 0, packedFrameSize)
		c.frameSeq = p.Frame
	}
	c.assembly = append(c.assembly, p.Payload...)

	var events []Event
	if p.FrameEnd {
		c.frames.Add(1)
		events = append(events, Event{
			Kind:    media.StreamVideo,
			Payload: c.assembly,
			Seq:     c.frameSeq,
		})
		c.assembly = nil
		return events
	}

	// Missed end-of-frame flag: never let the assembly grow unbounded.
	// Flush the oversized run; the decoder will flag it as corrupt.
	if len(c.assembly) > packedFrameSize {
		events = append(events, Event{
			Kind:    media.StreamVideo,
			Payload: c.assembly,
			Seq:     c.frameSeq,
		})
		c.assembly = nil
	}
	return events
}

func (c *Channel) pushAudio(buf []byte) []Event {
	pkt, err := wire.ParseAudioPacket(buf)
	if err != nil {
		c.malformed.Add(1)
		return nil
	}

	var events []Event
	for _, ev := range c.seq.accept(pkt.Seq, buf) {
		if ev.gap > 0 {
			events = append(events, c.lossEvent(ev))
			continue
		}
		p, err := wire.ParseAudioPacket(ev.payload)
		if err != nil {
			c.malformed.Add(1)
			continue
		}
		c.frames.Add(1)
		events = append(events, Event{
			Kind:    media.StreamAudio,
			Payload: p.Payload,
			Seq:     p.Seq,
		})
	}
	return events
}

func (c *Channel) lossEvent(ev seqEvent) Event {
	c.gaps.Add(1)
	c.lostPkts.Add(int64(ev.gap))
	return Event{
		Kind: c.kind,
		Loss: &media.LossMarker{
			Kind:     c.kind,
			Expected: ev.gapFrom,
			Got:      ev.seq,
			Gap:      ev.gap,
		},
	}
}

// Stats returns a snapshot of the channel counters.
func (c *Channel) Stats() Stats {
	return Stats{
		Datagrams: c.datagrams.Load(),
		Frames:    c.frames.Load(),
		Gaps:      c.gaps.Load(),
		LostPkts:  c.lostPkts.Load(),
		Malformed: c.malformed.Load(),
	}
}
