// Package media defines the frame and event types that flow through the
// streaming core, from datagram reassembly through decoding to subscriber
// dispatch.
package media

import "time"

// Channel buffer sizes used by the demuxer (producer) and the session's
// dispatch loop (consumer) to decouple frame production from consumption.
// Sized to absorb scheduling jitter without excessive memory: ~1 second of
// video at 50Hz, ~0.5s of audio at ~250 packets/s.
const (
	VideoBufferSize = 50
	AudioBufferSize = 128
)

// VIC raster dimensions emitted by the device's video stream.
const (
	VICWidth  = 384
	VICHeight = 272
)

// PAL SID stream parameters. The device clocks its sample stream off the
// C64 crystal, so the true rate is fractionally below 48kHz.
const (
	AudioSampleRate = 47983
	AudioChannels   = 2
)

// StreamKind identifies which of the device's UDP streams a datagram or
// frame belongs to.
type StreamKind int

const (
	StreamVideo StreamKind = iota
	StreamAudio
)

func (k StreamKind) String() string {
	switch k {
	case StreamVideo:
		return "video"
	case StreamAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// RawDatagram is one UDP payload as received from the wire, before header
// parsing. Consumed and discarded by the demuxer.
type RawDatagram struct {
	Kind    StreamKind
	Payload []byte
	Arrived time.Time
}

// VideoFrame is one complete decoded raster: RGBA pixels at VICWidth x
// VICHeight, ready for display. Ownership transfers to the subscriber on
// dispatch; the core keeps no reference.
type VideoFrame struct {
	Pixels []byte // RGBA, 4 bytes per pixel
	Width  int
	Height int
	Seq    uint16 // frame counter from the wire header
}

// AudioBlock is a run of interleaved stereo int16 samples decoded from one
// assembled audio run.
type AudioBlock struct {
	Samples []int16 // interleaved L/R
	Rate    int
	Seq     uint16
}

// LossMarker signals that one or more expected datagrams never arrived on a
// channel. Informational: streaming continues with the next frame.
type LossMarker struct {
	Kind     StreamKind
	Expected uint16
	Got      uint16
	Gap      int
}

// CorruptFrame signals that an assembled video buffer did not match the
// fixed raster size and was skipped.
type CorruptFrame struct {
	Kind StreamKind
	Size int
	Want int
}
