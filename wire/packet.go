// Package wire implements parsing of the Ultimate64's two UDP stream
// datagram formats: the 12-byte VIC video packet header and the 2-byte
// SID audio packet header.
package wire

import (
	"encoding/binary"
	"fmt"
)

const (
	// VideoHeaderSize is the fixed video packet header length.
	VideoHeaderSize = 12
	// AudioHeaderSize is the fixed audio packet header length.
	AudioHeaderSize = 2

	// frameEndFlag is set in the line field of the last packet of a frame.
	frameEndFlag = 0x8000
)

// VideoPacket is a parsed VIC stream datagram. The payload carries
// LinesPerPacket raster lines of PixelsPerLine packed 4-bit pixels
// (two pixels per byte, low nibble first).
type VideoPacket struct {
	Seq            uint16
	Frame          uint16
	Line           uint16
	PixelsPerLine  uint16
	LinesPerPacket uint8
	BitsPerPixel   uint8
	Encoding       uint16
	FrameEnd       bool
	Payload        []byte
}

// AudioPacket is a parsed SID stream datagram. The payload is interleaved
// stereo int16 little-endian samples.
type AudioPacket struct {
	Seq     uint16
	Payload []byte
}

// ParseVideoPacket parses a raw video datagram.
func ParseVideoPacket(buf []byte) (*VideoPacket, error) {
	if len(buf) < VideoHeaderSize {
		return nil, fmt.Errorf("wire: video packet %d bytes, header needs %d", len(buf), VideoHeaderSize)
	}

	line := binary.LittleEndian.Uint16(buf[4:6])
	p := &VideoPacket{
		Seq:            binary.LittleEndian.Uint16(buf[0:2]),
		Frame:          binary.LittleEndian.Uint16(buf[2:4]),
		Line:           line & 0x7FFF,
		PixelsPerLine:  binary.LittleEndian.Uint16(buf[6:8]),
		LinesPerPacket: buf[8],
		BitsPerPixel:   buf[9],
		Encoding:       binary.LittleEndian.Uint16(buf[10:12]),
		FrameEnd:       line&frameEndFlag != 0,
	}

	p.Payload = make([]byte, len(buf)-VideoHeaderSize)
	copy(p.Payload, buf[VideoHeaderSize:])
	return p, nil
}

// ParseAudioPacket parses a raw audio datagram.
func ParseAudioPacket(buf []byte) (*AudioPacket, error) {
	if len(buf) < AudioHeaderSize {
		return nil, fmt.Errorf("wire: audio packet %d bytes, header needs %d", len(buf), AudioHeaderSize)
	}

	p := &AudioPacket{
		Seq: binary.LittleEndian.Uint16(buf[0:2]),
	}
	p.Payload = make([]byte, len(buf)-AudioHeaderSize)
	copy(p.Payload, buf[AudioHeaderSize:])
	return p, nil
}
