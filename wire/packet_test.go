package wire

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func buildVideoHeader(seq, frame, line, pixels uint16, lines, bpp uint8, end bool) []byte {
	buf := make([]byte, VideoHeaderSize)
	binary.LittleEndian.PutUint16(buf[0:2], seq)
	binary.LittleEndian.PutUint16(buf[2:4], frame)
	if end {
		line |= 0x8000
	}
	binary.LittleEndian.PutUint16(buf[4:6], line)
	binary.LittleEndian.PutUint16(buf[6:8], pixels)
	buf[8] = lines
	buf[9] = bpp
	return buf
}

func TestParseVideoPacket(t *testing.T) {
	payload := []byte{0x12, 0x34, 0x56}
	raw := append(buildVideoHeader(7, 3, 100, 384, 4, 4, false), payload...)

	p, err := ParseVideoPacket(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Seq != 7 || p.Frame != 3 || p.Line != 100 {
		t.Errorf("header fields wrong: seq=%d frame=%d line=%d", p.Seq, p.Frame, p.Line)
	}
	if p.PixelsPerLine != 384 || p.LinesPerPacket != 4 || p.BitsPerPixel != 4 {
		t.Errorf("geometry fields wrong: %d/%d/%d", p.PixelsPerLine, p.LinesPerPacket, p.BitsPerPixel)
	}
	if p.FrameEnd {
		t.Error("frame end flag should be clear")
	}
	if !bytes.Equal(p.Payload, payload) {
		t.Errorf("payload mismatch: %x", p.Payload)
	}
}

func TestParseVideoPacket_FrameEndFlag(t *testing.T) {
	raw := buildVideoHeader(0, 0, 268, 384, 4, 4, true)

	p, err := ParseVideoPacket(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.FrameEnd {
		t.Error("frame end flag not detected")
	}
	if p.Line != 268 {
		t.Errorf("flag bit leaked into line number: %d", p.Line)
	}
}

func TestParseVideoPacket_TooShort(t *testing.T) {
	if _, err := ParseVideoPacket(make([]byte, VideoHeaderSize-1)); err == nil {
		t.Error("expected error for short packet")
	}
}

func TestParseAudioPacket(t *testing.T) {
	raw := []byte{0x2A, 0x00, 0x01, 0x02, 0x03, 0x04}

	p, err := ParseAudioPacket(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Seq != 42 {
		t.Errorf("seq = %d, want 42", p.Seq)
	}
	if !bytes.Equal(p.Payload, []byte{0x01, 0x02, 0x03, 0x04}) {
		t.Errorf("payload mismatch: %x", p.Payload)
	}
}

func TestParseAudioPacket_TooShort(t *testing.T) {
	if _, err := ParseAudioPacket([]byte{0x01}); err == nil {
		t.Error("expected error for short packet")
	}
}

func TestParseVideoPacket_CopiesPayload(t *testing.T) {
	raw := append(buildVideoHeader(0, 0, 0, 384, 1, 4, false), 0xAA)
	p, err := ParseVideoPacket(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw[VideoHeaderSize] = 0xBB
	if p.Payload[0] != 0xAA {
		t.Error("payload aliases the receive buffer")
	}
}
