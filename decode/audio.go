package decode

import (
	"encoding/binary"

	"github.com/sandlbn/ultimate64-manager/media"
)

// AudioDecoder converts raw PCM byte runs into interleaved stereo int16
// sample blocks. A trailing byte that does not complete a sample is
// carried over and prefixed onto the next run, so sample alignment
// survives arbitrary datagram boundaries.
type AudioDecoder struct {
	carry []byte
}

// NewAudioDecoder returns a decoder with no carried bytes.
func NewAudioDecoder() *AudioDecoder {
	return &AudioDecoder{}
}

// Decode converts one assembled byte run into an AudioBlock. Returns nil
// when the run (plus any carry) is too short for a single sample.
func (d *AudioDecoder) Decode(raw []byte, seq uint16) *media.AudioBlock {
	buf := raw
	if len(d.carry) > 0 {
		buf = append(d.carry, raw...)
		d.carry = nil
	}

	n := len(buf) / 2
	if rem := len(buf) % 2; rem != 0 {
		d.carry = append(d.carry, buf[len(buf)-rem:]...)
		buf = buf[:len(buf)-rem]
	}
	if n == 0 {
		return nil
	}

	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}

	return &media.AudioBlock{
		Samples: samples,
		Rate:    media.AudioSampleRate,
		Seq:     seq,
	}
}

// Reset discards any carried bytes, used when a loss marker breaks sample
// alignment with the previous run.
func (d *AudioDecoder) Reset() {
	d.carry = nil
}
