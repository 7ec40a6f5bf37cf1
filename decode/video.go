// Package decode converts assembled byte runs from the demuxer into
// renderable frames: packed 4-bit VIC rasters into RGBA images, and raw
// SID PCM bytes into interleaved int16 sample blocks.
package decode

import (
	"github.com/sandlbn/ultimate64-manager/media"
)

// PackedFrameSize is the expected length of one assembled video run:
// two palette indices per byte over the 384x272 raster.
const PackedFrameSize = media.VICWidth / 2 * media.VICHeight

// The fixed VIC-II color palette, RGB.
var palette = [16][3]uint8{
	{0x00, 0x00, 0x00}, // black
	{0xFF, 0xFF, 0xFF}, // white
	{0x68, 0x37, 0x2B}, // red
	{0x70, 0xA4, 0xB2}, // cyan
	{0x6F, 0x3D, 0x86}, // purple
	{0x58, 0x8D, 0x43}, // green
	{0x35, 0x28, 0x79}, // blue
	{0xB8, 0xC7, 0x6F}, // yellow
	{0x6F, 0x4F, 0x25}, // orange
	{0x43, 0x39, 0x00}, // brown
	{0x9A, 0x67, 0x59}, // light red
	{0x44, 0x44, 0x44}, // dark grey
	{0x6C, 0x6C, 0x6C}, // grey
	{0x9A, 0xD2, 0x84}, // light green
	{0x6C, 0x5E, 0xB5}, // light blue
	{0x95, 0x95, 0x95}, // light grey
}

// colorLUT maps a packed byte (two 4-bit indices) to 8 RGBA bytes so the
// hot loop is a single table lookup per input byte. Low nibble is the
// left pixel.
var colorLUT = buildColorLUT()

func buildColorLUT() [256][8]uint8 {
	var lut [256][8]uint8
	for i := 0; i < 256; i++ {
		lo := palette[i&0x0F]
		hi := palette[(i>>4)&0x0F]
		lut[i] = [8]uint8{lo[0], lo[1], lo[2], 255, hi[0], hi[1], hi[2], 255}
	}
	return lut
}

// Video decodes one assembled packed raster into an RGBA VideoFrame.
// A buffer whose length does not match the fixed raster size yields a
// CorruptFrame event instead; a bad frame never stops the stream.
func Video(packed []byte, seq uint16) (*media.VideoFrame, *media.CorruptFrame) {
	if len(packed) != PackedFrameSize {
		return nil, &media.CorruptFrame{
			Kind: media.StreamVideo,
			Size: len(packed),
			Want: PackedFrameSize,
		}
	}

	pixels := make([]byte, media.VICWidth*media.VICHeight*4)
	for i, b := range packed {
		copy(pixels[i*8:], colorLUT[b][:])
	}

	return &media.VideoFrame{
		Pixels: pixels,
		Width:  media.VICWidth,
		Height: media.VICHeight,
		Seq:    seq,
	}, nil
}
