package record

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/sandlbn/ultimate64-manager/media"
)

// SaveScreenshot writes one decoded video frame to a PNG file.
func SaveScreenshot(frame *media.VideoFrame, path string) error {
	img := &image.RGBA{
		Pix:    frame.Pixels,
		Stride: frame.Width * 4,
		Rect:   image.Rect(0, 0, frame.Width, frame.Height),
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("record: encode png: %w", err)
	}
	return f.Close()
}
