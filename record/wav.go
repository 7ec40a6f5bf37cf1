// Package record provides capture sinks for the streaming core: WAV
// recording of the audio stream and PNG screenshots of video frames.
// Both are plain subscribers of the session's subscription interface.
package record

import (
	"fmt"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/sandlbn/ultimate64-manager/media"
)

// WAVRecorder appends decoded audio blocks to a 16-bit stereo WAV file.
// Write is safe to call from the session's audio dispatch goroutine while
// another goroutine decides when to Close.
type WAVRecorder struct {
	mu     sync.Mutex
	f      *os.File
	enc    *wav.Encoder
	closed bool
	blocks int64
}

// NewWAVRecorder creates the output file and writes the WAV header.
func NewWAVRecorder(path string) (*WAVRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	enc := wav.NewEncoder(f, media.AudioSampleRate, 16, media.AudioChannels, 1)
	return &WAVRecorder{f: f, enc: enc}, nil
}

// Write appends one audio block. Blocks arriving after Close are
// silently dropped, so the recorder can stay subscribed during teardown.
func (r *WAVRecorder) Write(block *media.AudioBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}

	data := make([]int, len(block.Samples))
	for i, s := range block.Samples {
		data[i] = int(s)
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: media.AudioChannels,
			SampleRate:  media.AudioSampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := r.enc.Write(buf); err != nil {
		return fmt.Errorf("record: wav write: %w", err)
	}
	r.blocks++
	return nil
}

// Blocks returns how many audio blocks have been written.
func (r *WAVRecorder) Blocks() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blocks
}

// Close finalizes the WAV header and closes the file.
func (r *WAVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.enc.Close(); err != nil {
		r.f.Close()
		return fmt.Errorf("record: finalize wav: %w", err)
	}
	return r.f.Close()
}
