package record

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"

	"github.com/sandlbn/ultimate64-manager/media"
)

func TestWAVRecorder_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.wav")

	r, err := NewWAVRecorder(path)
	if err != nil {
		t.Fatal(err)
	}

	samples := []int16{0, 1000, -1000, 32767, -32768, 42}
	if err := r.Write(&media.AudioBlock{Samples: samples, Rate: media.AudioSampleRate}); err != nil {
		t.Fatal(err)
	}
	if got := r.Blocks(); got != 1 {
		t.Errorf("blocks = %d, want 1", got)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if dec.SampleRate != media.AudioSampleRate {
		t.Errorf("sample rate = %d, want %d", dec.SampleRate, media.AudioSampleRate)
	}
	if int(dec.NumChans) != media.AudioChannels {
		t.Errorf("channels = %d, want %d", dec.NumChans, media.AudioChannels)
	}
	if len(buf.Data) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), len(samples))
	}
	for i, s := range samples {
		if buf.Data[i] != int(s) {
			t.Errorf("sample %d = %d, want %d", i, buf.Data[i], s)
		}
	}
}

func TestWAVRecorder_WriteAfterCloseDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.wav")
	r, err := NewWAVRecorder(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if err := r.Write(&media.AudioBlock{Samples: []int16{1, 2}}); err != nil {
		t.Errorf("write after close: %v", err)
	}
	if r.Blocks() != 0 {
		t.Errorf("blocks = %d after closed write", r.Blocks())
	}
}
