package session

import (
	"context"
	"encoding/binary"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandlbn/ultimate64-manager/media"
	"github.com/sandlbn/ultimate64-manager/rest"
)

// fakeDevice emulates the control API: an info handshake plus a recorder
// of every other request path.
type fakeDevice struct {
	srv *httptest.Server

	mu    sync.Mutex
	calls []string

	// onCall, when set, runs inside the handler for non-info requests.
	onCall func(path string)
}

func newFakeDevice(t *testing.T) *fakeDevice {
	t.Helper()
	d := &fakeDevice{}
	d.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/info" {
			w.Write([]byte(`{"product":"Ultimate 64","firmware_version":"3.11","hostname":"u64","unique_id":"fd12","core_version":"1.44"}`))
			return
		}
		d.mu.Lock()
		d.calls = append(d.calls, r.URL.Path)
		cb := d.onCall
		d.mu.Unlock()
		if cb != nil {
			cb(r.URL.Path)
		}
	}))
	t.Cleanup(d.srv.Close)
	return d
}

func (d *fakeDevice) host() string {
	return strings.TrimPrefix(d.srv.URL, "http://")
}

func (d *fakeDevice) called(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.calls {
		if c == path {
			return true
		}
	}
	return false
}

// freeUDPPort grabs an ephemeral port and releases it for the session to
// rebind.
func freeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	conn.Close()
	return port
}

// collectStates subscribes before any transition and forwards every state
// change into a channel.
func collectStates(s *Session) <-chan State {
	ch := make(chan State, 16)
	s.OnSessionStateChanged(func(st State, err error) {
		ch <- st
	})
	return ch
}

func expectState(t *testing.T, ch <-chan State, want State) {
	t.Helper()
	select {
	case got := <-ch:
		require.Equal(t, want, got)
	case <-time.After(5 * time.Second):
		t.Fatalf("no state change, waiting for %v", want)
	}
}

func TestSession_ConnectAndDisconnect(t *testing.T) {
	dev := newFakeDevice(t)
	s := New(nil)
	states := collectStates(s)

	info, err := s.Connect(context.Background(), Endpoint{Host: dev.host()})
	require.NoError(t, err)
	assert.Equal(t, "Ultimate 64", info.Product)
	assert.Equal(t, "3.11", info.FirmwareVersion)

	expectState(t, states, StateConnecting)
	expectState(t, states, StateConnected)

	st, stErr := s.State()
	assert.Equal(t, StateConnected, st)
	assert.NoError(t, stErr)
	require.NotNil(t, s.Info())
	assert.Equal(t, "fd12", s.Info().UniqueID)

	_, err = s.Connect(context.Background(), Endpoint{Host: dev.host()})
	assert.ErrorIs(t, err, ErrAlreadyConnected)

	s.Disconnect()
	expectState(t, states, StateDisconnected)
	assert.Nil(t, s.Info())
	assert.Nil(t, s.Client())
}

func TestSession_HandshakeFailureEntersError(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(bad.Close)

	s := New(nil)
	_, err := s.Connect(context.Background(), Endpoint{Host: strings.TrimPrefix(bad.URL, "http://")})
	assert.ErrorIs(t, err, rest.ErrUnauthorized)

	st, stErr := s.State()
	assert.Equal(t, StateError, st)
	require.Error(t, stErr)
	assert.ErrorIs(t, stErr, rest.ErrUnauthorized)

	// Error is a reconnectable state.
	dev := newFakeDevice(t)
	_, err = s.Connect(context.Background(), Endpoint{Host: dev.host()})
	require.NoError(t, err)
	st, _ = s.State()
	assert.Equal(t, StateConnected, st)
	s.Disconnect()
}

func TestSession_IllegalStateErrors(t *testing.T) {
	s := New(nil)
	ctx := context.Background()

	assert.ErrorIs(t, s.StartStream(ctx, media.StreamVideo), ErrNotConnected)
	assert.ErrorIs(t, s.StopStream(ctx, media.StreamVideo), ErrStreamInactive)
	assert.ErrorIs(t, s.Pause(ctx), ErrNotConnected)
	assert.ErrorIs(t, s.Reset(ctx), ErrNotConnected)
}

// videoFrameDatagrams splits a packed frame into wire datagrams of four
// raster lines each, flagging the last with the end-of-frame bit.
func videoFrameDatagrams(frameNum uint16, startSeq uint16) [][]byte {
	const linesPerPacket = 4
	const chunk = media.VICWidth / 2 * linesPerPacket

	packed := make([]byte, media.VICWidth/2*media.VICHeight)
	for i := range packed {
		packed[i] = byte(i)
	}

	var dgs [][]byte
	seq := startSeq
	for off := 0; off < len(packed); off += chunk {
		line := uint16(off / (media.VICWidth / 2))
		if off+chunk >= len(packed) {
			line |= 0x8000
		}
		dg := make([]byte, 12+chunk)
		binary.LittleEndian.PutUint16(dg[0:], seq)
		binary.LittleEndian.PutUint16(dg[2:], frameNum)
		binary.LittleEndian.PutUint16(dg[4:], line)
		binary.LittleEndian.PutUint16(dg[6:], media.VICWidth)
		dg[8] = linesPerPacket
		dg[9] = 4
		copy(dg[12:], packed[off:off+chunk])
		dgs = append(dgs, dg)
		seq++
	}
	return dgs
}

func TestSession_VideoStreamEndToEnd(t *testing.T) {
	dev := newFakeDevice(t)
	s := New(nil)
	t.Cleanup(s.Disconnect)

	port := freeUDPPort(t)
	_, err := s.Connect(context.Background(), Endpoint{Host: dev.host(), VideoPort: port})
	require.NoError(t, err)

	frames := make(chan *media.VideoFrame, 4)
	s.OnVideoFrame(func(f *media.VideoFrame) { frames <- f })

	require.NoError(t, s.StartStream(context.Background(), media.StreamVideo))
	assert.True(t, dev.called("/v1/streams/video:start"))
	assert.ErrorIs(t, s.StartStream(context.Background(), media.StreamVideo), ErrStreamActive)

	st, _ := s.State()
	assert.Equal(t, StateStreaming, st)

	conn, err := net.Dial("udp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	defer conn.Close()
	for _, dg := range videoFrameDatagrams(1, 0) {
		_, err := conn.Write(dg)
		require.NoError(t, err)
	}

	select {
	case f := <-frames:
		assert.Equal(t, media.VICWidth, f.Width)
		assert.Equal(t, media.VICHeight, f.Height)
		assert.Len(t, f.Pixels, media.VICWidth*media.VICHeight*4)
	case <-time.After(5 * time.Second):
		t.Fatal("no decoded frame arrived")
	}

	stats, ok := s.StreamStats(media.StreamVideo)
	require.True(t, ok)
	assert.EqualValues(t, 1, stats.Frames)
	assert.Zero(t, stats.Gaps)

	require.NoError(t, s.StopStream(context.Background(), media.StreamVideo))
	assert.True(t, dev.called("/v1/streams/video:stop"))
	_, ok = s.StreamStats(media.StreamVideo)
	assert.False(t, ok)

	st, _ = s.State()
	assert.Equal(t, StateConnected, st)
}

func TestSession_AudioStreamEndToEnd(t *testing.T) {
	dev := newFakeDevice(t)
	s := New(nil)
	t.Cleanup(s.Disconnect)

	_, err := s.Connect(context.Background(), Endpoint{
		Host:      dev.host(),
		VideoPort: freeUDPPort(t),
		AudioPort: freeUDPPort(t),
	})
	require.NoError(t, err)

	blocks := make(chan *media.AudioBlock, 4)
	s.OnAudioSamples(func(b *media.AudioBlock) { blocks <- b })

	require.NoError(t, s.StartStream(context.Background(), media.StreamAudio))
	assert.True(t, dev.called("/v1/streams/audio:start"))

	dg := make([]byte, 2+8)
	binary.LittleEndian.PutUint16(dg[0:], 0)
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint16(dg[2+i*2:], uint16(100+i))
	}

	s.mu.Lock()
	port := s.channels[media.StreamAudio].port()
	s.mu.Unlock()
	conn, err := net.Dial("udp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(dg)
	require.NoError(t, err)

	select {
	case b := <-blocks:
		assert.Equal(t, []int16{100, 101, 102, 103}, b.Samples)
		assert.Equal(t, media.AudioSampleRate, b.Rate)
	case <-time.After(5 * time.Second):
		t.Fatal("no audio block arrived")
	}

	require.NoError(t, s.StopStream(context.Background(), media.StreamAudio))
}

func TestSession_DisconnectStopsDeviceStreams(t *testing.T) {
	dev := newFakeDevice(t)
	s := New(nil)

	_, err := s.Connect(context.Background(), Endpoint{
		Host:      dev.host(),
		VideoPort: freeUDPPort(t),
		AudioPort: freeUDPPort(t),
	})
	require.NoError(t, err)
	require.NoError(t, s.StartStream(context.Background(), media.StreamVideo))
	require.NoError(t, s.StartStream(context.Background(), media.StreamAudio))

	s.Disconnect()

	assert.True(t, dev.called("/v1/streams/video:stop"), "device still streaming video")
	assert.True(t, dev.called("/v1/streams/audio:stop"), "device still streaming audio")
	st, _ := s.State()
	assert.Equal(t, StateDisconnected, st)
}

func TestSession_ResetStopsStreamsFirst(t *testing.T) {
	dev := newFakeDevice(t)
	s := New(nil)
	t.Cleanup(s.Disconnect)

	_, err := s.Connect(context.Background(), Endpoint{Host: dev.host(), VideoPort: freeUDPPort(t)})
	require.NoError(t, err)
	require.NoError(t, s.StartStream(context.Background(), media.StreamVideo))

	// Observed from inside the device handler: by the time the reset
	// request arrives, the local stream channel is already gone.
	streamAlive := make(chan bool, 1)
	dev.mu.Lock()
	dev.onCall = func(path string) {
		if path == "/v1/machine:reset" {
			_, ok := s.StreamStats(media.StreamVideo)
			streamAlive <- ok
		}
	}
	dev.mu.Unlock()

	require.NoError(t, s.Reset(context.Background()))

	select {
	case alive := <-streamAlive:
		assert.False(t, alive, "stream channel still up during reset")
	case <-time.After(5 * time.Second):
		t.Fatal("reset request never reached the device")
	}

	st, _ := s.State()
	assert.Equal(t, StateConnected, st)
}
