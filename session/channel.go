package session

import (
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/sandlbn/ultimate64-manager/decode"
	"github.com/sandlbn/ultimate64-manager/demux"
	"github.com/sandlbn/ultimate64-manager/media"
)

// maxDatagram comfortably exceeds the largest datagram either stream
// emits (video packets are 12+768 bytes).
const maxDatagram = 2048

// streamChannel owns the receiving side of one active stream: the UDP
// socket, the receiver goroutine, the demux channel, and the decoder. It
// is created by StartStream and destroyed by StopStream or teardown.
type streamChannel struct {
	kind media.StreamKind
	log  *slog.Logger
	conn *net.UDPConn
	dmx  *demux.Channel
	subs *subscribers

	audioDec *decode.AudioDecoder

	done chan struct{}
	wg   sync.WaitGroup

	// fatalErr reports a non-recoverable socket failure to the session.
	fatalErr func(error)
}

// newStreamChannel binds the UDP socket and starts the receiver
// goroutine.
func newStreamChannel(kind media.StreamKind, port int, subs *subscribers, fatalErr func(error)) (*streamChannel, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, err
	}

	sc := &streamChannel{
		kind:     kind,
		log:      slog.With("component", "stream", "kind", kind.String(), "port", port),
		conn:     conn,
		dmx:      demux.NewChannel(kind, demux.DefaultReorderWindow),
		subs:     subs,
		done:     make(chan struct{}),
		fatalErr: fatalErr,
	}
	if kind == media.StreamAudio {
		sc.audioDec = decode.NewAudioDecoder()
	}

	sc.wg.Add(1)
	go sc.receive()
	return sc, nil
}

// receive blocks on the socket until stop closes it. Closing the socket
// makes ReadFromUDP return immediately, so stop's wg.Wait is bounded.
func (sc *streamChannel) receive() {
	defer sc.wg.Done()
	buf := make([]byte, maxDatagram)

	for {
		n, _, err := sc.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-sc.done:
				return // ordered shutdown
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			sc.log.Error("socket receive failed", "error", err)
			if sc.fatalErr != nil {
				sc.fatalErr(err)
			}
			return
		}

		for _, ev := range sc.dmx.Push(buf[:n]) {
			sc.dispatch(ev)
		}
	}
}

// dispatch decodes one demux event and publishes the result. Loss and
// corrupt frames are reported as events and never stop the stream.
func (sc *streamChannel) dispatch(ev demux.Event) {
	if ev.Loss != nil {
		sc.log.Debug("datagram loss",
			"expected", ev.Loss.Expected,
			"got", ev.Loss.Got,
			"gap", ev.Loss.Gap)
		if sc.audioDec != nil {
			sc.audioDec.Reset()
		}
		sc.subs.publishEvent(StreamEvent{Loss: ev.Loss})
		return
	}

	switch sc.kind {
	case media.StreamVideo:
		frame, corrupt := decode.Video(ev.Payload, ev.Seq)
		if corrupt != nil {
			sc.log.Debug("corrupt frame skipped", "size", corrupt.Size, "want", corrupt.Want)
			sc.subs.publishEvent(StreamEvent{Corrupt: corrupt})
			return
		}
		sc.subs.publishVideo(frame)

	case media.StreamAudio:
		if block := sc.audioDec.Decode(ev.Payload, ev.Seq); block != nil {
			sc.subs.publishAudio(block)
		}
	}
}

// stop tears the channel down and does not return until the receiver
// goroutine has exited.
func (sc *streamChannel) stop() {
	close(sc.done)
	sc.conn.Close()
	sc.wg.Wait()
}

// port returns the local UDP port the channel is bound to.
func (sc *streamChannel) port() int {
	return sc.conn.LocalAddr().(*net.UDPAddr).Port
}

// stats exposes the demux counters for this channel.
func (sc *streamChannel) stats() demux.Stats {
	return sc.dmx.Stats()
}
