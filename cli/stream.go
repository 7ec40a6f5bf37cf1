package cli

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/sandlbn/ultimate64-manager/media"
	"github.com/sandlbn/ultimate64-manager/record"
	"github.com/sandlbn/ultimate64-manager/session"
)

func newStreamCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "receive and capture the device's UDP streams",
	}
	cmd.AddCommand(newStreamWatchCommand(opts))
	cmd.AddCommand(newStreamScreenshotCommand(opts))
	cmd.AddCommand(newStreamRecordCommand(opts))
	return cmd
}

func newStreamWatchCommand(opts *options) *cobra.Command {
	var (
		duration time.Duration
		audio    bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "receive streams and report frame statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.Disconnect()

			if err := s.StartStream(cmd.Context(), media.StreamVideo); err != nil {
				return err
			}
			if audio {
				if err := s.StartStream(cmd.Context(), media.StreamAudio); err != nil {
					return err
				}
			}

			unsub := s.OnStreamEvent(func(ev session.StreamEvent) {
				switch {
				case ev.Loss != nil:
					pterm.Warning.Printfln("%s loss: %d datagram(s)", ev.Loss.Kind, ev.Loss.Gap)
				case ev.Corrupt != nil:
					pterm.Warning.Printfln("corrupt frame skipped (%d bytes)", ev.Corrupt.Size)
				}
			})
			defer unsub()

			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			deadline := time.After(duration)
			if duration <= 0 {
				deadline = nil
			}

			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-deadline:
					return nil
				case <-ticker.C:
					if st, ok := s.StreamStats(media.StreamVideo); ok {
						line := fmt.Sprintf("video: %d frames, %d datagrams, %d lost", st.Frames, st.Datagrams, st.LostPkts)
						if audio {
							if ast, ok := s.StreamStats(media.StreamAudio); ok {
								line += fmt.Sprintf(" | audio: %d blocks, %d lost", ast.Frames, ast.LostPkts)
							}
						}
						pterm.Info.Println(line)
					}
				}
			}
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 = until interrupted)")
	cmd.Flags().BoolVar(&audio, "audio", false, "also receive the audio stream")
	return cmd
}

func newStreamScreenshotCommand(opts *options) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "screenshot <out.png>",
		Short: "capture the next complete video frame to a PNG file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.Disconnect()

			frames := make(chan *media.VideoFrame, 1)
			unsub := s.OnVideoFrame(func(f *media.VideoFrame) {
				select {
				case frames <- f:
				default:
				}
			})
			defer unsub()

			if err := s.StartStream(cmd.Context(), media.StreamVideo); err != nil {
				return err
			}
			defer s.StopStream(cmd.Context(), media.StreamVideo)

			select {
			case frame := <-frames:
				if err := record.SaveScreenshot(frame, args[0]); err != nil {
					return err
				}
				pterm.Success.Printfln("saved %dx%d frame to %s", frame.Width, frame.Height, args[0])
				return nil
			case <-time.After(timeout):
				return fmt.Errorf("no complete frame within %s", timeout)
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "give up after this long")
	return cmd
}

func newStreamRecordCommand(opts *options) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "record <out.wav>",
		Short: "record the SID audio stream to a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.Disconnect()

			rec, err := record.NewWAVRecorder(args[0])
			if err != nil {
				return err
			}

			unsub := s.OnAudioSamples(func(b *media.AudioBlock) {
				rec.Write(b)
			})
			defer unsub()

			if err := s.StartStream(cmd.Context(), media.StreamAudio); err != nil {
				rec.Close()
				return err
			}

			pterm.Info.Printfln("recording for %s...", duration)
			select {
			case <-time.After(duration):
			case <-cmd.Context().Done():
			}

			s.StopStream(cmd.Context(), media.StreamAudio)
			if err := rec.Close(); err != nil {
				return err
			}
			pterm.Success.Printfln("wrote %d audio blocks to %s", rec.Blocks(), args[0])
			return nil
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "how long to record")
	return cmd
}
