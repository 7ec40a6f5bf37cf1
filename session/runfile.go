package session

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/sandlbn/ultimate64-manager/command"
	"github.com/sandlbn/ultimate64-manager/remotefs"
	"github.com/sandlbn/ultimate64-manager/rest"
)

// UploadAndRun pushes a program to the device's storage through the
// remote filesystem collaborator, then asks the device to run it. The
// runner is chosen from the file extension.
func (s *Session) UploadAndRun(ctx context.Context, fs remotefs.Client, remotePath string, data []byte) error {
	s.mu.Lock()
	if s.state != StateConnected && s.state != StateStreaming {
		s.mu.Unlock()
		return ErrNotConnected
	}
	client := s.client
	queue := s.queue
	s.mu.Unlock()

	runner, err := runnerForExt(remotePath)
	if err != nil {
		return err
	}

	if err := fs.Upload(ctx, remotePath, data); err != nil {
		return fmt.Errorf("session: upload %s: %w", remotePath, err)
	}

	return s.run(ctx, queue, command.Command{
		Verb:       "run-" + string(runner),
		Idempotent: false,
		Fn: func(ctx context.Context) error {
			return client.Run(ctx, runner, remotePath)
		},
	})
}

func runnerForExt(p string) (rest.Runner, error) {
	switch strings.ToLower(path.Ext(p)) {
	case ".prg":
		return rest.RunPrg, nil
	case ".crt":
		return rest.RunCrt, nil
	case ".sid":
		return rest.SidPlay, nil
	case ".mod":
		return rest.ModPlay, nil
	default:
		return "", fmt.Errorf("session: no runner for %q", p)
	}
}
