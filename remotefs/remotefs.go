// Package remotefs defines the remote-filesystem boundary used by the
// file-oriented commands. The device exposes its storage over FTP; that
// transfer mechanism lives outside this module, behind this interface.
package remotefs

import "context"

// Entry is one directory listing row.
type Entry struct {
	Name string
	Size int64
	Dir  bool
}

// Client is the remote filesystem consumed by the run and mount helpers.
// Implementations are supplied by the embedding application.
type Client interface {
	ListDirectory(ctx context.Context, path string) ([]Entry, error)
	Download(ctx context.Context, path string) ([]byte, error)
	Upload(ctx context.Context, path string, data []byte) error
}
