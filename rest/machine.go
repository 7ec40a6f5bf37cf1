package rest

import (
	"context"
	"fmt"
	"net/url"
)

// Machine control operations, all PUT /v1/machine:<op> with an empty body.

// Reset resets the C64. Any active streams stop emitting until restarted.
func (c *Client) Reset(ctx context.Context) error {
	return c.put(ctx, "/v1/machine:reset", nil)
}

// Reboot reboots the Ultimate firmware itself.
func (c *Client) Reboot(ctx context.Context) error {
	return c.put(ctx, "/v1/machine:reboot", nil)
}

// Pause freezes the machine.
func (c *Client) Pause(ctx context.Context) error {
	return c.put(ctx, "/v1/machine:pause", nil)
}

// Resume unfreezes a paused machine.
func (c *Client) Resume(ctx context.Context) error {
	return c.put(ctx, "/v1/machine:resume", nil)
}

// PowerOff powers the device down.
func (c *Client) PowerOff(ctx context.Context) error {
	return c.put(ctx, "/v1/machine:poweroff", nil)
}

// MenuButton presses the Ultimate menu button.
func (c *Client) MenuButton(ctx context.Context) error {
	return c.put(ctx, "/v1/machine:menu_button", nil)
}

// Runner identifies a file-execution endpoint on the device.
type Runner string

// Runners supported by PUT /v1/runners:<runner>?file=<path>.
const (
	RunPrg  Runner = "run_prg"
	RunCrt  Runner = "run_crt"
	SidPlay Runner = "sidplay"
	ModPlay Runner = "modplay"
)

// Run asks the device to execute a file already present on its storage.
func (c *Client) Run(ctx context.Context, runner Runner, file string) error {
	q := url.Values{"file": {file}}
	return c.put(ctx, "/v1/runners:"+string(runner), q)
}

// MountMode controls write access of a mounted disk image.
type MountMode string

// Mount modes accepted by the drive mount endpoint.
const (
	MountReadWrite MountMode = "readwrite"
	MountReadOnly  MountMode = "readonly"
	MountUnlinked  MountMode = "unlinked"
)

// MountDisk mounts a disk image on drive "a" or "b".
func (c *Client) MountDisk(ctx context.Context, drive, image string, mode MountMode) error {
	q := url.Values{
		"image": {image},
		"mode":  {string(mode)},
	}
	return c.put(ctx, fmt.Sprintf("/v1/drives/%s:mount", drive), q)
}

// RemoveDisk removes the mounted image from a drive.
func (c *Client) RemoveDisk(ctx context.Context, drive string) error {
	return c.put(ctx, fmt.Sprintf("/v1/drives/%s:remove", drive), nil)
}

// ResetDrive resets a drive.
func (c *Client) ResetDrive(ctx context.Context, drive string) error {
	return c.put(ctx, fmt.Sprintf("/v1/drives/%s:reset", drive), nil)
}

// StartStream asks the device to begin sending the named UDP stream
// ("video" or "audio") to dest, formatted host:port.
func (c *Client) StartStream(ctx context.Context, name, dest string) error {
	q := url.Values{"ip": {dest}}
	return c.put(ctx, fmt.Sprintf("/v1/streams/%s:start", name), q)
}

// StopStream asks the device to stop sending the named UDP stream.
func (c *Client) StopStream(ctx context.Context, name string) error {
	return c.put(ctx, fmt.Sprintf("/v1/streams/%s:stop", name), nil)
}
