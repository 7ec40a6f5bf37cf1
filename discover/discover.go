// Package discover scans the local network for Ultimate64/Ultimate-II+
// devices. A fast parallel TCP probe of the /24 finds hosts with the
// control port open; candidates are then verified by the /v1/info
// identification endpoint.
package discover

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sandlbn/ultimate64-manager/rest"
)

const (
	controlPort  = 80
	probeTimeout = 200 * time.Millisecond
	infoTimeout  = 1 * time.Second

	// Bound on concurrent probes so a /24 sweep does not exhaust file
	// descriptors on conservative systems.
	probeLimit = 64
)

// Device is one verified device found on the network.
type Device struct {
	IP       string
	Product  string
	Firmware string
}

// Scan sweeps the /24 of the local address for devices. Subnet may be
// given explicitly as e.g. "192.168.1." to override detection.
func Scan(ctx context.Context, log *slog.Logger, subnet string) ([]Device, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "discover")

	if subnet == "" {
		ip, err := localIP()
		if err != nil {
			return nil, fmt.Errorf("discover: determine local address: %w", err)
		}
		subnet = ip[:len(ip)-len(lastOctet(ip))]
	}
	log.Info("scanning subnet", "subnet", subnet+"0/24")

	candidates, err := probeSubnet(ctx, subnet)
	if err != nil {
		return nil, err
	}
	log.Debug("probe complete", "candidates", len(candidates))

	return verify(ctx, log, candidates)
}

// probeSubnet dials every host in the subnet on the control port and
// returns the ones that answered.
func probeSubnet(ctx context.Context, subnet string) ([]string, error) {
	var mu sync.Mutex
	var open []string

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(probeLimit)

	for i := 1; i <= 254; i++ {
		ip := fmt.Sprintf("%s%d", subnet, i)
		g.Go(func() error {
			d := net.Dialer{Timeout: probeTimeout}
			conn, err := d.DialContext(ctx, "tcp4", fmt.Sprintf("%s:%d", ip, controlPort))
			if err != nil {
				return nil // closed or filtered, not an error
			}
			conn.Close()
			mu.Lock()
			open = append(open, ip)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return open, nil
}

// verify asks each candidate for /v1/info and keeps the ones that answer
// like an Ultimate device.
func verify(ctx context.Context, log *slog.Logger, candidates []string) ([]Device, error) {
	var mu sync.Mutex
	var devices []Device

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(probeLimit)

	for _, ip := range candidates {
		ip := ip
		g.Go(func() error {
			client := rest.NewClient(ip, "", rest.WithTimeout(infoTimeout))
			info, err := client.Info(ctx)
			if err != nil || info.Product == "" {
				return nil
			}
			log.Info("device found", "ip", ip, "product", info.Product, "firmware", info.FirmwareVersion)
			mu.Lock()
			devices = append(devices, Device{
				IP:       ip,
				Product:  info.Product,
				Firmware: info.FirmwareVersion,
			})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return devices, nil
}

// localIP finds the address the OS would use to reach the LAN.
func localIP() (string, error) {
	conn, err := net.Dial("udp4", "192.168.255.255:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}

func lastOctet(ip string) string {
	for i := len(ip) - 1; i >= 0; i-- {
		if ip[i] == '.' {
			return ip[i+1:]
		}
	}
	return ip
}
