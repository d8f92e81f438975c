// Package network brings the station link up at boot and reports whether
// it is still connected.
package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tank-controller/internal/display"
	"github.com/thatsimonsguy/tank-controller/internal/gate"
)

var (
	// ErrInit means the interface itself is missing or unusable.
	ErrInit = errors.New("network interface unavailable")
	// ErrConnect means the interface exists but never got an address.
	ErrConnect = errors.New("network did not come up")
)

// Screen messages for each bring-up outcome.
const (
	MsgInitFailed    = "WiFi => FALHA"
	MsgConnectFailed = "WiFi => ERRO"
	MsgOK            = "WiFi => OK"
)

type Link interface {
	// Up waits until the link has an address or ctx ends.
	Up(ctx context.Context) (ip string, err error)
	Connected() bool
}

// HostLink watches a host network interface for an IPv4 address.
type HostLink struct {
	Interface    string
	PollInterval time.Duration

	interfaceAddrs func(name string) ([]net.Addr, error)
}

func NewHostLink(iface string) *HostLink {
	return &HostLink{Interface: iface, PollInterval: 500 * time.Millisecond}
}

func (h *HostLink) Up(ctx context.Context) (string, error) {
	for {
		ip, err := h.ipv4()
		if err != nil {
			return "", err
		}
		if ip != "" {
			return ip, nil
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %s has no IPv4 address: %v", ErrConnect, h.Interface, ctx.Err())
		case <-time.After(h.poll()):
		}
	}
}

func (h *HostLink) Connected() bool {
	ip, err := h.ipv4()
	return err == nil && ip != ""
}

func (h *HostLink) ipv4() (string, error) {
	addrs, err := h.addrs(h.Interface)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInit, h.Interface, err)
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok {
			if v4 := ipnet.IP.To4(); v4 != nil && !v4.IsLoopback() {
				return v4.String(), nil
			}
		}
	}
	return "", nil
}

func (h *HostLink) addrs(name string) ([]net.Addr, error) {
	if h.interfaceAddrs != nil {
		return h.interfaceAddrs(name)
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return iface.Addrs()
}

func (h *HostLink) poll() time.Duration {
	if h.PollInterval <= 0 {
		return 500 * time.Millisecond
	}
	return h.PollInterval
}

// BringUpOptions configures BringUp.
type BringUpOptions struct {
	Timeout     time.Duration
	ShowIPDelay time.Duration
	Sleep       func(time.Duration)
}

// BringUp holds the panel while it brings the link up and shows the
// outcome, then opens the readiness latch. The latch opens whatever the
// outcome so level sensing and pump control never depend on the network.
func BringUp(ctx context.Context, link Link, panel *display.Panel, ready *gate.Latch, opts BringUpOptions) (ip string, err error) {
	defer ready.Open()

	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	panel.Hold(func(s display.Screen) {
		upCtx := ctx
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			upCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}

		ip, err = link.Up(upCtx)
		switch {
		case errors.Is(err, ErrInit):
			drawOrLog(s, MsgInitFailed)
		case err != nil:
			drawOrLog(s, MsgConnectFailed)
		default:
			drawOrLog(s, MsgOK, ip)
			log.Info().Str("ip", ip).Msg("Network up")
			sleep(opts.ShowIPDelay)
		}
	})

	if err != nil {
		log.Error().Err(err).Msg("Network bring-up failed, control API disabled")
	}
	return ip, err
}

func drawOrLog(s display.Screen, lines ...string) {
	if err := s.Draw(lines); err != nil {
		log.Warn().Err(err).Strs("lines", lines).Msg("Failed to draw network status")
	}
}

// StaticLink is a Link with a fixed outcome, for tests and headless runs.
type StaticLink struct {
	IP  string
	Err error
}

func (s StaticLink) Up(ctx context.Context) (string, error) {
	return s.IP, s.Err
}

func (s StaticLink) Connected() bool {
	return s.Err == nil && s.IP != ""
}
