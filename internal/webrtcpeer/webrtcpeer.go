// Package webrtcpeer builds pion peer connections for the party side and
// adapts them to negotiate.Transport.
package webrtcpeer

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/pion/transport/v4/vnet"
	"github.com/pion/webrtc/v4"
)

type APIConfig struct {
	// UDPPortMin and UDPPortMax restrict the local ICE port range when both
	// are non-zero.
	UDPPortMin uint16
	UDPPortMax uint16

	// NAT1To1IPs advertises these addresses as host candidates.
	NAT1To1IPs []string

	// ListenIP restricts candidate gathering to one local address.
	ListenIP net.IP

	// Net replaces the OS network stack, e.g. with a virtual network.
	Net *vnet.Net

	// Logger receives pion's internal logs. Nil discards them below warn.
	Logger *slog.Logger
}

func NewAPI(cfg APIConfig) (*webrtc.API, error) {
	se := webrtc.SettingEngine{}
	if err := ApplyNetworkSettings(&se, cfg); err != nil {
		return nil, err
	}
	if cfg.Logger != nil {
		se.LoggerFactory = NewLoggerFactory(cfg.Logger)
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	return webrtc.NewAPI(
		webrtc.WithSettingEngine(se),
		webrtc.WithMediaEngine(mediaEngine),
	), nil
}

func ApplyNetworkSettings(se *webrtc.SettingEngine, cfg APIConfig) error {
	if cfg.UDPPortMin != 0 || cfg.UDPPortMax != 0 {
		if err := se.SetEphemeralUDPPortRange(cfg.UDPPortMin, cfg.UDPPortMax); err != nil {
			return fmt.Errorf("set ephemeral udp port range: %w", err)
		}
	}

	if len(cfg.NAT1To1IPs) > 0 {
		se.SetNAT1To1IPs(cfg.NAT1To1IPs, webrtc.ICECandidateTypeHost)
	}

	if cfg.ListenIP != nil && !cfg.ListenIP.IsUnspecified() {
		listenIP := cfg.ListenIP
		se.SetIPFilter(func(ip net.IP) bool {
			return ip.Equal(listenIP)
		})
	}

	if cfg.Net != nil {
		se.SetNet(cfg.Net)
	}

	return nil
}
