// Package wol sends Wake-on-LAN magic packets.
package wol

import (
	"fmt"
	"log"
	"net"

	gowol "github.com/sabhiram/go-wol/wol"
)

// DefaultBroadcastAddr is the limited broadcast address on the discard port
const DefaultBroadcastAddr = "255.255.255.255:9"

// Sender broadcasts magic packets
type Sender struct {
	BroadcastAddr string
}

// NewSender creates a sender. An empty addr uses DefaultBroadcastAddr.
func NewSender(addr string) *Sender {
	if addr == "" {
		addr = DefaultBroadcastAddr
	}
	return &Sender{BroadcastAddr: addr}
}

// MagicPacket builds the 102 byte payload: 6 x 0xFF then the MAC 16 times.
// Only 6 byte MAC-48 addresses are accepted.
func MagicPacket(mac string) ([]byte, error) {
	mp, err := gowol.New(mac)
	if err != nil {
		return nil, fmt.Errorf("invalid MAC address %q: %w", mac, err)
	}
	packet, err := mp.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to encode magic packet: %w", err)
	}
	return packet, nil
}

// Wake sends a magic packet for mac
func (s *Sender) Wake(mac string) error {
	packet, err := MagicPacket(mac)
	if err != nil {
		return err
	}

	addr, err := net.ResolveUDPAddr("udp4", s.BroadcastAddr)
	if err != nil {
		return fmt.Errorf("failed to resolve broadcast address: %w", err)
	}

	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return fmt.Errorf("failed to create UDP socket: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Write(packet); err != nil {
		return fmt.Errorf("failed to send magic packet: %w", err)
	}

	log.Printf("WoL: Sent magic packet to %s via %s", mac, s.BroadcastAddr)
	return nil
}
