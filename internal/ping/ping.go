package ping

import (
	"fmt"
	"os"
	"sync"

	"nts/pkg/config"
	"nts/pkg/message"
	"nts/pkg/operation"
	"nts/pkg/packet"

	"github.com/kelindar/bitmap"
	"github.com/pkg/errors"
)

// PayloadSize matches the default payload of the classic ping utility.
const PayloadSize = 56

// NewEchoRequest builds an Ethernet, IPv4 and ICMP echo request message
// whose addresses, VLAN, TTL and identifier come from cfg.
func NewEchoRequest(cfg config.Configuration) *message.Message {
	eth := packet.NewEthernet().Configure(cfg).SetEtherType(packet.EtherTypeIPv4)
	if _, ok := cfg.Int(config.KeyEthernetVLAN); ok {
		eth.AddVlanTag(*packet.NewVlanTag().Configure(cfg))
	}

	icmp := packet.NewIcmpEcho(uint16(os.Getpid()), 0).Configure(cfg)

	payload := make([]byte, PayloadSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	ip := packet.NewIpv4()
	ip.Protocol = uint8(packet.IPProtocolICMP)
	ip.TotalLength = uint16(packet.Ipv4HeaderSize + packet.IcmpHeaderSize + PayloadSize)
	ip.Configure(cfg)

	return message.New(eth, ip, icmp, packet.NewGeneric(payload))
}

// SetSequence is a write mutator numbering requests by iteration.
func SetSequence(iteration int, m *message.Message) error {
	icmp, ok := m.Get(packet.TagIcmp).(*packet.Icmp)
	if !ok {
		return errors.New("message has no icmp layer")
	}
	icmp.SetSequenceNumber(uint16(iteration))
	return nil
}

// Tracker records which echo requests were answered.
type Tracker struct {
	mu       sync.Mutex
	id       uint16
	expected int
	replied  bitmap.Bitmap
}

func NewTracker(id uint16, expected int) *Tracker {
	return &Tracker{id: id, expected: expected}
}

// Handle is a read handler. It ends the read once every expected reply
// has arrived.
func (t *Tracker) Handle(_ int, m *message.Message) error {
	icmp, ok := m.Get(packet.TagIcmp).(*packet.Icmp)
	if !ok || icmp.MessageType() != packet.IcmpEchoReply || icmp.Identifier() != t.id {
		return nil
	}
	seq := int(icmp.SequenceNumber())
	if seq >= t.expected {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.replied.Set(uint32(seq))
	if t.replied.Count() >= t.expected {
		return operation.ErrDone
	}
	return nil
}

func (t *Tracker) Received() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.replied.Count()
}

// Lost returns the unanswered sequence numbers in ascending order.
func (t *Tracker) Lost() []uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var lost []uint32
	for seq := 0; seq < t.expected; seq++ {
		if !t.replied.Contains(uint32(seq)) {
			lost = append(lost, uint32(seq))
		}
	}
	return lost
}

// Report renders the closing statistics line.
func (t *Tracker) Report() string {
	received := t.Received()
	loss := 0.0
	if t.expected > 0 {
		loss = float64(t.expected-received) * 100 / float64(t.expected)
	}
	return fmt.Sprintf("%d packets transmitted, %d received, %.1f%% packet loss", t.expected, received, loss)
}
