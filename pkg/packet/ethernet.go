package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"nts/pkg/config"

	"github.com/pkg/errors"
)

// EthernetHeaderSize is Destination(6) + Source(6) + EtherType(2), without VLAN tags.
const EthernetHeaderSize = 14

// Ethernet is an Ethernet II frame header with zero or more 802.1Q tags.
type Ethernet struct {
	Destination [6]byte
	Source      [6]byte
	Tags        []VlanTag
	// EtherType or payload length, see EtherType.
	TypeOrLength uint16
}

func NewEthernet() *Ethernet {
	return &Ethernet{}
}

// Configure applies Protocols.Ethernet.Destination and Source when present.
// Unparseable addresses are ignored.
func (e *Ethernet) Configure(cfg config.Configuration) *Ethernet {
	if dst, ok := cfg.String(config.KeyEthernetDestination); ok {
		_ = e.SetDestination(dst)
	}
	if src, ok := cfg.String(config.KeyEthernetSource); ok {
		_ = e.SetSource(src)
	}
	return e
}

func (e *Ethernet) DestinationAddr() net.HardwareAddr {
	return net.HardwareAddr(e.Destination[:])
}

func (e *Ethernet) SourceAddr() net.HardwareAddr {
	return net.HardwareAddr(e.Source[:])
}

func (e *Ethernet) SetDestination(addr string) error {
	mac, err := parseMAC(addr)
	if err != nil {
		return err
	}
	e.Destination = mac
	return nil
}

func (e *Ethernet) SetSource(addr string) error {
	mac, err := parseMAC(addr)
	if err != nil {
		return err
	}
	e.Source = mac
	return nil
}

func (e *Ethernet) EtherType() EtherType { return EtherType(e.TypeOrLength) }

func (e *Ethernet) SetEtherType(t EtherType) *Ethernet {
	e.TypeOrLength = uint16(t)
	return e
}

// IsLength reports whether TypeOrLength carries a payload length.
func (e *Ethernet) IsLength() bool { return e.TypeOrLength <= MaxEthernetLength }

// AddVlanTag appends tag. The protocol identifier is always the VLAN EtherType.
func (e *Ethernet) AddVlanTag(tag VlanTag) *Ethernet {
	tag.ProtocolIdentifier = uint16(EtherTypeVLAN)
	e.Tags = append(e.Tags, tag)
	return e
}

// RemoveVlanTag drops every tag carrying vid.
func (e *Ethernet) RemoveVlanTag(vid uint16) *Ethernet {
	kept := e.Tags[:0]
	for _, tag := range e.Tags {
		if tag.VID() != vid {
			kept = append(kept, tag)
		}
	}
	e.Tags = kept
	return e
}

func (e *Ethernet) ClearVlanTags() *Ethernet {
	e.Tags = nil
	return e
}

func (e *Ethernet) Encode(w io.Writer) error {
	buf := make([]byte, 0, e.Size())
	buf = append(buf, e.Destination[:]...)
	buf = append(buf, e.Source[:]...)
	for _, tag := range e.Tags {
		buf = binary.BigEndian.AppendUint16(buf, uint16(EtherTypeVLAN))
		buf = binary.BigEndian.AppendUint16(buf, tag.ControlInformation)
	}
	buf = binary.BigEndian.AppendUint16(buf, e.TypeOrLength)
	return writeAll(w, buf, "ethernet.Encode")
}

// Decode reads the addresses and the EtherType, then keeps consuming VLAN
// tags for as long as the EtherType read says another tag follows.
func (e *Ethernet) Decode(r io.Reader) error {
	var hdr [EthernetHeaderSize]byte
	err := readFull(r, hdr[:], "ethernet.Decode")
	copy(e.Destination[:], hdr[0:6])
	copy(e.Source[:], hdr[6:12])
	e.TypeOrLength = binary.BigEndian.Uint16(hdr[12:14])
	e.Tags = nil
	if err != nil {
		return err
	}

	var typ [2]byte
	for e.EtherType() == EtherTypeVLAN {
		var tag VlanTag
		if err := tag.decodeControl(r); err != nil {
			return err
		}
		e.Tags = append(e.Tags, tag)

		if err := readFull(r, typ[:], "ethernet.Decode"); err != nil {
			return err
		}
		e.TypeOrLength = binary.BigEndian.Uint16(typ[:])
	}
	return nil
}

func (e *Ethernet) Tag() string { return TagEthernet }

func (e *Ethernet) Size() int {
	return EthernetHeaderSize + len(e.Tags)*VlanTagSize
}

func (e *Ethernet) String() string {
	var b bytes.Buffer
	b.WriteString("[Ethernet]\n")
	b.WriteString(fmt.Sprintf("\tDestination: %s\n", e.DestinationAddr()))
	b.WriteString(fmt.Sprintf("\tSource: %s\n", e.SourceAddr()))
	if e.IsLength() {
		b.WriteString(fmt.Sprintf("\tLength: 0x%04x\n", e.TypeOrLength))
	} else {
		b.WriteString(fmt.Sprintf("\tEtherType: 0x%04x\n", e.TypeOrLength))
	}
	for i := range e.Tags {
		b.WriteString(e.Tags[i].String())
	}
	return b.String()
}

func parseMAC(addr string) ([6]byte, error) {
	var mac [6]byte
	hw, err := net.ParseMAC(addr)
	if err != nil {
		return mac, errors.Wrap(err, "net.ParseMAC")
	}
	if len(hw) != len(mac) {
		return mac, errors.Errorf("not an EUI-48 address: %s", addr)
	}
	copy(mac[:], hw)
	return mac, nil
}
