package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"nts/pkg/config"
)

// IcmpHeaderSize is Type(1) + Code(1) + Checksum(2) + RestOfHeader(4).
const IcmpHeaderSize = 8

// Icmp is an ICMP header. RestOfHeader is read as identifier and sequence
// number, as an IPv4 address or as a next-hop MTU depending on Type.
type Icmp struct {
	Type         uint8
	Code         uint8
	Checksum     uint16
	RestOfHeader uint32
}

func NewIcmp() *Icmp {
	return &Icmp{}
}

// NewIcmpEcho returns an echo request with the given identifier and sequence number.
func NewIcmpEcho(id, seq uint16) *Icmp {
	i := &Icmp{Type: uint8(IcmpEchoRequest)}
	i.SetIdentifier(id).SetSequenceNumber(seq)
	return i
}

// Configure applies Protocols.Icmp.Identifier when present.
func (i *Icmp) Configure(cfg config.Configuration) *Icmp {
	if id, ok := cfg.Int(config.KeyIcmpIdentifier); ok {
		i.SetIdentifier(uint16(id))
	}
	return i
}

func (i *Icmp) MessageType() IcmpType { return IcmpType(i.Type) }

func (i *Icmp) Identifier() uint16 { return uint16(i.RestOfHeader >> 16) }

func (i *Icmp) SequenceNumber() uint16 { return uint16(i.RestOfHeader & 0xFFFF) }

func (i *Icmp) NextHopMTU() uint16 { return uint16(i.RestOfHeader & 0xFFFF) }

func (i *Icmp) IPAddress() net.IP {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, i.RestOfHeader)
	return ip
}

func (i *Icmp) SetIdentifier(id uint16) *Icmp {
	i.RestOfHeader = (i.RestOfHeader & 0x0000FFFF) | uint32(id)<<16
	return i
}

func (i *Icmp) SetSequenceNumber(seq uint16) *Icmp {
	i.RestOfHeader = (i.RestOfHeader & 0xFFFF0000) | uint32(seq)
	return i
}

func (i *Icmp) SetNextHopMTU(mtu uint16) *Icmp {
	i.RestOfHeader = (i.RestOfHeader & 0xFFFF0000) | uint32(mtu)
	return i
}

func (i *Icmp) SetIPAddress(addr string) error {
	ip, err := parseIPv4(addr)
	if err != nil {
		return err
	}
	i.RestOfHeader = binary.BigEndian.Uint32(ip[:])
	return nil
}

// ComputeChecksum is not implemented: the ICMP checksum covers the payload,
// which the header unit does not own. The Checksum field is left untouched.
func (i *Icmp) ComputeChecksum() {}

// IsChecksumValid always reports true, see ComputeChecksum.
func (i *Icmp) IsChecksumValid() bool { return true }

func (i *Icmp) Encode(w io.Writer) error {
	var buf [IcmpHeaderSize]byte
	buf[0] = i.Type
	buf[1] = i.Code
	binary.BigEndian.PutUint16(buf[2:4], i.Checksum)
	binary.BigEndian.PutUint32(buf[4:8], i.RestOfHeader)
	return writeAll(w, buf[:], "icmp.Encode")
}

func (i *Icmp) Decode(r io.Reader) error {
	var buf [IcmpHeaderSize]byte
	err := readFull(r, buf[:], "icmp.Decode")
	i.Type = buf[0]
	i.Code = buf[1]
	i.Checksum = binary.BigEndian.Uint16(buf[2:4])
	i.RestOfHeader = binary.BigEndian.Uint32(buf[4:8])
	return err
}

func (i *Icmp) Tag() string { return TagIcmp }

func (i *Icmp) Size() int { return IcmpHeaderSize }

func (i *Icmp) String() string {
	var b bytes.Buffer
	b.WriteString("[ICMP]\n")
	b.WriteString(fmt.Sprintf("\tType: %d\n", i.Type))
	b.WriteString(fmt.Sprintf("\tCode: %d\n", i.Code))
	b.WriteString(fmt.Sprintf("\tChecksum: 0x%x\n", i.Checksum))
	return b.String()
}
