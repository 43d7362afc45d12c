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

// Ipv4HeaderSize is the size of an IPv4 header without options.
const Ipv4HeaderSize = 20

const (
	ipv4DefaultVersionIHL = 0x45
	ipv4DefaultTTL        = 64
)

// Ipv4 is an IPv4 header (RFC 791) without options.
type Ipv4 struct {
	VersionIHL     uint8
	DSCPECN        uint8
	TotalLength    uint16
	Identification uint16
	FlagsOffset    uint16
	TTL            uint8
	Protocol       uint8
	Checksum       uint16
	Source         [4]byte
	Destination    [4]byte
}

// NewIpv4 returns a header with version 4, IHL 5, total length 20, TTL 64,
// payload protocol UDP and a valid checksum.
func NewIpv4() *Ipv4 {
	p := &Ipv4{
		VersionIHL:  ipv4DefaultVersionIHL,
		TotalLength: Ipv4HeaderSize,
		TTL:         ipv4DefaultTTL,
		Protocol:    uint8(IPProtocolUDP),
	}
	p.ComputeChecksum()
	return p
}

// Configure applies Protocols.Ipv4.Source, Destination and TTL when present
// and recomputes the checksum.
func (p *Ipv4) Configure(cfg config.Configuration) *Ipv4 {
	if src, ok := cfg.String(config.KeyIpv4Source); ok {
		_ = p.SetSource(src)
	}
	if dst, ok := cfg.String(config.KeyIpv4Destination); ok {
		_ = p.SetDestination(dst)
	}
	if ttl, ok := cfg.Int(config.KeyIpv4TTL); ok {
		p.TTL = uint8(ttl)
	}
	p.ComputeChecksum()
	return p
}

func (p *Ipv4) Version() uint8 { return p.VersionIHL >> 4 }
func (p *Ipv4) IHL() uint8     { return p.VersionIHL & 0x0F }
func (p *Ipv4) DSCP() uint8    { return p.DSCPECN >> 2 }
func (p *Ipv4) ECN() uint8     { return p.DSCPECN & 0x03 }
func (p *Ipv4) Flags() uint8   { return uint8(p.FlagsOffset >> 13) }

func (p *Ipv4) FragmentOffset() uint16 { return p.FlagsOffset & 0x1FFF }

func (p *Ipv4) SetVersion(version uint8) *Ipv4 {
	p.VersionIHL = (p.VersionIHL & 0x0F) | (version << 4)
	return p
}

func (p *Ipv4) SetIHL(ihl uint8) *Ipv4 {
	p.VersionIHL = (p.VersionIHL & 0xF0) | (ihl & 0x0F)
	return p
}

func (p *Ipv4) SetDSCP(dscp uint8) *Ipv4 {
	p.DSCPECN = (p.DSCPECN & 0x03) | (dscp << 2)
	return p
}

func (p *Ipv4) SetECN(ecn uint8) *Ipv4 {
	p.DSCPECN = (p.DSCPECN & 0xFC) | (ecn & 0x03)
	return p
}

func (p *Ipv4) SetFlags(flags uint8) *Ipv4 {
	p.FlagsOffset = (p.FlagsOffset & 0x1FFF) | uint16(flags&0x07)<<13
	return p
}

func (p *Ipv4) SetFragmentOffset(offset uint16) *Ipv4 {
	p.FlagsOffset = (p.FlagsOffset & 0xE000) | (offset & 0x1FFF)
	return p
}

func (p *Ipv4) PayloadProtocol() IPProtocol { return IPProtocol(p.Protocol) }

func (p *Ipv4) SourceAddr() net.IP { return net.IP(p.Source[:]) }

func (p *Ipv4) DestinationAddr() net.IP { return net.IP(p.Destination[:]) }

func (p *Ipv4) SetSource(addr string) error {
	ip, err := parseIPv4(addr)
	if err != nil {
		return err
	}
	p.Source = ip
	return nil
}

func (p *Ipv4) SetDestination(addr string) error {
	ip, err := parseIPv4(addr)
	if err != nil {
		return err
	}
	p.Destination = ip
	return nil
}

// headerSum adds every 16-bit header word except the checksum, folding carries.
func (p *Ipv4) headerSum() uint32 {
	sum := uint32(p.VersionIHL)<<8 | uint32(p.DSCPECN)
	sum += uint32(p.TotalLength)
	sum += uint32(p.Identification)
	sum += uint32(p.FlagsOffset)
	sum += uint32(p.TTL)<<8 | uint32(p.Protocol)
	sum += uint32(binary.BigEndian.Uint16(p.Source[0:2]))
	sum += uint32(binary.BigEndian.Uint16(p.Source[2:4]))
	sum += uint32(binary.BigEndian.Uint16(p.Destination[0:2]))
	sum += uint32(binary.BigEndian.Uint16(p.Destination[2:4]))
	return foldCarry(sum)
}

func (p *Ipv4) ComputeChecksum() {
	p.Checksum = ^uint16(p.headerSum())
}

func (p *Ipv4) IsChecksumValid() bool {
	return foldCarry(p.headerSum()+uint32(p.Checksum)) == 0xFFFF
}

func (p *Ipv4) Encode(w io.Writer) error {
	var buf [Ipv4HeaderSize]byte
	buf[0] = p.VersionIHL
	buf[1] = p.DSCPECN
	binary.BigEndian.PutUint16(buf[2:4], p.TotalLength)
	binary.BigEndian.PutUint16(buf[4:6], p.Identification)
	binary.BigEndian.PutUint16(buf[6:8], p.FlagsOffset)
	buf[8] = p.TTL
	buf[9] = p.Protocol
	binary.BigEndian.PutUint16(buf[10:12], p.Checksum)
	copy(buf[12:16], p.Source[:])
	copy(buf[16:20], p.Destination[:])
	return writeAll(w, buf[:], "ipv4.Encode")
}

func (p *Ipv4) Decode(r io.Reader) error {
	var buf [Ipv4HeaderSize]byte
	err := readFull(r, buf[:], "ipv4.Decode")
	p.VersionIHL = buf[0]
	p.DSCPECN = buf[1]
	p.TotalLength = binary.BigEndian.Uint16(buf[2:4])
	p.Identification = binary.BigEndian.Uint16(buf[4:6])
	p.FlagsOffset = binary.BigEndian.Uint16(buf[6:8])
	p.TTL = buf[8]
	p.Protocol = buf[9]
	p.Checksum = binary.BigEndian.Uint16(buf[10:12])
	copy(p.Source[:], buf[12:16])
	copy(p.Destination[:], buf[16:20])
	return err
}

func (p *Ipv4) Tag() string { return TagIpv4 }

func (p *Ipv4) Size() int { return Ipv4HeaderSize }

func (p *Ipv4) String() string {
	var b bytes.Buffer
	b.WriteString("[IPv4]\n")
	b.WriteString(fmt.Sprintf("\tVersion: %d IHL: %d\n", p.Version(), p.IHL()))
	b.WriteString(fmt.Sprintf("\tDSCP: %d ECN: %d\n", p.DSCP(), p.ECN()))
	b.WriteString(fmt.Sprintf("\tTotal Length: %d\n", p.TotalLength))
	b.WriteString(fmt.Sprintf("\tIdentification: %d\n", p.Identification))
	b.WriteString(fmt.Sprintf("\tFlags: %d Offset: %d\n", p.Flags(), p.FragmentOffset()))
	b.WriteString(fmt.Sprintf("\tTTL: %d\n", p.TTL))
	b.WriteString(fmt.Sprintf("\tProtocol: 0x%x\n", p.Protocol))
	b.WriteString(fmt.Sprintf("\tChecksum: 0x%x\n", p.Checksum))
	b.WriteString(fmt.Sprintf("\tSource Address: %s\n", p.SourceAddr()))
	b.WriteString(fmt.Sprintf("\tDestination Address: %s\n", p.DestinationAddr()))
	return b.String()
}

func foldCarry(sum uint32) uint32 {
	for sum > 0xFFFF {
		sum = (sum >> 16) + (sum & 0xFFFF)
	}
	return sum
}

func parseIPv4(addr string) ([4]byte, error) {
	var out [4]byte
	ip := net.ParseIP(addr).To4()
	if ip == nil {
		return out, errors.Errorf("not an IPv4 address: %q", addr)
	}
	copy(out[:], ip)
	return out, nil
}
