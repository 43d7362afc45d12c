package packet

import (
	"bytes"
	"fmt"
)

type Formatter interface {
	Format([]DataUnit) ([]byte, error)
}

// Format renders a stack of units as a single tcpdump-like line.
func Format(units []DataUnit) ([]byte, error) {
	f := formatter{}
	err := f.format(units)
	if err != nil {
		return nil, err
	}
	return f.Bytes(), nil
}

type formatter struct {
	bytes.Buffer
}

func (f *formatter) format(units []DataUnit) error {
	for i, unit := range units {
		var under DataUnit
		if i > 0 {
			under = units[i-1]
		}
		if err := f.formatUnit(under, unit, remaining(units[i:])); err != nil {
			return err
		}
	}
	return nil
}

func (f *formatter) formatUnit(under, unit DataUnit, length int) error {
	switch u := unit.(type) {
	case *Ethernet:
		f.formatEthernet(u, length)
	case *VlanTag:
		f.formatVLAN(u)
	case *Ipv4:
		f.formatIpv4(u, length)
	case *Icmp:
		ipv4, ok := under.(*Ipv4)
		if !ok {
			return fmt.Errorf("the underlying unit of ICMP is not IPv4")
		}
		f.formatIcmp(ipv4, u, length)
	case *Generic:
		f.formatGeneric(under, u)
	default:
		f.WriteString(fmt.Sprintf(": %s, length %d", unit.Tag(), unit.Size()))
	}
	return nil
}

func (f *formatter) formatEthernet(eth *Ethernet, length int) {
	f.WriteString(fmt.Sprintf("%s > %s", eth.SourceAddr(), eth.DestinationAddr()))
	for i := range eth.Tags {
		f.formatVLAN(&eth.Tags[i])
	}
	if eth.IsLength() {
		f.WriteString(fmt.Sprintf(", 802.3, length %d", length))
		return
	}
	f.WriteString(fmt.Sprintf(", ethertype %s (0x%04x), length %d", eth.EtherType(), eth.TypeOrLength, length))
}

func (f *formatter) formatVLAN(tag *VlanTag) {
	f.WriteString(fmt.Sprintf(", vlan %d, p %d", tag.VID(), tag.PCP()))
	if tag.DEI() != 0 {
		f.WriteString(", DEI")
	}
}

func (f *formatter) formatIpv4(ipv4 *Ipv4, length int) {
	f.WriteString(fmt.Sprintf(": %s > %s: ttl %d, id %d, proto %s (%d), length %d",
		ipv4.SourceAddr(), ipv4.DestinationAddr(), ipv4.TTL, ipv4.Identification, ipv4.PayloadProtocol(), ipv4.Protocol, length))
	if !ipv4.IsChecksumValid() {
		f.WriteString(fmt.Sprintf(", bad cksum 0x%04x", ipv4.Checksum))
	}
}

func (f *formatter) formatIcmp(ipv4 *Ipv4, icmp *Icmp, length int) {
	f.WriteString(fmt.Sprintf(", %s > %s: ICMP %s", ipv4.SourceAddr(), ipv4.DestinationAddr(), icmp.MessageType()))
	switch icmp.MessageType() {
	case IcmpEchoRequest, IcmpEchoReply:
		f.WriteString(fmt.Sprintf(", id %d, seq %d", icmp.Identifier(), icmp.SequenceNumber()))
	case IcmpRedirect:
		f.WriteString(fmt.Sprintf(", gateway %s", icmp.IPAddress()))
	case IcmpDestinationUnreachable:
		if icmp.Code == IcmpCodeFragmentationRequired {
			f.WriteString(fmt.Sprintf(", mtu %d", icmp.NextHopMTU()))
		}
	}
	f.WriteString(fmt.Sprintf(", length %d", length))
}

func (f *formatter) formatGeneric(under DataUnit, g *Generic) {
	if under == nil {
		f.WriteString(fmt.Sprintf("raw, length %d", g.Size()))
		return
	}
	f.WriteString(fmt.Sprintf(", payload %d", g.Size()))
}

func remaining(units []DataUnit) int {
	n := 0
	for _, unit := range units {
		n += unit.Size()
	}
	return n
}
