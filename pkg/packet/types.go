package packet

import "fmt"

// EtherType identifies the payload protocol of an Ethernet frame. Values up
// to MaxEthernetLength are a payload length instead.
type EtherType uint16

const (
	EtherTypeIPv4 EtherType = 0x0800
	EtherTypeARP  EtherType = 0x0806
	EtherTypeRARP EtherType = 0x8035
	EtherTypeVLAN EtherType = 0x8100
	EtherTypeIPv6 EtherType = 0x86DD
)

// MaxEthernetLength is the largest EtherType value read as a payload length.
const MaxEthernetLength = 1500

func (t EtherType) String() string {
	switch t {
	case EtherTypeIPv4:
		return "IPv4"
	case EtherTypeARP:
		return "ARP"
	case EtherTypeRARP:
		return "RARP"
	case EtherTypeVLAN:
		return "802.1Q"
	case EtherTypeIPv6:
		return "IPv6"
	}
	if t <= MaxEthernetLength {
		return "Length"
	}
	return fmt.Sprintf("Unknown(0x%04x)", uint16(t))
}

// IPProtocol is the payload protocol number of an IPv4 packet.
type IPProtocol uint8

const (
	IPProtocolICMP IPProtocol = 0x01
	IPProtocolIGMP IPProtocol = 0x02
	IPProtocolTCP  IPProtocol = 0x06
	IPProtocolUDP  IPProtocol = 0x11
)

func (p IPProtocol) String() string {
	switch p {
	case IPProtocolICMP:
		return "ICMP"
	case IPProtocolIGMP:
		return "IGMP"
	case IPProtocolTCP:
		return "TCP"
	case IPProtocolUDP:
		return "UDP"
	}
	return fmt.Sprintf("Unknown(%d)", uint8(p))
}

// IcmpType is the ICMP message type.
type IcmpType uint8

const (
	IcmpEchoReply              IcmpType = 0
	IcmpDestinationUnreachable IcmpType = 3
	IcmpRedirect               IcmpType = 5
	IcmpEchoRequest            IcmpType = 8
	IcmpRouterAdvertisement    IcmpType = 9
	IcmpRouterSolicitation     IcmpType = 10
	IcmpTimeExceeded           IcmpType = 11
	IcmpBadParameter           IcmpType = 12
	IcmpTimestamp              IcmpType = 13
	IcmpTimestampReply         IcmpType = 14
	IcmpExtendedEchoRequest    IcmpType = 42
	IcmpExtendedEchoReply      IcmpType = 43
)

func (t IcmpType) String() string {
	switch t {
	case IcmpEchoReply:
		return "echo reply"
	case IcmpDestinationUnreachable:
		return "destination unreachable"
	case IcmpRedirect:
		return "redirect"
	case IcmpEchoRequest:
		return "echo request"
	case IcmpRouterAdvertisement:
		return "router advertisement"
	case IcmpRouterSolicitation:
		return "router solicitation"
	case IcmpTimeExceeded:
		return "time exceeded"
	case IcmpBadParameter:
		return "bad parameter"
	case IcmpTimestamp:
		return "timestamp"
	case IcmpTimestampReply:
		return "timestamp reply"
	case IcmpExtendedEchoRequest:
		return "extended echo request"
	case IcmpExtendedEchoReply:
		return "extended echo reply"
	}
	return fmt.Sprintf("type %d", uint8(t))
}

// Destination unreachable codes.
const (
	IcmpCodeNetworkUnreachable      uint8 = 0
	IcmpCodeHostUnreachable         uint8 = 1
	IcmpCodeProtocolUnreachable     uint8 = 2
	IcmpCodePortUnreachable         uint8 = 3
	IcmpCodeFragmentationRequired   uint8 = 4
	IcmpCodeSourceRouteFailed       uint8 = 5
	IcmpCodeNetworkUnknown          uint8 = 6
	IcmpCodeHostUnknown             uint8 = 7
	IcmpCodeSourceHostIsolated      uint8 = 8
	IcmpCodeNetworkProhibited       uint8 = 9
	IcmpCodeHostProhibited          uint8 = 10
	IcmpCodeNetworkToS              uint8 = 11
	IcmpCodeHostToS                 uint8 = 12
	IcmpCodeCommunicationProhibited uint8 = 13
	IcmpCodeHostPrecedenceViolation uint8 = 14
	IcmpCodePrecedenceCutoff        uint8 = 15
)

// Redirect codes.
const (
	IcmpCodeRedirectNetwork       uint8 = 0
	IcmpCodeRedirectHost          uint8 = 1
	IcmpCodeRedirectToSAndNetwork uint8 = 2
	IcmpCodeRedirectToSAndHost    uint8 = 3
)

// Time exceeded codes.
const (
	IcmpCodeTTLExpired             uint8 = 0
	IcmpCodeFragmentReassemblyTime uint8 = 1
)

// Bad parameter codes.
const (
	IcmpCodePointerIndicatesError uint8 = 0
	IcmpCodeMissingOption         uint8 = 1
	IcmpCodeBadLength             uint8 = 2
)

// Extended echo reply codes.
const (
	IcmpCodeNoError                        uint8 = 0
	IcmpCodeMalformedQuery                 uint8 = 1
	IcmpCodeNoSuchInterface                uint8 = 2
	IcmpCodeNoSuchTableEntry               uint8 = 3
	IcmpCodeMultipleInterfacesSatisfyQuery uint8 = 4
)
