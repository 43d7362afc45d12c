package packet

import "io"

// EthernetParser decodes the first layer of a stream: it applies only to an empty context.
type EthernetParser struct{}

func (EthernetParser) CanParse(ctx Context) bool { return len(ctx) == 0 }

func (EthernetParser) Parse(r io.Reader, ctx Context) (DataUnit, error) {
	frame := NewEthernet()
	err := frame.Decode(r)
	ctx.Reset(map[string]int{
		CtxEthernet: 1,
		CtxType:     int(frame.TypeOrLength),
	})
	return frame, err
}

// Ipv4Parser applies after an Ethernet frame whose EtherType is IPv4.
type Ipv4Parser struct{}

func (Ipv4Parser) CanParse(ctx Context) bool {
	return ctx.Has(CtxEthernet) && ctx[CtxType] == int(EtherTypeIPv4)
}

func (Ipv4Parser) Parse(r io.Reader, ctx Context) (DataUnit, error) {
	packet := &Ipv4{}
	err := packet.Decode(r)
	ctx.Reset(map[string]int{
		CtxIpv4:     1,
		CtxProtocol: int(packet.Protocol),
	})
	return packet, err
}

// IcmpParser applies after an IPv4 packet carrying ICMP.
type IcmpParser struct{}

func (IcmpParser) CanParse(ctx Context) bool {
	return ctx.Has(CtxIpv4) && ctx[CtxProtocol] == int(IPProtocolICMP)
}

func (IcmpParser) Parse(r io.Reader, ctx Context) (DataUnit, error) {
	icmp := NewIcmp()
	err := icmp.Decode(r)
	ctx.Reset(map[string]int{
		CtxIcmp: 1,
		CtxType: int(icmp.Type),
		CtxCode: int(icmp.Code),
	})
	return icmp, err
}

// GenericParser accepts any context and consumes up to MaxGenericSize bytes.
type GenericParser struct{}

func (GenericParser) CanParse(Context) bool { return true }

func (GenericParser) Parse(r io.Reader, ctx Context) (DataUnit, error) {
	generic := &Generic{}
	err := generic.Decode(r)
	ctx.Reset(map[string]int{
		CtxGeneric: 1,
		CtxSize:    generic.Size(),
	})
	return generic, err
}
