package packet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEthernetParser(t *testing.T) {
	p := EthernetParser{}
	assert.True(t, p.CanParse(Context{}))
	assert.False(t, p.CanParse(Context{CtxGeneric: 1}))

	frame := NewEthernet().SetEtherType(EtherTypeARP)
	var buf bytes.Buffer
	require.NoError(t, frame.Encode(&buf))

	ctx := Context{}
	unit, err := p.Parse(&buf, ctx)
	require.NoError(t, err)
	assert.Equal(t, TagEthernet, unit.Tag())
	assert.Equal(t, Context{CtxEthernet: 1, CtxType: 0x0806}, ctx)
}

func TestIpv4Parser(t *testing.T) {
	p := Ipv4Parser{}
	assert.True(t, p.CanParse(Context{CtxEthernet: 1, CtxType: 0x0800}))
	assert.False(t, p.CanParse(Context{CtxEthernet: 1, CtxType: 0x86DD}))
	assert.False(t, p.CanParse(Context{CtxType: 0x0800}))
	assert.False(t, p.CanParse(Context{}))

	packet := NewIpv4()
	packet.Protocol = uint8(IPProtocolICMP)
	var buf bytes.Buffer
	require.NoError(t, packet.Encode(&buf))

	ctx := Context{CtxEthernet: 1, CtxType: 0x0800}
	unit, err := p.Parse(&buf, ctx)
	require.NoError(t, err)
	assert.Equal(t, TagIpv4, unit.Tag())
	assert.Equal(t, Context{CtxIpv4: 1, CtxProtocol: 1}, ctx, "Context should only hold the IPv4 facts")
}

func TestIcmpParser(t *testing.T) {
	p := IcmpParser{}
	assert.True(t, p.CanParse(Context{CtxIpv4: 1, CtxProtocol: 1}))
	assert.False(t, p.CanParse(Context{CtxIpv4: 1, CtxProtocol: 17}))
	assert.False(t, p.CanParse(Context{CtxEthernet: 1, CtxProtocol: 1}))

	var buf bytes.Buffer
	require.NoError(t, NewIcmpEcho(1, 2).Encode(&buf))

	ctx := Context{CtxIpv4: 1, CtxProtocol: 1}
	unit, err := p.Parse(&buf, ctx)
	require.NoError(t, err)
	assert.Equal(t, TagIcmp, unit.Tag())
	assert.Equal(t, Context{CtxIcmp: 1, CtxType: 8, CtxCode: 0}, ctx)
}

func TestGenericParser(t *testing.T) {
	p := GenericParser{}
	assert.True(t, p.CanParse(Context{}))
	assert.True(t, p.CanParse(Context{CtxIcmp: 1}))

	ctx := Context{CtxIcmp: 1, CtxType: 8}
	unit, err := p.Parse(bytes.NewReader([]byte("hello")), ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, unit.Size())
	assert.Equal(t, Context{CtxGeneric: 1, CtxSize: 5}, ctx)
}
