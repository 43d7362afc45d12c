package message

import (
	"bytes"
	"testing"

	"nts/pkg/packet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_Accessors(t *testing.T) {
	m := New()
	assert.Zero(t, m.Len())
	assert.Zero(t, m.Size())
	assert.False(t, m.Has(packet.TagEthernet))
	assert.Nil(t, m.Get(packet.TagEthernet))

	eth := packet.NewEthernet()
	ip := packet.NewIpv4()
	first := packet.NewGeneric([]byte{1})
	second := packet.NewGeneric([]byte{2, 3})
	m.Add(eth).Add(first).Add(ip).Add(second)

	assert.Equal(t, []string{"ethernet", "generic", "ipv4", "generic"}, m.Tags())
	assert.Equal(t, 14+1+20+2, m.Size())
	assert.True(t, m.Has(packet.TagIpv4))
	assert.Same(t, first, m.Get(packet.TagGeneric), "Lookup should return the first match")

	m.Remove(packet.TagGeneric)
	assert.Equal(t, []string{"ethernet", "ipv4", "generic"}, m.Tags())
	assert.Same(t, second, m.Get(packet.TagGeneric))

	m.Remove(packet.TagIcmp)
	assert.Equal(t, 3, m.Len())

	units := m.Units()
	units[0] = nil
	assert.NotNil(t, m.Get(packet.TagEthernet), "Units should return a copy")
}

func TestMessage_EncodeDecode(t *testing.T) {
	eth := packet.NewEthernet().SetEtherType(packet.EtherTypeIPv4)
	require.NoError(t, eth.SetDestination("ff:ff:ff:ff:ff:ff"))
	eth.AddVlanTag(*packet.NewVlanTag().SetVID(12))
	ip := packet.NewIpv4()
	ip.Protocol = uint8(packet.IPProtocolICMP)
	ip.TotalLength = 20 + 8 + 4
	ip.ComputeChecksum()

	m := New(eth, ip, packet.NewIcmpEcho(10, 20), packet.NewGeneric([]byte{9, 8, 7, 6}))

	var buf bytes.Buffer
	require.NoError(t, m.Encode(&buf))
	assert.Equal(t, m.Size(), buf.Len())

	decoded := New(packet.NewGeneric([]byte{0}))
	decoded.Decode(&buf, NewRegistry(WithStandardParsers()))

	assert.Equal(t, m.Tags(), decoded.Tags(), "Decode should replace previous units")
	assert.Equal(t, m.Size(), decoded.Size())
	assert.Equal(t, eth, decoded.Get(packet.TagEthernet))
	assert.Equal(t, ip, decoded.Get(packet.TagIpv4))

	reencoded, err := decoded.Bytes()
	require.NoError(t, err)
	original, err := m.Bytes()
	require.NoError(t, err)
	assert.Equal(t, original, reencoded)
}

func TestMessage_Render(t *testing.T) {
	m := New(packet.NewEthernet(), packet.NewGeneric([]byte{1, 2, 3}))
	assert.Equal(t, "[Message]\n\tProtocols: ethernet generic\n\tSize: 17 bytes\n", m.String())

	verbose := m.Verbose()
	assert.Contains(t, verbose, "[Ethernet]")
	assert.Contains(t, verbose, "[Generic]")

	summary, err := m.Summary()
	require.NoError(t, err)
	assert.Contains(t, summary, "length 17")
}
