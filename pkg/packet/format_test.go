package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_EchoRequest(t *testing.T) {
	eth := NewEthernet().SetEtherType(EtherTypeIPv4)
	require.NoError(t, eth.SetSource("02:00:00:00:00:01"))
	require.NoError(t, eth.SetDestination("02:00:00:00:00:02"))
	eth.AddVlanTag(*NewVlanTag().SetVID(10))

	ip := NewIpv4()
	ip.Protocol = uint8(IPProtocolICMP)
	require.NoError(t, ip.SetSource("10.0.0.1"))
	require.NoError(t, ip.SetDestination("10.0.0.2"))
	ip.ComputeChecksum()

	units := []DataUnit{eth, ip, NewIcmpEcho(7, 3), NewGeneric(make([]byte, 10))}

	out, err := Format(units)
	require.NoError(t, err)
	assert.Equal(t,
		"02:00:00:00:00:01 > 02:00:00:00:00:02, vlan 10, p 0, ethertype IPv4 (0x0800), length 56"+
			": 10.0.0.1 > 10.0.0.2: ttl 64, id 0, proto ICMP (1), length 38"+
			", 10.0.0.1 > 10.0.0.2: ICMP echo request, id 7, seq 3, length 18"+
			", payload 10",
		string(out))
}

func TestFormat_BadChecksumAndRaw(t *testing.T) {
	ip := NewIpv4()
	ip.TTL = 3

	out, err := Format([]DataUnit{NewEthernet().SetEtherType(EtherTypeIPv4), ip})
	require.NoError(t, err)
	assert.Contains(t, string(out), "bad cksum")

	out, err = Format([]DataUnit{NewGeneric([]byte{1, 2})})
	require.NoError(t, err)
	assert.Equal(t, "raw, length 2", string(out))
}

func TestFormat_IcmpWithoutIpv4(t *testing.T) {
	_, err := Format([]DataUnit{NewEthernet(), NewIcmp()})
	assert.Error(t, err)
}
