package packet

import (
	"bytes"
	"testing"

	"nts/pkg/config"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVlanTag_Accessors(t *testing.T) {
	tag := NewVlanTag()
	assert.Equal(t, uint16(0x8100), tag.ProtocolIdentifier)
	assert.Zero(t, tag.PCP())
	assert.Zero(t, tag.DEI())
	assert.Zero(t, tag.VID())

	tag.SetPCP(5).SetDEI(1).SetVID(0xABC)
	assert.Equal(t, uint8(5), tag.PCP())
	assert.Equal(t, uint8(1), tag.DEI())
	assert.Equal(t, uint16(0xABC), tag.VID())
	assert.Equal(t, uint16(0xBABC), tag.ControlInformation)

	// Each setter must leave the other sub-fields alone.
	tag.SetPCP(2)
	assert.Equal(t, uint8(2), tag.PCP())
	assert.Equal(t, uint8(1), tag.DEI())
	assert.Equal(t, uint16(0xABC), tag.VID())

	tag.SetDEI(0)
	assert.Equal(t, uint8(2), tag.PCP())
	assert.Equal(t, uint8(0), tag.DEI())
	assert.Equal(t, uint16(0xABC), tag.VID())

	tag.SetVID(0xFFFF)
	assert.Equal(t, uint8(2), tag.PCP())
	assert.Equal(t, uint8(0), tag.DEI())
	assert.Equal(t, uint16(0xFFF), tag.VID(), "VID should be truncated to 12 bits")
}

func TestVlanTag_AllFieldCombinations(t *testing.T) {
	for pcp := uint8(0); pcp < 8; pcp++ {
		for dei := uint8(0); dei < 2; dei++ {
			for _, vid := range []uint16{0, 1, 0x7FF, 0x800, 0xFFE, 0xFFF} {
				tag := NewVlanTag().SetVID(vid).SetDEI(dei).SetPCP(pcp)

				var buf bytes.Buffer
				require.NoError(t, tag.Encode(&buf))
				require.Equal(t, VlanTagSize, buf.Len())

				var decoded VlanTag
				require.NoError(t, decoded.Decode(&buf))
				assert.Equal(t, pcp, decoded.PCP())
				assert.Equal(t, dei, decoded.DEI())
				assert.Equal(t, vid, decoded.VID())
			}
		}
	}
}

func TestVlanTag_RoundTrip(t *testing.T) {
	tag := NewVlanTag().SetPCP(3).SetVID(100)

	var buf bytes.Buffer
	require.NoError(t, tag.Encode(&buf))
	assert.Equal(t, []byte{0x81, 0x00, 0x60, 0x64}, buf.Bytes())

	decoded := &VlanTag{}
	require.NoError(t, decoded.Decode(&buf))
	if diff := cmp.Diff(tag, decoded); diff != "" {
		t.Errorf("VlanTag round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestVlanTag_Configure(t *testing.T) {
	tag := NewVlanTag().SetPCP(7).Configure(config.Map{config.KeyEthernetVLAN: 42})
	assert.Equal(t, uint16(42), tag.VID())
	assert.Equal(t, uint8(7), tag.PCP())

	tag.Configure(config.Empty())
	assert.Equal(t, uint16(42), tag.VID(), "Absent key should keep the current value")
}
