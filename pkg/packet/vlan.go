package packet

import (
	"encoding/binary"
	"fmt"
	"io"

	"nts/pkg/config"
)

// VlanTagSize is TPID(2) + TCI(2).
const VlanTagSize = 4

// TCI layout: PCP(3) | DEI(1) | VID(12).
const (
	tciPCPShift = 13
	tciDEIShift = 12
	tciPCPMask  = 0x07
	tciDEIMask  = 0x01
	tciVIDMask  = 0x0FFF
)

// VlanTag is an IEEE 802.1Q tag.
type VlanTag struct {
	ProtocolIdentifier uint16
	ControlInformation uint16
}

func NewVlanTag() *VlanTag {
	return &VlanTag{ProtocolIdentifier: uint16(EtherTypeVLAN)}
}

// Configure applies Protocols.Ethernet.VLAN when present.
func (v *VlanTag) Configure(cfg config.Configuration) *VlanTag {
	if id, ok := cfg.Int(config.KeyEthernetVLAN); ok {
		v.SetVID(uint16(id))
	}
	return v
}

func (v *VlanTag) PCP() uint8 {
	return uint8(v.ControlInformation>>tciPCPShift) & tciPCPMask
}

func (v *VlanTag) DEI() uint8 {
	return uint8(v.ControlInformation>>tciDEIShift) & tciDEIMask
}

func (v *VlanTag) VID() uint16 {
	return v.ControlInformation & tciVIDMask
}

func (v *VlanTag) SetPCP(pcp uint8) *VlanTag {
	v.ControlInformation = (v.ControlInformation & 0x1FFF) | uint16(pcp&tciPCPMask)<<tciPCPShift
	return v
}

func (v *VlanTag) SetDEI(dei uint8) *VlanTag {
	v.ControlInformation = (v.ControlInformation & 0xEFFF) | uint16(dei&tciDEIMask)<<tciDEIShift
	return v
}

func (v *VlanTag) SetVID(vid uint16) *VlanTag {
	v.ControlInformation = (v.ControlInformation & 0xF000) | (vid & tciVIDMask)
	return v
}

func (v *VlanTag) Encode(w io.Writer) error {
	var buf [VlanTagSize]byte
	binary.BigEndian.PutUint16(buf[0:2], v.ProtocolIdentifier)
	binary.BigEndian.PutUint16(buf[2:4], v.ControlInformation)
	return writeAll(w, buf[:], "vlan.Encode")
}

func (v *VlanTag) Decode(r io.Reader) error {
	var buf [VlanTagSize]byte
	err := readFull(r, buf[:], "vlan.Decode")
	v.ProtocolIdentifier = binary.BigEndian.Uint16(buf[0:2])
	v.ControlInformation = binary.BigEndian.Uint16(buf[2:4])
	return err
}

// decodeControl reads only the TCI; the TPID was already consumed as the
// enclosing frame's EtherType.
func (v *VlanTag) decodeControl(r io.Reader) error {
	var buf [2]byte
	err := readFull(r, buf[:], "vlan.decodeControl")
	v.ProtocolIdentifier = uint16(EtherTypeVLAN)
	v.ControlInformation = binary.BigEndian.Uint16(buf[:])
	return err
}

func (v *VlanTag) Tag() string { return TagVlan }

func (v *VlanTag) Size() int { return VlanTagSize }

func (v *VlanTag) String() string {
	return fmt.Sprintf("[VLAN Tag]\n\tPCP: %d DEI: %d VID: %d\n", v.PCP(), v.DEI(), v.VID())
}
