package capture

import (
	"encoding/binary"
	"syscall"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Both openRawSock and htons are available in
// https://github.com/cilium/ebpf/blob/master/example_sock_elf_test.go.
// MIT license.

func OpenRawSocket(ifIndex int) (int, error) {
	sock, err := syscall.Socket(syscall.AF_PACKET, syscall.SOCK_RAW|syscall.SOCK_NONBLOCK|syscall.SOCK_CLOEXEC, int(htons(syscall.ETH_P_ALL)))
	if err != nil {
		return 0, errors.Wrap(err, "syscall.Socket")
	}

	err = syscall.Bind(sock, &syscall.SockaddrLinklayer{Ifindex: ifIndex, Protocol: htons(syscall.ETH_P_ALL)})
	if err != nil {
		syscall.Close(sock)
		return 0, errors.Wrap(err, "syscall.Bind")
	}
	return sock, nil
}

// Set socket level PROMISC mode
func SetPacketMembership(fd int, ifIndex int32) error {
	return unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, &unix.PacketMreq{Type: unix.PACKET_MR_PROMISC, Ifindex: ifIndex})
}

// Enable PACKET_AUXDATA option for VLAN
func SetPacketAuxData(fd int) error {
	return syscall.SetsockoptInt(fd, syscall.SOL_PACKET, unix.PACKET_AUXDATA, 1)
}

// VlanInfo is the 802.1Q tag the kernel stripped from a received frame.
type VlanInfo struct {
	TPID uint16
	TCI  uint16
}

// ParseVlanAuxData extracts the stripped VLAN tag from PACKET_AUXDATA
// control messages. ok is false when the frame carried no tag.
func ParseVlanAuxData(oob []byte) (info VlanInfo, ok bool, err error) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return info, false, errors.Wrap(err, "unix.ParseSocketControlMessage")
	}

	for _, m := range msgs {
		// tpacket_auxdata: status(4) len(4) snaplen(4) mac(2) net(2) vlan_tci(2) vlan_tpid(2)
		if m.Header.Level != unix.SOL_PACKET || m.Header.Type != unix.PACKET_AUXDATA || len(m.Data) < 20 {
			continue
		}
		status := binary.NativeEndian.Uint32(m.Data[0:4])
		if status&unix.TP_STATUS_VLAN_VALID == 0 {
			continue
		}
		info.TCI = binary.NativeEndian.Uint16(m.Data[16:18])
		info.TPID = syscall.ETH_P_8021Q
		if status&unix.TP_STATUS_VLAN_TPID_VALID != 0 {
			info.TPID = binary.NativeEndian.Uint16(m.Data[18:20])
		}
		return info, true, nil
	}
	return info, false, nil
}

// htons converts the unsigned short integer hostshort from host byte order to network byte order.
func htons(i uint16) uint16 {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, i)
	return *(*uint16)(unsafe.Pointer(&b[0]))
}
