// Package packet implements the protocol data units understood by nts and
// the parsers that decode them from a byte stream one layer at a time.
package packet

import (
	"io"

	"github.com/pkg/errors"
)

// Protocol tags.
const (
	TagGeneric  = "generic"
	TagEthernet = "ethernet"
	TagVlan     = "vlan"
	TagIpv4     = "ipv4"
	TagIcmp     = "icmp"
)

// DataUnit is one layer's worth of structured bytes.
//
// Encode writes exactly Size() bytes. Decode consumes the same layout and
// keeps whatever it managed to read when the stream runs out, reporting the
// exhaustion as an error the caller may ignore. Only Generic shrinks on a
// short read; fixed-header units keep reporting their full header size.
type DataUnit interface {
	Encode(w io.Writer) error
	Decode(r io.Reader) error
	Tag() string
	Size() int
	String() string
}

// Checksummer is implemented by units carrying a checksum computed on demand.
type Checksummer interface {
	ComputeChecksum()
	IsChecksumValid() bool
}

// readFull fills buf from r. On a short read the tail of buf keeps its
// previous contents and the returned error wraps io.ErrUnexpectedEOF or io.EOF.
func readFull(r io.Reader, buf []byte, what string) error {
	_, err := io.ReadFull(r, buf)
	if err != nil {
		return errors.Wrap(err, what)
	}
	return nil
}

func writeAll(w io.Writer, buf []byte, what string) error {
	n, err := w.Write(buf)
	if err != nil {
		return errors.Wrap(err, what)
	}
	if n != len(buf) {
		return errors.Wrap(io.ErrShortWrite, what)
	}
	return nil
}
