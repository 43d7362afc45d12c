package packet

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// MaxGenericSize bounds a single Generic decode. It mirrors the Ethernet MTU
// but is deliberately not tied to any session setting.
const MaxGenericSize = 1500

// Generic is an opaque blob, used for payloads and for anything no
// registered parser recognises.
type Generic struct {
	Data []byte
}

func NewGeneric(data []byte) *Generic {
	return &Generic{Data: data}
}

func (g *Generic) Encode(w io.Writer) error {
	if len(g.Data) == 0 {
		return nil
	}
	return writeAll(w, g.Data, "generic.Encode")
}

// Decode reads up to MaxGenericSize bytes, stopping early when the stream is exhausted.
func (g *Generic) Decode(r io.Reader) error {
	data, err := io.ReadAll(io.LimitReader(r, MaxGenericSize))
	g.Data = data
	if err != nil {
		return errors.Wrap(err, "generic.Decode")
	}
	return nil
}

func (g *Generic) Tag() string { return TagGeneric }

func (g *Generic) Size() int { return len(g.Data) }

func (g *Generic) String() string {
	var b bytes.Buffer
	b.WriteString("[Generic]\n")
	b.WriteString(fmt.Sprintf("\tSize: %d bytes\n", len(g.Data)))
	return b.String()
}
