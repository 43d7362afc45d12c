package message

import (
	"bytes"
	"fmt"
	"io"

	"nts/pkg/packet"

	"github.com/pkg/errors"
)

// Message is an ordered stack of data units. Insertion order is wire order.
// Tags need not be unique; lookups return the first match.
type Message struct {
	units []packet.DataUnit
}

func New(units ...packet.DataUnit) *Message {
	m := &Message{}
	for _, u := range units {
		m.Add(u)
	}
	return m
}

func (m *Message) Add(unit packet.DataUnit) *Message {
	m.units = append(m.units, unit)
	return m
}

// Remove drops the first unit tagged tag.
func (m *Message) Remove(tag string) *Message {
	for i, u := range m.units {
		if u.Tag() == tag {
			m.units = append(m.units[:i], m.units[i+1:]...)
			break
		}
	}
	return m
}

// Get returns the first unit tagged tag, or nil.
func (m *Message) Get(tag string) packet.DataUnit {
	for _, u := range m.units {
		if u.Tag() == tag {
			return u
		}
	}
	return nil
}

func (m *Message) Has(tag string) bool {
	return m.Get(tag) != nil
}

func (m *Message) Units() []packet.DataUnit {
	units := make([]packet.DataUnit, len(m.units))
	copy(units, m.units)
	return units
}

func (m *Message) Len() int { return len(m.units) }

func (m *Message) Tags() []string {
	tags := make([]string, 0, len(m.units))
	for _, u := range m.units {
		tags = append(tags, u.Tag())
	}
	return tags
}

// Size is the sum of the unit sizes.
func (m *Message) Size() int {
	n := 0
	for _, u := range m.units {
		n += u.Size()
	}
	return n
}

func (m *Message) Encode(w io.Writer) error {
	for _, u := range m.units {
		if err := u.Encode(w); err != nil {
			return errors.Wrapf(err, "encode %s", u.Tag())
		}
	}
	return nil
}

func (m *Message) Bytes() ([]byte, error) {
	b := bytes.NewBuffer(make([]byte, 0, m.Size()))
	err := m.Encode(b)
	return b.Bytes(), err
}

// Decode replaces the units with the result of parsing r from an empty context.
func (m *Message) Decode(r io.Reader, registry *Registry) {
	m.units = registry.Parse(r, packet.Context{})
}

// Parse builds a message from raw bytes.
func Parse(data []byte, registry *Registry) *Message {
	m := &Message{}
	m.Decode(bytes.NewReader(data), registry)
	return m
}

// String renders the protocol stack and total size.
func (m *Message) String() string {
	var b bytes.Buffer
	b.WriteString("[Message]\n\tProtocols:")
	for _, tag := range m.Tags() {
		b.WriteString(" ")
		b.WriteString(tag)
	}
	b.WriteString(fmt.Sprintf("\n\tSize: %d bytes\n", m.Size()))
	return b.String()
}

// Verbose renders every unit.
func (m *Message) Verbose() string {
	var b bytes.Buffer
	b.WriteString("[Message]\n")
	for _, u := range m.units {
		b.WriteString(u.String())
	}
	return b.String()
}

// Summary renders the message as a single tcpdump-like line.
func (m *Message) Summary() (string, error) {
	out, err := packet.Format(m.units)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
