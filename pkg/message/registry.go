package message

import (
	"bufio"
	"io"
	"sync"

	"nts/pkg/packet"

	"github.com/sirupsen/logrus"
)

// ProtocolParser decodes one layer from a stream.
//
// CanParse reports whether the parser applies given the facts left by the
// previous layer. Parse consumes one layer and replaces ctx with the facts of
// the layer it decoded. A partially decoded unit is still returned alongside
// the error describing the short read.
type ProtocolParser interface {
	CanParse(ctx packet.Context) bool
	Parse(r io.Reader, ctx packet.Context) (packet.DataUnit, error)
}

type entry struct {
	id     string
	parser ProtocolParser
}

// Registry maps protocol identifiers to parsers and drives the layer-by-layer
// dispatch. Parsers are consulted in registration order.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
	log     *logrus.Entry
}

type registryOpts struct {
	log     *logrus.Entry
	parsers []entry
}

type RegistryOpt func(*registryOpts)

func WithRegistryLogger(log *logrus.Entry) RegistryOpt {
	return func(o *registryOpts) { o.log = log }
}

func WithParser(id string, parser ProtocolParser) RegistryOpt {
	return func(o *registryOpts) { o.parsers = append(o.parsers, entry{id: id, parser: parser}) }
}

// WithStandardParsers registers the ethernet, ipv4 and icmp parsers.
func WithStandardParsers() RegistryOpt {
	return func(o *registryOpts) {
		WithParser(packet.TagEthernet, packet.EthernetParser{})(o)
		WithParser(packet.TagIpv4, packet.Ipv4Parser{})(o)
		WithParser(packet.TagIcmp, packet.IcmpParser{})(o)
	}
}

func NewRegistry(opts ...RegistryOpt) *Registry {
	var o registryOpts
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logrus.NewEntry(logrus.StandardLogger())
	}
	r := &Registry{log: o.log}
	for _, e := range o.parsers {
		r.Add(e.id, e.parser)
	}
	return r
}

// Add registers parser under id. Registering an existing id replaces the
// previous parser in place, keeping its position.
func (r *Registry) Add(id string, parser ProtocolParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].id == id {
			r.entries[i].parser = parser
			return
		}
	}
	r.entries = append(r.entries, entry{id: id, parser: parser})
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].id == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// Get returns the parser registered under id, or nil.
func (r *Registry) Get(id string) ProtocolParser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.id == id {
			return e.parser
		}
	}
	return nil
}

// IDs returns the registered identifiers in dispatch order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		ids = append(ids, e.id)
	}
	return ids
}

func (r *Registry) lookup(ctx packet.Context) (string, ProtocolParser) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.parser.CanParse(ctx) {
			return e.id, e.parser
		}
	}
	return "", nil
}

// Parse decodes the stream into units until it is exhausted. Each step picks
// the first parser accepting the current context. When none does, or a parser
// makes no progress, dispatch stops and the rest of the stream is drained into
// generic units of at most packet.MaxGenericSize bytes, so every input byte
// ends up in some unit. Short reads never abort the parse.
func (r *Registry) Parse(rd io.Reader, ctx packet.Context) []packet.DataUnit {
	if ctx == nil {
		ctx = packet.Context{}
	}
	br, ok := rd.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(rd)
	}
	cr := &countingReader{r: br}

	var units []packet.DataUnit
	for hasMore(br) {
		id, parser := r.lookup(ctx)
		if parser == nil {
			break
		}

		before := cr.n
		unit, err := parser.Parse(cr, ctx)
		if err != nil {
			r.log.WithField("parser", id).WithError(err).Debug("Partial layer decoded")
		}
		if cr.n == before {
			r.log.WithField("parser", id).Debug("Parser made no progress")
			break
		}
		units = append(units, unit)
	}

	for hasMore(br) {
		unit, err := packet.GenericParser{}.Parse(br, ctx)
		if err != nil {
			r.log.WithError(err).Debug("Generic fallback stopped early")
			units = append(units, unit)
			break
		}
		units = append(units, unit)
	}
	return units
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func hasMore(br *bufio.Reader) bool {
	_, err := br.Peek(1)
	return err == nil
}
