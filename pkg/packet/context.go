package packet

// Context carries the facts decoded from the layer just parsed, e.g.
// {"ethernet": 1, "type": 0x0800}. Each parse step replaces it entirely.
type Context map[string]int

// Context keys.
const (
	CtxEthernet = TagEthernet
	CtxIpv4     = TagIpv4
	CtxIcmp     = TagIcmp
	CtxGeneric  = TagGeneric
	CtxType     = "type"
	CtxProtocol = "protocol"
	CtxCode     = "code"
	CtxSize     = "size"
)

// Reset clears the context and stores the given key/value pairs.
func (c Context) Reset(kv map[string]int) {
	clear(c)
	for k, v := range kv {
		c[k] = v
	}
}

// Has reports whether key is present.
func (c Context) Has(key string) bool {
	_, ok := c[key]
	return ok
}
