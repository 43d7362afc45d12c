package config

// Configuration is a read-only key lookup used to parametrize defaults.
// The second result reports whether the key was present.
type Configuration interface {
	Bool(key string) (bool, bool)
	Int(key string) (int, bool)
	String(key string) (string, bool)
}

// Keys understood by the protocol data units and sessions.
const (
	KeyEthernetDestination = "Protocols.Ethernet.Destination"
	KeyEthernetSource      = "Protocols.Ethernet.Source"
	KeyEthernetVLAN        = "Protocols.Ethernet.VLAN"
	KeyIpv4Source          = "Protocols.Ipv4.Source"
	KeyIpv4Destination     = "Protocols.Ipv4.Destination"
	KeyIpv4TTL             = "Protocols.Ipv4.TTL"
	KeyIcmpIdentifier      = "Protocols.Icmp.Identifier"
	KeySessionInterface    = "Session.Interface"
)

type empty struct{}

func (empty) Bool(string) (bool, bool)     { return false, false }
func (empty) Int(string) (int, bool)       { return 0, false }
func (empty) String(string) (string, bool) { return "", false }

// Empty returns a configuration without any keys.
func Empty() Configuration { return empty{} }
