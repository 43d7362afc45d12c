package scenario

import (
	"encoding/hex"
	"time"

	"nts/pkg/config"
	"nts/pkg/message"
	"nts/pkg/packet"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// WriteParams describes the frame a write step sends.
type WriteParams struct {
	// Layers to stack, outermost first: ethernet, ipv4, icmp.
	Layers []string `mapstructure:"layers"`
	// Payload appended as a generic unit, as text or as hex with HexPayload.
	Payload    string `mapstructure:"payload"`
	HexPayload bool   `mapstructure:"hex_payload"`
	// Sequence numbers ICMP echo requests by iteration.
	Sequence bool `mapstructure:"sequence"`
	// Config overrides the scenario config for this step only.
	Config map[string]any `mapstructure:"config"`
}

// ReadParams filters what a read step keeps.
type ReadParams struct {
	// Layers, when set, is the exact tag list a message must have to count.
	Layers []string `mapstructure:"layers"`
	// Stop ends the read once this many messages counted.
	Stop int `mapstructure:"stop"`
}

type SleepParams struct {
	Duration time.Duration `mapstructure:"duration"`
}

func decodeParams(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return errors.Wrap(err, "mapstructure.NewDecoder")
	}
	if err := dec.Decode(in); err != nil {
		return errors.Wrap(err, "mapstructure.Decode")
	}
	return nil
}

// BuildMessage stacks the requested layers with defaults from cfg and
// chains the EtherType, protocol and total length fields.
func (p *WriteParams) BuildMessage(cfg config.Configuration) (*message.Message, error) {
	if len(p.Config) > 0 {
		overrides := config.Map{}
		flatten("", p.Config, overrides)
		cfg = config.NewComposite(cfg, overrides)
	}

	var payload []byte
	if p.HexPayload {
		var err error
		if payload, err = hex.DecodeString(p.Payload); err != nil {
			return nil, errors.Wrap(err, "hex.DecodeString")
		}
	} else {
		payload = []byte(p.Payload)
	}

	m := message.New()
	var (
		eth *packet.Ethernet
		ip  *packet.Ipv4
	)
	for _, layer := range p.Layers {
		switch layer {
		case packet.TagEthernet:
			eth = packet.NewEthernet().Configure(cfg)
			if _, ok := cfg.Int(config.KeyEthernetVLAN); ok {
				eth.AddVlanTag(*packet.NewVlanTag().Configure(cfg))
			}
			m.Add(eth)
		case packet.TagIpv4:
			ip = packet.NewIpv4().Configure(cfg)
			if eth != nil {
				eth.SetEtherType(packet.EtherTypeIPv4)
			}
			m.Add(ip)
		case packet.TagIcmp:
			if ip != nil {
				ip.Protocol = uint8(packet.IPProtocolICMP)
			}
			m.Add(packet.NewIcmpEcho(0, 0).Configure(cfg))
		default:
			return nil, errors.Errorf("unknown layer %q", layer)
		}
	}
	if len(payload) > 0 {
		m.Add(packet.NewGeneric(payload))
	}

	if ip != nil {
		after := 0
		seen := false
		for _, u := range m.Units() {
			if seen {
				after += u.Size()
			}
			if u == packet.DataUnit(ip) {
				seen = true
			}
		}
		ip.TotalLength = uint16(packet.Ipv4HeaderSize + after)
		ip.ComputeChecksum()
	}
	return m, nil
}
