package scenario

import (
	"os"
	"strings"
	"time"

	"nts/pkg/config"
	"nts/pkg/operation"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Step kinds.
const (
	KindWrite = "write"
	KindRead  = "read"
	KindSleep = "sleep"
)

// Scenario is a list of steps run by one messenger over one session.
type Scenario struct {
	Name    string         `yaml:"name"`
	Session SessionSpec    `yaml:"session"`
	Config  map[string]any `yaml:"config"`
	Steps   []Step         `yaml:"steps"`
}

// SessionSpec selects the transport: raw (iface), pcap (read and/or
// write files) or tcp (addr, TLV framed).
type SessionSpec struct {
	Kind  string `yaml:"kind"`
	Iface string `yaml:"iface"`
	Read  string `yaml:"read"`
	Write string `yaml:"write"`
	Addr  string `yaml:"addr"`
}

type Step struct {
	Name     string         `yaml:"name"`
	Kind     string         `yaml:"kind"`
	Method   string         `yaml:"method"`
	Count    *int           `yaml:"count"`
	Delay    time.Duration  `yaml:"delay"`
	Interval time.Duration  `yaml:"interval"`
	Timeout  time.Duration  `yaml:"timeout"`
	Params   map[string]any `yaml:"params"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "os.ReadFile")
	}
	return Parse(data)
}

func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, errors.Wrap(err, "yaml.Unmarshal")
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) validate() error {
	if len(sc.Steps) == 0 {
		return errors.New("scenario has no steps")
	}
	for i := range sc.Steps {
		st := &sc.Steps[i]
		if st.Name == "" {
			st.Name = st.Kind
		}
		switch st.Kind {
		case KindWrite, KindRead, KindSleep:
		default:
			return errors.Errorf("step %d: unknown kind %q", i, st.Kind)
		}
		if _, err := operation.ParseMethod(strings.ToLower(st.Method)); err != nil {
			return errors.Wrapf(err, "step %d", i)
		}
		if st.Count != nil && *st.Count < 0 {
			return errors.Errorf("step %d: negative count", i)
		}
	}
	return nil
}

// Configuration returns the scenario's config block as a lookup.
func (sc *Scenario) Configuration() config.Configuration {
	m := config.Map{}
	flatten("", sc.Config, m)
	return m
}

// flatten turns nested maps into dotted keys: {Protocols: {Ipv4: {TTL: 1}}}
// becomes Protocols.Ipv4.TTL.
func flatten(prefix string, in map[string]any, out config.Map) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}

func (st *Step) options() []operation.Opt {
	method, _ := operation.ParseMethod(strings.ToLower(st.Method))
	opts := []operation.Opt{
		operation.WithName(st.Name),
		operation.WithMethod(method),
		operation.WithDelay(st.Delay),
		operation.WithInterval(st.Interval),
		operation.WithTimeout(st.Timeout),
	}
	if st.Count != nil {
		opts = append(opts, operation.WithCount(*st.Count))
	}
	return opts
}
