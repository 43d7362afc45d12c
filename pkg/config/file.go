package config

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const envPrefix = "NTS"

// FileConfiguration reads JSON, YAML or TOML files (chosen by extension).
// Every key can be overridden from the environment, e.g. Protocols.Ipv4.TTL
// by NTS_PROTOCOLS_IPV4_TTL.
type FileConfiguration struct {
	v *viper.Viper
}

func NewFileConfiguration(path string) (*FileConfiguration, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(strings.TrimPrefix(filepath.Ext(path), "."))
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "viper.ReadInConfig %s", path)
	}
	return &FileConfiguration{v: v}, nil
}

func (f *FileConfiguration) Bool(key string) (bool, bool) {
	if !f.v.IsSet(key) {
		return false, false
	}
	b, err := cast.ToBoolE(f.v.Get(key))
	return b, err == nil
}

func (f *FileConfiguration) Int(key string) (int, bool) {
	if !f.v.IsSet(key) {
		return 0, false
	}
	i, err := cast.ToIntE(f.v.Get(key))
	return i, err == nil
}

func (f *FileConfiguration) String(key string) (string, bool) {
	if !f.v.IsSet(key) {
		return "", false
	}
	s, err := cast.ToStringE(f.v.Get(key))
	return s, err == nil
}

// Load opens the configuration at path. A missing or malformed file is
// logged and yields an empty configuration so built-in defaults stay in place.
func Load(path string) Configuration {
	if path == "" {
		return Empty()
	}
	cfg, err := NewFileConfiguration(path)
	if err != nil {
		logrus.WithField("path", path).WithError(err).Warn("Fail to load configuration, using defaults")
		return Empty()
	}
	logrus.WithField("path", path).Debug("Configuration loaded")
	return cfg
}
