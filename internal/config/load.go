// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/bazaarcore/identity/internal/errkind"
	"github.com/bazaarcore/identity/internal/xdg"
)

// Command-line flags that override config keys.
const (
	FlagConfig            = "config"
	FlagRedisAddr         = "redis-addr"
	FlagMetricsAddr       = "metrics-addr"
	FlagLogFormat         = "log-format"
	FlagLogLevel          = "log-level"
	FlagFingerprintPolicy = "fingerprint-policy"
)

// flagKeys maps override flags to config keys.
var flagKeys = map[string]string{
	FlagRedisAddr:         "redis.addr",
	FlagMetricsAddr:       "metrics.addr",
	FlagLogFormat:         "log.format",
	FlagLogLevel:          "log.level",
	FlagFingerprintPolicy: "session.fingerprint_policy",
}

// RegisterFlags adds the config flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String(FlagConfig, "", "path to the YAML config file")
	fs.String(FlagRedisAddr, d.Redis.Addr, "redis address (host:port)")
	fs.String(FlagMetricsAddr, d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.String(FlagLogFormat, d.Log.Format, "log format (json or text)")
	fs.String(FlagLogLevel, d.Log.Level, "log level (debug, info, warn, error)")
	fs.String(FlagFingerprintPolicy, d.Session.FingerprintPolicy, "remember-me device check (strict, lenient or off)")
}

// Load resolves the configuration from defaults, the file named by the
// --config flag (or path, if non-empty) and changed flags in fs. Without
// either, $XDG_CONFIG_HOME/identity/identity.yaml is used when present. fs may
// be nil. The returned Snapshot is validated.
func Load(path string, fs *pflag.FlagSet) (Snapshot, error) {
	f, err := LoadFile(path, fs)
	if err != nil {
		return Snapshot{}, err
	}
	return f.Snapshot()
}

// LoadFile is Load without building the Snapshot.
func LoadFile(path string, fs *pflag.FlagSet) (File, error) {
	errb := oops.Code(errkind.CodeConfigInvalid).In("config")

	if path == "" && fs != nil {
		if p, err := fs.GetString(FlagConfig); err == nil {
			path = p
		}
	}
	if path == "" {
		path = xdg.FindConfig()
	}

	k := koanf.New(".")
	if path != "" {
		// Read once: the bytes that pass the schema are the bytes loaded.
		data, err := file.Provider(path).ReadBytes()
		if err != nil {
			return File{}, errb.With("path", path).Wrapf(errkind.ErrConfig, "read config file: %v", err)
		}
		if err := ValidateDocument(data); err != nil {
			return File{}, oops.With("path", path).Wrap(err)
		}
		doc, err := yaml.Parser().Unmarshal(data)
		if err != nil {
			return File{}, errb.With("path", path).Wrapf(errkind.ErrConfig, "parse config file: %v", err)
		}
		if err := k.Load(confmap.Provider(doc, ""), nil); err != nil {
			return File{}, errb.With("path", path).Wrapf(errkind.ErrConfig, "load config file: %v", err)
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(fl *pflag.Flag) (string, any) {
			key, ok := flagKeys[fl.Name]
			if !ok || !fl.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(fs, fl)
		})
		if err := k.Load(provider, nil); err != nil {
			return File{}, errb.Wrapf(errkind.ErrConfig, "load flags: %v", err)
		}
	}

	// Collections in the file replace the defaults instead of merging.
	out := Defaults()
	if k.Exists("password.forbidden_patterns") {
		out.Password.ForbiddenPatterns = nil
	}
	if k.Exists("phone.area_codes") {
		out.Phone.AreaCodes = nil
	}
	if k.Exists("phone.use_cases") {
		out.Phone.UseCases = nil
	}
	err := k.UnmarshalWithConf("", &out, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result:           &out,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return File{}, errb.Wrapf(errkind.ErrConfig, "decode config: %v", err)
	}

	if out.Token.SecretFile != "" {
		secret, err := os.ReadFile(out.Token.SecretFile)
		if err != nil {
			return File{}, errb.With("path", out.Token.SecretFile).
				Wrapf(errkind.ErrConfig, "read token secret file: %v", err)
		}
		out.Token.Secret = strings.TrimRight(string(secret), "\r\n")
	}
	return out, nil
}

// Redacted returns a copy of f with secrets masked, for printing.
func (f File) Redacted() File {
	const mask = "<redacted>"
	if f.Token.Secret != "" {
		f.Token.Secret = mask
	}
	if f.Redis.Password != "" {
		f.Redis.Password = mask
	}
	return f
}

func (d Duration) std() time.Duration {
	return time.Duration(d)
}
