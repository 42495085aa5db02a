// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package session

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/netip"
	"strings"

	"github.com/samber/oops"

	"github.com/bazaarcore/identity/internal/errkind"
)

// FingerprintPolicy decides how strictly a redeeming device must match the
// device the credential was issued to.
type FingerprintPolicy string

// Fingerprint policies.
const (
	// PolicyStrict requires an identical fingerprint digest.
	PolicyStrict FingerprintPolicy = "strict"

	// PolicyLenient requires the same user-agent family and tolerates one
	// of: an exact user-agent change (a browser update) or a move to another
	// network prefix. Both at once is a mismatch.
	PolicyLenient FingerprintPolicy = "lenient"

	// PolicyOff skips the check.
	PolicyOff FingerprintPolicy = "off"
)

// Network prefix lengths used for lenient matching.
const (
	IPv4PrefixBits = 16
	IPv6PrefixBits = 48
)

// Valid reports whether p is a known policy.
func (p FingerprintPolicy) Valid() bool {
	switch p {
	case PolicyStrict, PolicyLenient, PolicyOff:
		return true
	default:
		return false
	}
}

// DeviceContext is what the caller knows about the presenting device.
type DeviceContext struct {
	// RemoteAddr is the client address, "ip" or "ip:port". Required.
	RemoteAddr string
	// UserAgent is the User-Agent header. Required.
	UserAgent string
	// AcceptLanguage is the Accept-Language header. Optional.
	AcceptLanguage string
}

// Fingerprint is the persisted digest of a DeviceContext. Raw headers and
// addresses are not stored.
type Fingerprint struct {
	NetworkPrefix   string `json:"network_prefix"`
	UserAgentFamily string `json:"user_agent_family"`
	UserAgentDigest string `json:"user_agent_digest"`
	Digest          string `json:"digest"`
}

// NewFingerprint derives the fingerprint of dc. It fails with
// SESSION_INVALID_CONTEXT when a required field is missing or the address
// does not parse.
func NewFingerprint(dc DeviceContext) (Fingerprint, error) {
	errb := oops.Code(errkind.CodeSessionInvalidContext).In("session")

	ua := strings.TrimSpace(dc.UserAgent)
	if ua == "" {
		return Fingerprint{}, errb.With("field", "user_agent").Wrapf(errkind.ErrValidation, "device context has no user agent")
	}
	addr, err := parseRemoteAddr(dc.RemoteAddr)
	if err != nil {
		return Fingerprint{}, errb.With("field", "remote_addr").Wrapf(errkind.ErrValidation, "device context has no usable address: %v", err)
	}

	bits := IPv6PrefixBits
	if addr.Is4() {
		bits = IPv4PrefixBits
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return Fingerprint{}, errb.With("field", "remote_addr").Wrapf(errkind.ErrValidation, "device context address: %v", err)
	}

	return Fingerprint{
		NetworkPrefix:   prefix.String(),
		UserAgentFamily: UserAgentFamily(ua),
		UserAgentDigest: digest(ua),
		Digest:          digest(addr.String(), ua, strings.TrimSpace(dc.AcceptLanguage)),
	}, nil
}

func parseRemoteAddr(raw string) (netip.Addr, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return netip.Addr{}, oops.Errorf("empty address")
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	addr, err := netip.ParseAddr(strings.Trim(raw, "[]"))
	if err != nil {
		return netip.Addr{}, err
	}
	return addr.Unmap().WithZone(""), nil
}

func digest(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// Matches reports whether presented is acceptable for stored under policy.
func (p FingerprintPolicy) Matches(stored, presented Fingerprint) bool {
	switch p {
	case PolicyOff:
		return true
	case PolicyStrict:
		return stored.Digest == presented.Digest
	default:
		if stored.UserAgentFamily != presented.UserAgentFamily {
			return false
		}
		agentChanged := stored.UserAgentDigest != presented.UserAgentDigest
		networkChanged := stored.NetworkPrefix != presented.NetworkPrefix
		return !(agentChanged && networkChanged)
	}
}

// browsers and systems are matched in order; the first hit wins. Edge and
// Opera report Chrome, and Chrome reports Safari, so order matters.
var (
	browsers = []struct{ token, name string }{
		{"edg/", "edge"},
		{"opr/", "opera"},
		{"samsungbrowser/", "samsung"},
		{"firefox/", "firefox"},
		{"fxios/", "firefox"},
		{"crios/", "chrome"},
		{"chrome/", "chrome"},
		{"safari/", "safari"},
		{"okhttp/", "okhttp"},
		{"cfnetwork/", "ios-app"},
	}
	systems = []struct{ token, name string }{
		{"android", "android"},
		{"iphone", "ios"},
		{"ipad", "ios"},
		{"darwin", "ios"},
		{"windows", "windows"},
		{"mac os x", "macos"},
		{"cros", "chromeos"},
		{"linux", "linux"},
	}
)

// UserAgentFamily reduces a User-Agent header to "browser/os". Unknown agents
// fall back to the whole lower-cased header, so two unknown agents only share
// a family when they are identical.
func UserAgentFamily(userAgent string) string {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	browser, system := "", ""
	for _, b := range browsers {
		if strings.Contains(ua, b.token) {
			browser = b.name
			break
		}
	}
	for _, s := range systems {
		if strings.Contains(ua, s.token) {
			system = s.name
			break
		}
	}
	if browser == "" {
		return ua
	}
	if system == "" {
		system = "other"
	}
	return browser + "/" + system
}
