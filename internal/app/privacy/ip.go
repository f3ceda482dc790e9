package privacy

import (
	"net/netip"
	"strings"
)

const (
	visibleV6 = 4
	sealSep   = "~"
)

// IPEnvelope is the split form of an address: a coarse visible part plus the sealed rest.
type IPEnvelope struct {
	Masked       string
	Prefix       string
	SuffixCipher string
	Hash         string

	visible string
}

// Sealed is the storage form: the visible part, a separator, then the sealed remainder.
func (e IPEnvelope) Sealed() string {
	if e.SuffixCipher == "" {
		return ""
	}
	return e.visible + sealSep + e.SuffixCipher
}

// NormalizeIP trims the address and unwraps IPv4-mapped IPv6 forms.
func NormalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ip
	}
	return addr.Unmap().WithZone("").String()
}

// MaskIP keeps the first two octets of an IPv4 address, or the first characters of anything else.
func MaskIP(ip string) string {
	ip = NormalizeIP(ip)
	if ip == "" {
		return ""
	}
	if prefix, _, ok := splitV4(ip); ok {
		return prefix + ".*.*"
	}
	return head(ip) + "***"
}

// EncryptIP splits ip into its visible and sealed parts and hashes the normalized address.
// An empty ip yields a zero envelope.
func (c *Cipher) EncryptIP(ip, salt string) (IPEnvelope, error) {
	ip = NormalizeIP(ip)
	if ip == "" {
		return IPEnvelope{}, nil
	}

	env := IPEnvelope{Hash: Hash(ip, salt), Masked: MaskIP(ip)}

	var rest string
	if prefix, suffix, ok := splitV4(ip); ok {
		env.Prefix = prefix
		env.visible = prefix + "."
		rest = suffix
	} else {
		env.visible = head(ip)
		rest = ip[len(env.visible):]
		if rest == "" {
			env.visible = ""
			rest = ip
		}
	}

	sealed, err := c.Encrypt(rest)
	if err != nil {
		return IPEnvelope{}, err
	}
	env.SuffixCipher = sealed
	return env, nil
}

// OpenIP recovers the cleartext address from a stored value.
// Whole-value envelopes are opened directly and values that were never sealed pass through.
func (c *Cipher) OpenIP(stored string) (string, bool) {
	if stored == "" {
		return "", false
	}
	if IsEncrypted(stored) {
		return c.Decrypt(stored)
	}

	idx := strings.LastIndex(stored, sealSep)
	if idx < 0 {
		return stored, true
	}
	rest, ok := c.Decrypt(stored[idx+len(sealSep):])
	if !ok {
		return "", false
	}
	return stored[:idx] + rest, true
}

func splitV4(ip string) (prefix, suffix string, ok bool) {
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() {
		return "", "", false
	}
	parts := strings.Split(addr.String(), ".")
	return parts[0] + "." + parts[1], parts[2] + "." + parts[3], true
}

func head(s string) string {
	if len(s) <= visibleV6 {
		return s
	}
	return s[:visibleV6]
}
