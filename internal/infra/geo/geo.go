// Package geo resolves client addresses to coarse locations. Lookups are best-effort and never fail the caller.
package geo

import (
	"context"
	"net/netip"
	"strings"
)

// Result is the coarse location of one address. Missing upstream fields stay empty.
type Result struct {
	Country  string `json:"country,omitempty"`
	City     string `json:"city,omitempty"`
	Region   string `json:"region,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	ISP      string `json:"isp,omitempty"`
	Loc      string `json:"loc,omitempty"`
}

// Empty reports whether no field was resolved.
func (r *Result) Empty() bool {
	return r == nil || *r == Result{}
}

// Locator looks up an address. A nil result means nothing is known; implementations never return errors.
type Locator interface {
	Lookup(ctx context.Context, ip string) *Result
}

// Nop never resolves anything.
type Nop struct{}

func (Nop) Lookup(context.Context, string) *Result { return nil }

var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// IsPublic reports whether ip is a routable address worth sending to a lookup service.
func IsPublic(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	switch {
	case !addr.IsValid(),
		addr.IsUnspecified(),
		addr.IsLoopback(),
		addr.IsPrivate(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsInterfaceLocalMulticast(),
		addr.IsMulticast(),
		sharedAddressSpace.Contains(addr):
		return false
	}
	return addr.IsGlobalUnicast()
}

func clean(s string) string {
	return strings.TrimSpace(s)
}
