package domain

import "net/netip"

// CanonicalAddress rewrites IPv4-mapped IPv6 addresses ("::ffff:1.2.3.4") to
// their IPv4 form. Anything else is returned unchanged, including values that
// are not IP addresses at all.
func CanonicalAddress(address string) string {
	ip, err := netip.ParseAddr(address)
	if err != nil || !ip.Is4In6() {
		return address
	}
	return ip.Unmap().String()
}
