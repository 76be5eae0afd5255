package probe

import (
	"context"
	"net"
	"strings"
)

// maxShiftWindow bounds the rightward-shift walk at 5 labels (spec §4.2).
const maxShiftWindow = 5

// Resolution is the outcome of a successful rightward-shift walk.
type Resolution struct {
	Domain string
	IPv4   string
}

// Resolver performs authoritative name lookups for the rightward-shift
// walk. A net.Resolver satisfies it; tests substitute a fake.
type Resolver interface {
	LookupHost(ctx context.Context, host string) (addrs []string, err error)
}

// Resolve implements the rightward-shift DNS walk (spec §4.2): given a
// normalized name with labels l1.l2....ln, it attempts authoritative lookups
// starting from the rightmost two labels and extending left one label at a
// time, until a lookup succeeds or the window reaches 5 labels. Success
// yields the leftmost label of the winning shift as the domain, and the
// LAST IPv4 address in the reply. If no shift succeeds, or the replying
// address starts with "127.0.0.", ok is false.
func Resolve(ctx context.Context, r Resolver, name string) (res Resolution, ok bool) {
	labels := strings.Split(name, ".")

	for window := 2; window <= maxShiftWindow && window <= len(labels); window++ {
		shift := labels[len(labels)-window:]
		shiftHost := strings.Join(shift, ".")

		addrs, err := r.LookupHost(ctx, shiftHost)
		if err != nil || len(addrs) == 0 {
			continue
		}

		ipv4 := lastIPv4(addrs)
		if ipv4 == "" {
			continue
		}
		if strings.HasPrefix(ipv4, "127.0.0.") {
			return Resolution{}, false
		}

		return Resolution{Domain: shift[0], IPv4: ipv4}, true
	}

	return Resolution{}, false
}

// lastIPv4 returns the last IPv4 address found in addrs, or "" if none.
func lastIPv4(addrs []string) string {
	last := ""
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil {
			if v4 := ip.To4(); v4 != nil {
				last = v4.String()
			}
		}
	}
	return last
}

// SystemResolver adapts net.DefaultResolver (or a custom *net.Resolver) to
// the Resolver interface.
func SystemResolver() Resolver {
	return net.DefaultResolver
}
