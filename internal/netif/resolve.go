package netif

import (
	"fmt"
	"strings"
)

// LinkLister discovers wireless interfaces on the host.
type LinkLister interface {
	WirelessInterfaces() ([]string, error)
}

// ResolveInterface picks the interface to monitor. The environment override
// wins over the explicit name (positional argument or config file), which
// wins over the first wireless device the host reports. It returns an error
// wrapping ErrNoInterface when nothing yields a name.
func ResolveInterface(override, explicit string, lister LinkLister) (string, error) {
	if name := strings.TrimSpace(override); name != "" {
		return name, nil
	}
	if name := strings.TrimSpace(explicit); name != "" {
		return name, nil
	}
	if lister == nil {
		return "", ErrNoInterface
	}
	names, err := lister.WirelessInterfaces()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoInterface, err)
	}
	if len(names) == 0 {
		return "", ErrNoInterface
	}
	return names[0], nil
}
