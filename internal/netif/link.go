package netif

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// WirelessInterfaces lists wireless devices in kernel index order.
func (s *System) WirelessInterfaces() ([]string, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	var names []string
	for _, link := range links {
		name := link.Attrs().Name
		if s.isWireless(name) {
			names = append(names, name)
		}
	}
	return names, nil
}

func (s *System) isWireless(name string) bool {
	for _, marker := range []string{"wireless", "phy80211"} {
		if _, err := os.Stat(filepath.Join(s.sysfs, name, marker)); err == nil {
			return true
		}
	}
	return false
}

// Exists reports whether the kernel knows the interface.
func (s *System) Exists(iface string) bool {
	_, err := netlink.LinkByName(iface)
	return err == nil
}

// HasDefaultRoute reports whether the main routing table holds an IPv4
// default route leaving through iface, including multipath routes with a
// nexthop on it.
func (s *System) HasDefaultRoute(iface string) (bool, error) {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup %s: %w", iface, err)
	}
	index := link.Attrs().Index

	routes, err := netlink.RouteListFiltered(netlink.FAMILY_V4, &netlink.Route{Table: unix.RT_TABLE_MAIN}, netlink.RT_FILTER_TABLE)
	if err != nil {
		return false, fmt.Errorf("list routes: %w", err)
	}
	for _, route := range routes {
		if !isDefaultRoute(route) {
			continue
		}
		if route.LinkIndex == index {
			return true, nil
		}
		for _, hop := range route.MultiPath {
			if hop.LinkIndex == index {
				return true, nil
			}
		}
	}
	return false, nil
}

func isDefaultRoute(route netlink.Route) bool {
	if route.Dst == nil {
		return true
	}
	ones, _ := route.Dst.Mask.Size()
	return ones == 0 && route.Dst.IP.IsUnspecified()
}

// Address returns the first IPv4 address of iface in CIDR form, or "" when
// none is assigned.
func (s *System) Address(iface string) (string, error) {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", iface, err)
	}
	addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return "", fmt.Errorf("list addresses: %w", err)
	}
	for _, addr := range addrs {
		if addr.IPNet != nil {
			return addr.IPNet.String(), nil
		}
	}
	return "", nil
}

// SetLinkDown administratively disables iface.
func (s *System) SetLinkDown(iface string) error {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", iface, err)
	}
	if err := netlink.LinkSetDown(link); err != nil {
		return fmt.Errorf("set %s down: %w", iface, err)
	}
	return nil
}

// SetLinkUp administratively enables iface.
func (s *System) SetLinkUp(iface string) error {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", iface, err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("set %s up: %w", iface, err)
	}
	return nil
}
