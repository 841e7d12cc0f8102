package network

import (
	"fmt"
	"net"
	"os"
	"regexp"
)

// HostInfo identifies the machine telemetry is reported from.
type HostInfo struct {
	Hostname string
	IP       string   // reported address, empty when the host has no IPv4
	AllIPs   []string // every non-loopback IPv4 address, in interface order
}

// DetectHost resolves the host identity. nameOverride replaces os.Hostname when set;
// ipPattern, when set, picks the first local IPv4 matching it instead of the first one found.
func DetectHost(nameOverride, ipPattern string) (*HostInfo, error) {
	var re *regexp.Regexp
	if ipPattern != "" {
		var err error
		re, err = regexp.Compile(ipPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid IP pattern %q: %w", ipPattern, err)
		}
	}

	ips, err := ipv4Addresses()
	if err != nil {
		return nil, fmt.Errorf("failed to detect IPs: %w", err)
	}

	info := &HostInfo{
		Hostname: nameOverride,
		IP:       selectIP(ips, re),
		AllIPs:   ips,
	}
	if info.Hostname == "" {
		info.Hostname, err = os.Hostname()
		if err != nil {
			info.Hostname = "unknown"
		}
	}
	return info, nil
}

// selectIP returns the first address matching re, falling back to the first address.
func selectIP(ips []string, re *regexp.Regexp) string {
	if re != nil {
		for _, ip := range ips {
			if re.MatchString(ip) {
				return ip
			}
		}
	}
	if len(ips) > 0 {
		return ips[0]
	}
	return ""
}

// ipv4Addresses returns all non-loopback IPv4 addresses of interfaces that are up.
func ipv4Addresses() ([]string, error) {
	var ips []string

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() || ip.To4() == nil {
				continue
			}
			ips = append(ips, ip.String())
		}
	}

	return ips, nil
}
