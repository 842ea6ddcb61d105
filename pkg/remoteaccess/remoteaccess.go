/*
Package remoteaccess is a pure planner: given a server address and a set of
hostnames it produces the hosts-file and DNS-zone fragments an operator
copies onto another machine to reach this host's services by name. It
performs no network I/O; the only host inspection is enumerating local
interfaces to propose a default address.
*/
package remoteaccess

import (
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/miekg/dns"
)

// CanonicalHostnames is the exact, fixed set of service hostnames this
// orchestrator maps to the local host. Sorted for deterministic output.
func CanonicalHostnames() []string {
	names := []string{
		"raven.lan", "n8n.lan", "openwebui.lan", "studio.lan", "comfyui.lan",
		"whisper.lan", "va.lan", "nocodb.lan", "crawl4ai.lan", "qdrant.lan",
		"lmstudio.lan", "kokoro.lan", "traefik.lan", "flowise.lan",
	}
	sort.Strings(names)
	return names
}

// Plan is the full set of artifacts produced for one (address, hostnames)
// pair.
type Plan struct {
	ServerAddress        string
	PosixHostsFragment   string
	WindowsHostsFragment string
	DNSZoneFragment      string
	Instructions         string
}

// WindowsHostsPath is the fixed, documented location of the Windows hosts
// file; included verbatim in the instructions text.
const WindowsHostsPath = `%SystemRoot%\System32\drivers\etc\hosts`

// PlanFor builds the remote-access artifacts for serverAddress and hostnames.
// hostnames is sorted internally; duplicates are not removed.
func PlanFor(serverAddress string, hostnames []string) Plan {
	sorted := append([]string(nil), hostnames...)
	sort.Strings(sorted)

	return Plan{
		ServerAddress:        serverAddress,
		PosixHostsFragment:   posixHostsFragment(serverAddress, sorted),
		WindowsHostsFragment: posixHostsFragment(serverAddress, sorted), // identical content to posix
		DNSZoneFragment:      dnsZoneFragment(serverAddress, sorted),
		Instructions:         instructions(serverAddress),
	}
}

func posixHostsFragment(address string, hostnames []string) string {
	var b strings.Builder
	for _, h := range hostnames {
		fmt.Fprintf(&b, "%s\t%s\n", address, h)
	}
	return b.String()
}

// dnsZoneFragment renders one authoritative A record per hostname using
// miekg/dns to format the resource record the same way the standard
// zone-file syntax would, guaranteeing each line is RFC 1035-valid.
func dnsZoneFragment(address string, hostnames []string) string {
	ip := net.ParseIP(address)
	var b strings.Builder
	for _, h := range hostnames {
		rr := &dns.A{
			Hdr: dns.RR_Header{
				Name:   dns.Fqdn(h),
				Rrtype: dns.TypeA,
				Class:  dns.ClassINET,
				Ttl:    300,
			},
			A: ip,
		}
		b.WriteString(rr.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func instructions(address string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Remote access plan for server address %s\n\n", address)
	b.WriteString("POSIX (Linux/macOS):\n")
	b.WriteString("  Append the posix hosts fragment to /etc/hosts (requires sudo).\n\n")
	b.WriteString("Windows:\n")
	fmt.Fprintf(&b, "  Append the windows hosts fragment to %s\n", WindowsHostsPath)
	b.WriteString("  Requires an elevated (Administrator) editor session.\n\n")
	b.WriteString("DNS resolver:\n")
	b.WriteString("  Load the DNS zone fragment into a resolver that treats each line as\n")
	b.WriteString("  an independent, authoritative A record.\n")
	return b.String()
}

// DefaultServerAddress picks the first non-loopback IPv4 address bound to
// an interface that is up, breaking ties deterministically by interface
// name. Returns "" if no such address exists.
func DefaultServerAddress() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("remoteaccess: list interfaces: %w", err)
	}
	sort.Slice(ifaces, func(i, j int) bool { return ifaces[i].Name < ifaces[j].Name })

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil {
				continue
			}
			return ip4.String(), nil
		}
	}
	return "", nil
}
