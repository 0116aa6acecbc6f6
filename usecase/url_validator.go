package usecase

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// privateRanges are blocked when resolving media URLs, so a post submission
// cannot be used to probe internal services.
var privateRanges = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16", // link-local, cloud metadata
	"::1/128",
	"fc00::/7",
	"fe80::/10",
}

var parsedPrivateRanges []*net.IPNet

func init() {
	for _, cidr := range privateRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in privateRanges: %s", cidr))
		}
		parsedPrivateRanges = append(parsedPrivateRanges, network)
	}
}

// ValidateMediaURL checks that a URL is safe to fetch before the download
// step runs.
func ValidateMediaURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("URL has no host")
	}
	lowerHost := strings.ToLower(host)
	if lowerHost == "localhost" || lowerHost == "metadata.google.internal" {
		return fmt.Errorf("URL host is not allowed: %s", host)
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return fmt.Errorf("cannot resolve host %s: %w", host, err)
	}
	for _, ip := range ips {
		for _, network := range parsedPrivateRanges {
			if network.Contains(ip) {
				return fmt.Errorf("URL resolves to a private/internal address")
			}
		}
	}
	return nil
}
