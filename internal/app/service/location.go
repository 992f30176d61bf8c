package service

import "net"

// LocationFromIP classifies a client IP into a coarse location label.
// No geolocation lookup is performed; public addresses keep their raw
// string as the label.
func LocationFromIP(ip string) string {
	if ip == "" {
		return "Unknown"
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ip
	}
	// IsLoopback covers 127.0.0.0/8, ::1 and IPv4-mapped loopback.
	if parsed.IsLoopback() {
		return "Localhost"
	}
	// IsPrivate covers 10.0.0.0/8, 172.16.0.0/12 and 192.168.0.0/16.
	if parsed.IsPrivate() {
		return "Private Network"
	}
	return ip
}
