package router

import (
	"net"
	"strings"
)

// LANPrefix returns the first three octets of host followed by a dot, so
// that appending a rule's target octet yields the LAN address. host may carry
// a port. ok is false when host is not an IPv4 literal.
func LANPrefix(host string) (prefix string, ok bool) {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	ip := net.ParseIP(host).To4()
	if ip == nil {
		return "", false
	}
	s := ip.String()
	return s[:strings.LastIndexByte(s, '.')+1], true
}
