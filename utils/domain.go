// Package utils holds small request helpers shared by the HTTP layer.
package utils

import (
	"net/http"
	"net/url"
	"strings"
)

// GetDomain returns the registrable part of the caller's origin, e.g.
// "example.com" for "https://dev.example.com:3000". Empty when unknown.
func GetDomain(r *http.Request) string {
	origin := getOrigin(r)
	if origin == "" {
		return ""
	}
	if !strings.HasPrefix(origin, "http") {
		origin = "https://" + origin
	}
	u, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	n := len(parts)
	return parts[n-2] + "." + parts[n-1]
}

func getOrigin(r *http.Request) string {
	if v := r.Header.Get("Origin"); v != "" {
		return v
	}
	return r.Header.Get("Referer")
}
