// Package origin implements the browser Origin policy shared by the HTTP API
// and the signaling WebSocket upgrade.
package origin

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// NormalizeHeader validates and normalizes a browser Origin header.
//
// It returns scheme://host[:port] and the host[:port] part used for same-host
// comparisons. Default ports are dropped. The opaque origin "null" is returned
// as-is with an empty host.
func NormalizeHeader(originHeader string) (normalizedOrigin string, host string, ok bool) {
	trimmed := strings.TrimSpace(originHeader)
	if trimmed == "" {
		return "", "", false
	}
	if trimmed == "null" {
		return "null", "", true
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", "", false
	}
	if u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return "", "", false
	}
	if u.Path != "" && u.Path != "/" {
		return "", "", false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", "", false
	}

	host, ok = normalizeAuthority(u.Host, scheme)
	if !ok {
		return "", "", false
	}
	return scheme + "://" + host, host, true
}

// IsAllowed reports whether a normalized origin may talk to requestHost.
//
// A non-empty allowedOrigins list is matched exactly ("*" matches anything).
// Otherwise only same host:port is allowed. The scheme is not compared since
// TLS may be terminated in front of the relay.
func IsAllowed(normalizedOrigin, originHost, requestHost string, allowedOrigins []string) bool {
	if len(allowedOrigins) > 0 {
		for _, allowed := range allowedOrigins {
			if allowed == "*" || allowed == normalizedOrigin {
				return true
			}
		}
		return false
	}

	var scheme string
	switch {
	case strings.HasPrefix(normalizedOrigin, "http://"):
		scheme = "http"
	case strings.HasPrefix(normalizedOrigin, "https://"):
		scheme = "https"
	default:
		return false
	}

	reqHost, ok := normalizeAuthority(strings.ToLower(strings.TrimSpace(requestHost)), scheme)
	if !ok {
		return false
	}
	return originHost == reqHost
}

// Check applies the policy to r. Requests without an Origin header (non
// browser clients such as the peer CLI) are always allowed and report
// present=false.
func Check(r *http.Request, allowedOrigins []string) (normalizedOrigin string, present bool, allowed bool) {
	header := strings.TrimSpace(r.Header.Get("Origin"))
	if header == "" {
		return "", false, true
	}
	normalized, host, ok := NormalizeHeader(header)
	if !ok {
		return "", true, false
	}
	return normalized, true, IsAllowed(normalized, host, r.Host, allowedOrigins)
}

func normalizeAuthority(rawHost, scheme string) (string, bool) {
	rawHostname, rawPort, ok := splitHostPort(rawHost)
	if !ok {
		return "", false
	}
	hostname := strings.ToLower(rawHostname)
	if hostname == "" {
		return "", false
	}

	var port uint64
	if rawPort != "" {
		n, err := strconv.ParseUint(rawPort, 10, 16)
		if err != nil || n == 0 {
			return "", false
		}
		port = n
	}
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		port = 0
	}

	host := hostname
	if strings.Contains(hostname, ":") {
		host = "[" + hostname + "]"
	}
	if port != 0 {
		host += ":" + strconv.FormatUint(port, 10)
	}
	return host, true
}

// splitHostPort splits host[:port]. IPv6 literals are returned without
// brackets; the port is not validated.
func splitHostPort(rawHost string) (hostname, port string, ok bool) {
	if rawHost == "" {
		return "", "", false
	}

	if strings.HasPrefix(rawHost, "[") {
		end := strings.IndexByte(rawHost, ']')
		if end < 0 {
			return "", "", false
		}
		hostname = rawHost[1:end]
		rest := rawHost[end+1:]
		if rest == "" {
			return hostname, "", true
		}
		if !strings.HasPrefix(rest, ":") || len(rest) == 1 {
			return "", "", false
		}
		return hostname, rest[1:], true
	}

	switch strings.Count(rawHost, ":") {
	case 0:
		return rawHost, "", true
	case 1:
		h, p, _ := strings.Cut(rawHost, ":")
		if h == "" || p == "" {
			return "", "", false
		}
		return h, p, true
	default:
		// Unbracketed IPv6 literals are not valid authorities.
		return "", "", false
	}
}
