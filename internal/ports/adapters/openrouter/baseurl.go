package openrouter

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/forPelevin/subcue/internal/faults"
)

const defaultBaseURL = "https://openrouter.ai"

var defaultAllowedHosts = map[string]struct{}{
	"openrouter.ai":     {},
	"api.openrouter.ai": {},
}

func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return strings.TrimRight(baseURL, "/")
}

// ValidateBaseURL rejects base URLs the API key must not be sent to. Plain
// http is accepted only for loopback hosts that are explicitly allowed.
func ValidateBaseURL(baseURL string, allowedHosts []string) error {
	baseURL = normalizeBaseURL(baseURL)
	invalid := func(reason string) error {
		return faults.Wrap(faults.ErrConfiguration, "openrouter base url", fmt.Sprintf("%q: %s", baseURL, reason), nil)
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return faults.Wrap(faults.ErrConfiguration, "openrouter base url", "parse", err)
	}
	switch {
	case !u.IsAbs() || u.Hostname() == "":
		return invalid("absolute URL with host is required")
	case u.User != nil:
		return invalid("userinfo is not allowed")
	case u.RawQuery != "" || u.Fragment != "":
		return invalid("query and fragment are not allowed")
	}

	host := strings.ToLower(u.Hostname())
	allowed := normalizeAllowedHosts(allowedHosts)
	if _, ok := allowed[host]; !ok {
		return invalid(fmt.Sprintf("host %q is not in OPENROUTER_ALLOWED_HOSTS", host))
	}

	switch strings.ToLower(u.Scheme) {
	case "https":
		return nil
	case "http":
		if isLoopback(host) {
			return nil
		}
		return invalid("https is required for non-loopback hosts")
	default:
		return invalid("https is required")
	}
}

func normalizeAllowedHosts(allowedHosts []string) map[string]struct{} {
	out := make(map[string]struct{}, len(allowedHosts))
	for _, h := range allowedHosts {
		v := strings.ToLower(strings.TrimSpace(h))
		v = strings.TrimPrefix(v, "http://")
		v = strings.TrimPrefix(v, "https://")
		v = strings.Trim(v, "/")
		if host, _, err := net.SplitHostPort(v); err == nil {
			v = host
		}
		if v != "" {
			out[v] = struct{}{}
		}
	}
	if len(out) == 0 {
		return defaultAllowedHosts
	}
	return out
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
