package locator

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"wavelift/internal/services"
)

var (
	domainPattern = regexp.MustCompile(`(?i)^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}\.?$`)
	ipv4Pattern   = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
)

// ValidateURL checks the shape of a locator: http or https scheme, a domain
// name, localhost, or IP literal host, an optional numeric port, and an
// optional path without whitespace.
func ValidateURL(raw string) error {
	fail := func(msg string) error {
		return services.Wrap(services.ErrValidation, "extract", "validate locator", fmt.Sprintf("%s: %q", msg, raw), nil)
	}
	if raw == "" {
		return fail("empty locator")
	}
	if strings.ContainsAny(raw, " \t\r\n") {
		return fail("locator contains whitespace")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fail("unparseable locator")
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fail("unsupported scheme")
	}
	if u.User != nil {
		return fail("credentials in locator")
	}
	host := u.Hostname()
	if !validHost(host) {
		return fail("invalid host")
	}
	if port := u.Port(); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 {
			return fail("invalid port")
		}
	}
	return nil
}

func validHost(host string) bool {
	switch {
	case host == "":
		return false
	case strings.EqualFold(host, "localhost"):
		return true
	case ipv4Pattern.MatchString(host):
		ip := net.ParseIP(host)
		return ip != nil && ip.To4() != nil
	case strings.Contains(host, ":"):
		return net.ParseIP(host) != nil
	default:
		return domainPattern.MatchString(host)
	}
}
