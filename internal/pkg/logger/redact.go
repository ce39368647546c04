package logger

import "strings"

// RedactEmail masks an email address for safe logging. The first two
// characters of the local part survive ("john.doe@example.com" becomes
// "jo***@example.com"); local parts of two characters or fewer are masked
// entirely. Anything that does not look like an address becomes "***@***".
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactIP masks a requester address captured from an engagement event.
// IPv4 keeps the first two octets ("203.0.113.9" becomes "203.0.x.x"),
// IPv6 keeps the leading segment. A port suffix from RemoteAddr is dropped
// along with the rest.
func RedactIP(addr string) string {
	if addr == "" {
		return ""
	}
	if strings.Contains(addr, ":") && strings.Count(addr, ":") > 1 {
		// IPv6
		if idx := strings.Index(addr, ":"); idx > 0 {
			return addr[:idx] + ":x:x"
		}
		return "x:x:x"
	}
	host := addr
	if idx := strings.LastIndex(addr, ":"); idx > 0 {
		host = addr[:idx]
	}
	octets := strings.Split(host, ".")
	if len(octets) != 4 {
		return "***"
	}
	return octets[0] + "." + octets[1] + ".x.x"
}
