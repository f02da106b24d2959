package domain

import (
	"strings"
	"unicode"
)

var adminPrefixes = []string{"www.", "admin.", "assistant."}

// NormalizeHost reduces a raw domain spelling (URL, host with port, mixed case)
// to a bare lowercase host. With stripAdmin the www/admin/assistant
// subdomain prefixes are removed as well.
func NormalizeHost(raw string, stripAdmin bool) string {
	host := strings.ToLower(strings.TrimSpace(raw))
	if host == "" {
		return ""
	}
	if idx := strings.Index(host, "://"); idx >= 0 {
		host = host[idx+3:]
	}
	if idx := strings.IndexAny(host, "/?#"); idx >= 0 {
		host = host[:idx]
	}
	if idx := strings.LastIndex(host, "@"); idx >= 0 {
		host = host[idx+1:]
	}
	if idx := strings.LastIndex(host, ":"); idx >= 0 {
		host = host[:idx]
	}
	host = sanitizeHost(host)

	for stripAdmin {
		stripped := false
		for _, prefix := range adminPrefixes {
			if strings.HasPrefix(host, prefix) && len(host) > len(prefix) {
				host = host[len(prefix):]
				stripped = true
			}
		}
		if !stripped {
			break
		}
	}
	return host
}

// CanonicalSlug maps a raw domain to the directory name used by the store.
// A marketing host collapses to its first label, anything else to its
// normalised host.
func CanonicalSlug(raw string, marketingHosts []string) string {
	host := NormalizeHost(raw, true)
	if host == "" {
		return ""
	}
	if marketing, ok := matchMarketingHost(host, marketingHosts); ok {
		return FirstLabel(marketing)
	}
	return host
}

// MarketingAliases lists the full host spellings that belong to a marketing
// domain, so directories stored under them can be folded into the slug.
func MarketingAliases(raw string, marketingHosts []string) []string {
	host := NormalizeHost(raw, true)
	marketing, ok := matchMarketingHost(host, marketingHosts)
	if !ok {
		return nil
	}
	return uniqueStrings([]string{marketing, NormalizeHost(raw, false)})
}

// FirstLabel returns the host up to its first dot.
func FirstLabel(host string) string {
	if idx := strings.Index(host, "."); idx > 0 {
		return host[:idx]
	}
	return host
}

func matchMarketingHost(host string, marketingHosts []string) (string, bool) {
	if host == "" {
		return "", false
	}
	for _, candidate := range marketingHosts {
		normalized := NormalizeHost(candidate, true)
		if normalized == "" {
			continue
		}
		if host == normalized || host == FirstLabel(normalized) {
			return normalized, true
		}
	}
	return "", false
}

func sanitizeHost(host string) string {
	var b strings.Builder
	b.Grow(len(host))
	lastDash := false
	for _, r := range host {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	out := strings.Trim(b.String(), "-.")
	for strings.Contains(out, "..") {
		out = strings.ReplaceAll(out, "..", ".")
	}
	return out
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
