package localfs

import "context"

// StaticMarketingDomains serves a fixed marketing host list from config.
type StaticMarketingDomains []string

func (s StaticMarketingDomains) MarketingDomains(context.Context) ([]string, error) {
	out := make([]string, len(s))
	copy(out, s)
	return out, nil
}
