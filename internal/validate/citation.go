package validate

import (
	"net/url"
	"strings"

	"github.com/ppiankov/provenance-radar/internal/model"
)

// CitationClassifier sorts event citations into authority tiers
type CitationClassifier struct {
	primary   []string
	secondary []string
	explicit  map[string]model.AuthorityTier
}

// NewCitationClassifier creates a classifier. A nil config uses the defaults.
func NewCitationClassifier(config *model.AuthorityConfig) *CitationClassifier {
	if config == nil {
		config = &model.DefaultConfig().Authority
	}

	c := &CitationClassifier{
		explicit: make(map[string]model.AuthorityTier),
	}
	for _, d := range config.PrimaryDomains {
		c.primary = append(c.primary, strings.ToLower(d))
	}
	for _, d := range config.SecondaryDomains {
		c.secondary = append(c.secondary, strings.ToLower(d))
	}
	for host, tier := range config.DomainMap {
		c.explicit[strings.ToLower(host)] = parseTierString(tier)
	}

	return c
}

// Classify returns the tier of a source_ref. Refs that are not http(s) URLs,
// such as inferred or linked refs and free-text citations, are unknown.
func (c *CitationClassifier) Classify(ref string) model.AuthorityTier {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.TierUnknown
	}

	parsed, err := url.Parse(ref)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Hostname() == "" {
		return model.TierUnknown
	}
	host := strings.ToLower(parsed.Hostname())

	if tier, ok := c.explicit[host]; ok {
		return tier
	}
	if matchesDomain(host, c.primary) {
		return model.TierPrimary
	}
	if matchesDomain(host, c.secondary) {
		return model.TierSecondary
	}

	// Government, academic and museum hosts are primary records
	for _, suffix := range []string{".gov", ".edu", ".museum", ".ac.uk", ".gouv.fr"} {
		if strings.HasSuffix(host, suffix) {
			return model.TierPrimary
		}
	}

	return model.TierTertiary
}

// Annotate returns a copy of events with Authority set from each source_ref
func (c *CitationClassifier) Annotate(events []model.Event) []model.Event {
	out := make([]model.Event, len(events))
	for i, ev := range events {
		ev.Authority = c.Classify(ev.SourceRef).String()
		out[i] = ev
	}
	return out
}

// matchesDomain reports whether host is one of domains or a subdomain of one
func matchesDomain(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// parseTierString converts a tier string to AuthorityTier
func parseTierString(tier string) model.AuthorityTier {
	switch strings.ToLower(tier) {
	case "primary", "1":
		return model.TierPrimary
	case "secondary", "2":
		return model.TierSecondary
	case "unknown", "0":
		return model.TierUnknown
	default:
		return model.TierTertiary
	}
}
