package scope

// Category describes where a discovered domain sits relative to the target.
type Category string

const (
	// CategoryFirstParty marks domains owned by the target application.
	CategoryFirstParty Category = "first_party"
	// CategoryExternal marks third-party domains (CDNs, analytics, SaaS APIs).
	CategoryExternal Category = "external"
)

// Rules configures domain classification.
type Rules struct {
	// AllowedDomains are treated as first-party in addition to the target
	// host and its registrable domain.
	AllowedDomains []string
	// ExcludePatterns are regular expressions for URLs that should never be
	// fetched (logout links, binary downloads).
	ExcludePatterns []string
}
