package repositories

// ScopeFilter narrows list queries to the rows the caller may see. It is
// resolved per request from the caller's role and current memberships and
// applied as SQL predicates, never by post-filtering in memory.
type ScopeFilter struct {
	// All disables narrowing entirely (admin and manager roles).
	All bool
	// ClientIDs restricts rows to the given clients (agent role, or the
	// affiliate's own client for policy reads).
	ClientIDs []string
	// AffiliateID restricts claim rows to the caller's own affiliate record.
	AffiliateID string
}

// Empty reports whether the filter can match any row at all. A non-All filter
// with no client and no affiliate resolves to an empty result set, not to an
// unscoped query.
func (f ScopeFilter) Empty() bool {
	return !f.All && len(f.ClientIDs) == 0 && f.AffiliateID == ""
}
