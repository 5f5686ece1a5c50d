package auth

import (
	"fmt"
	"strings"

	"github.com/tjfontaine/ragchat-gateway/internal/domain"
)

// FilterBuilder builds the OData filter expression applied to retrieval
// calls: the caller's category exclusion plus, when document-level access
// control is enabled, clauses restricting results to documents visible to the
// authenticated principal.
type FilterBuilder struct {
	useAccessControl bool
}

// NewFilterBuilder creates a filter builder. When useAccessControl is false,
// only the category exclusion is applied and auth claims are ignored.
func NewFilterBuilder(useAccessControl bool) *FilterBuilder {
	return &FilterBuilder{useAccessControl: useAccessControl}
}

// BuildFilter returns the filter expression for one retrieval call, or the
// empty string when no restriction applies.
func (b *FilterBuilder) BuildFilter(overrides *domain.Overrides, authClaims map[string]any) string {
	var filters []string

	if overrides != nil && overrides.ExcludeCategory != "" {
		escaped := strings.ReplaceAll(overrides.ExcludeCategory, "'", "''")
		filters = append(filters, fmt.Sprintf("category ne '%s'", escaped))
	}

	if b.useAccessControl {
		var security []string
		if oids := claimValues(authClaims, "oids"); len(oids) > 0 {
			security = append(security, fmt.Sprintf("oids/any(g:search.in(g, '%s'))", strings.Join(oids, ",")))
		}
		if groups := claimValues(authClaims, "groups"); len(groups) > 0 {
			security = append(security, fmt.Sprintf("groups/any(g:search.in(g, '%s'))", strings.Join(groups, ",")))
		}
		if len(security) > 0 {
			filters = append(filters, "("+strings.Join(security, " or ")+")")
		}
	}

	return strings.Join(filters, " and ")
}

// claimValues extracts a string list claim, tolerating both []string and the
// []any produced by JSON decoding.
func claimValues(claims map[string]any, key string) []string {
	if claims == nil {
		return nil
	}
	switch v := claims[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}
