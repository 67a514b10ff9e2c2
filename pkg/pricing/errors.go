package pricing

import "fmt"

// AliasKind distinguishes provider aliases from model aliases.
type AliasKind string

const (
	ProviderAlias AliasKind = "provider_alias"
	ModelAlias    AliasKind = "model_alias"
)

// AliasIntegrityError reports an alias whose target is not in the catalog.
type AliasIntegrityError struct {
	Kind     AliasKind
	Provider string
	Alias    string
	Target   string
}

func (e *AliasIntegrityError) Error() string {
	if e.Kind == ProviderAlias {
		return fmt.Sprintf("provider_alias '%s' points to unknown provider '%s'", e.Alias, e.Target)
	}
	return fmt.Sprintf("provider '%s' has model_alias '%s' pointing to unknown model '%s'",
		e.Provider, e.Alias, e.Target)
}
