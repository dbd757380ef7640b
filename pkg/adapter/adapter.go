package adapter

import "strings"

// DefaultModelPrefix is prepended to provider-native model ids when they
// are listed to the host.
const DefaultModelPrefix = "openrouter/"

// Adapter converts host messages, tools and model metadata to and from
// provider wire shapes. The zero value uses no prefix.
type Adapter struct {
	// Prefix is added to native ids by ToHostModelID and stripped by
	// ToProviderModelID.
	Prefix string
}

// New returns an Adapter using the given model id prefix.
func New(prefix string) Adapter {
	return Adapter{Prefix: prefix}
}

// ToProviderModelID strips the host prefix from id. Ids without the prefix
// pass through unchanged.
func (a Adapter) ToProviderModelID(id string) string {
	if a.Prefix == "" {
		return id
	}
	return strings.TrimPrefix(id, a.Prefix)
}

// ToHostModelID prepends the host prefix to a native id.
func (a Adapter) ToHostModelID(nativeID string) string {
	return a.Prefix + nativeID
}
