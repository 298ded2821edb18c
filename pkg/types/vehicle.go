// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// VehicleContext scopes a search to one machine in the tenant's fleet.
type VehicleContext struct {
	// ID is the tenant's vehicle identifier. Empty means unscoped.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	Make         string `json:"make,omitempty" yaml:"make,omitempty"`
	Model        string `json:"model,omitempty" yaml:"model,omitempty"`
	SerialNumber string `json:"serial_number,omitempty" yaml:"serial_number,omitempty"`
}

// VehicleStatus is the search-configuration state of a vehicle. Only
// StatusSearchReady vehicles are queried against the internal stores;
// anything else routes to the web-only path.
type VehicleStatus string

const (
	StatusSearchReady VehicleStatus = "search_ready"
	StatusPending     VehicleStatus = "pending"
	StatusFailed      VehicleStatus = "failed"
	StatusUnknown     VehicleStatus = "unknown"
)

// CatalogMapping resolves a vehicle to the identifiers each backend
// uses for it. Absence of a mapping means "search unscoped". The
// mapping is externally maintained; the engine assumes it is consistent
// across the structured, semantic, and graph stores.
type CatalogMapping struct {
	VehicleID string `json:"vehicle_id" yaml:"vehicle_id"`

	// ManufacturerAlias and ModelAlias scope the structured and
	// semantic stores.
	ManufacturerAlias string `json:"manufacturer_alias,omitempty" yaml:"manufacturer_alias,omitempty"`
	ModelAlias        string `json:"model_alias,omitempty" yaml:"model_alias,omitempty"`

	// CategoryAlias optionally narrows the structured store further.
	CategoryAlias string `json:"category_alias,omitempty" yaml:"category_alias,omitempty"`

	// Namespace isolates the tenant's slice of the vector index.
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`

	// GraphManufacturerID and GraphModelID are the graph store's node
	// identifiers, distinct from the alias strings above.
	GraphManufacturerID string `json:"graph_manufacturer_id,omitempty" yaml:"graph_manufacturer_id,omitempty"`
	GraphModelID        string `json:"graph_model_id,omitempty" yaml:"graph_model_id,omitempty"`
}

// HasGraphScope reports whether the mapping carries graph-specific
// identifiers usable for a scoped traversal.
func (m *CatalogMapping) HasGraphScope() bool {
	return m != nil && m.GraphManufacturerID != "" && m.GraphModelID != ""
}

// Filter returns the manufacturer/model equality filter for the vector
// index, or nil when the mapping has no aliases.
func (m *CatalogMapping) Filter() map[string]string {
	if m == nil {
		return nil
	}
	f := make(map[string]string)
	if m.ManufacturerAlias != "" {
		f["manufacturer"] = m.ManufacturerAlias
	}
	if m.ModelAlias != "" {
		f["model"] = m.ModelAlias
	}
	if len(f) == 0 {
		return nil
	}
	return f
}

// IntegrationKind names one external integration a tenant may hold
// credentials for.
type IntegrationKind string

const (
	IntegrationVector IntegrationKind = "vector"
	IntegrationGraph  IntegrationKind = "graph"
	IntegrationWeb    IntegrationKind = "web"
	IntegrationLLM    IntegrationKind = "llm"
)

// Credentials holds the connection material for one integration. The
// engine only cares whether a usable client can be built from them;
// acquisition and rotation happen elsewhere.
type Credentials struct {
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`

	// Shared marks platform-owned credentials returned by the
	// with-fallback resolution path.
	Shared bool `json:"shared,omitempty" yaml:"shared,omitempty"`
}
