package domain

// ChainDescription is an ordered list of node records from which a chain is built.
type ChainDescription struct {
	// Name identifies the description in a repository
	Name string

	// Author is free-form attribution
	Author string

	// MaxActiveNodes limits how many enabled nodes run per frame, 0 for no limit
	MaxActiveNodes int

	// Nodes are processed in order
	Nodes []NodeRecord
}

// NodeRecord describes one node of a chain.
type NodeRecord struct {
	// Type is the registry key (e.g., "blur", "shift")
	Type string

	// ID is the node id; empty ids are generated when the chain is built
	ID string

	// Enabled is nil when the record does not say, which means enabled
	Enabled *bool

	// Parameters are coerced through the node's parameter specs
	Parameters map[string]ParamValue

	// Script is a shorthand for the node's primary script parameter
	Script string
}

// IsEnabled reports the effective enabled flag.
func (r NodeRecord) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}
