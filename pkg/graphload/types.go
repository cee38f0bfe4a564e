// Package graphload bulk-loads exported entity graphs into the relational
// property-graph schema. Vertex records arrive one per line in per-type
// ndjson files; each record carries its outgoing relations. Loading stages
// every batch into a temporary table and merges it into the physical table by
// primary key, so reloading the same export is idempotent.
package graphload

// Vertex is one entity record from an ndjson export file.
type Vertex struct {
	ID        string         `json:"id"`
	Object    map[string]any `json:"object"`
	Name      string         `json:"name"`
	Relations []Relation     `json:"relations"`
}

// Relation is one outgoing edge of a vertex record.
type Relation struct {
	DstID   string `json:"dst_id"`
	DstName string `json:"dst_name"`
	Label   string `json:"label"`
}
