package dictionary

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// Postgres identifiers are limited to 63 bytes; edge names are shortened well
// before that to leave room for the tmp_ staging prefix.
const maxEdgeTableName = 40

// TableMapping resolves one dictionary association to its physical tables.
// SrcClass/DstClass are the CamelCase logical type names, SrcTable/DstTable
// the vertex tables on either side, and TableName the edge table itself.
type TableMapping struct {
	SrcClass    string
	DstClass    string
	SrcTable    string
	DstTable    string
	TableName   string
	Label       string
	SrcDstAssoc string
	DstSrcAssoc string
}

// Mappings is the full set of association mappings derived from a dictionary.
type Mappings []TableMapping

// buildMappings flattens every link of every schema into one mapping entry.
// A logical type appears in as many entries as it has associations.
func buildMappings(schemas []Schema) Mappings {
	mappings := Mappings{}
	for _, schema := range schemas {
		for _, link := range flattenLinks(schema.Links) {
			if link.TargetType == "" {
				continue
			}
			label := link.Label
			if label == "" {
				label = link.Name
			}
			mappings = append(mappings, TableMapping{
				SrcClass:    Camelize(schema.ID),
				DstClass:    Camelize(link.TargetType),
				SrcTable:    VertexTableName(schema.ID),
				DstTable:    VertexTableName(link.TargetType),
				TableName:   EdgeTableName(schema.ID, label, link.TargetType),
				Label:       label,
				SrcDstAssoc: link.Name,
				DstSrcAssoc: link.Backref,
			})
		}
	}
	return mappings
}

func flattenLinks(links []Link) []Link {
	flat := make([]Link, 0, len(links))
	for _, link := range links {
		if len(link.Subgroup) > 0 {
			flat = append(flat, flattenLinks(link.Subgroup)...)
			continue
		}
		flat = append(flat, link)
	}
	return flat
}

// VertexTable returns the physical vertex table for a logical type, matching
// either side of any association entry case-insensitively. The second return
// is false when the dictionary does not know the type.
func (m Mappings) VertexTable(logicalType string) (string, bool) {
	for _, mapping := range m {
		if strings.EqualFold(mapping.DstClass, logicalType) {
			return mapping.DstTable, true
		}
		if strings.EqualFold(mapping.SrcClass, logicalType) {
			return mapping.SrcTable, true
		}
	}
	return "", false
}

// EdgeTable returns the mapping for the association from srcClass to the
// destination logical type. The destination is camelized first because
// exports may carry either naming convention ("Patient" or "patient").
func (m Mappings) EdgeTable(srcClass, dstName string) (TableMapping, bool) {
	dstClass := Camelize(dstName)
	for _, mapping := range m {
		if mapping.SrcClass == srcClass && mapping.DstClass == dstClass {
			return mapping, true
		}
	}
	return TableMapping{}, false
}

// Camelize converts a snake_case label to its CamelCase class name.
// Already-camelized input passes through unchanged.
func Camelize(label string) string {
	parts := strings.Split(label, "_")
	var b strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// VertexTableName derives the vertex table for a label: node_ plus the label
// lowercased with underscores removed.
func VertexTableName(label string) string {
	return "node_" + squash(label)
}

// EdgeTableName derives the edge table for an association: edge_ plus the
// squashed source label, edge label, and destination label. Names that exceed
// the length budget collapse to a hash of the full name plus per-word
// initials, so distinct long associations stay distinct.
func EdgeTableName(srcLabel, label, dstLabel string) string {
	name := fmt.Sprintf("edge_%s%s%s", squash(srcLabel), squash(label), squash(dstLabel))
	if len(name) <= maxEdgeTableName {
		return name
	}
	sum := md5.Sum([]byte(name))
	return fmt.Sprintf("edge_%s_%s%s%s",
		hex.EncodeToString(sum[:])[:8],
		initials(srcLabel), initials(label), initials(dstLabel))
}

// squash lowercases a label and strips its underscores.
func squash(label string) string {
	return strings.ToLower(strings.ReplaceAll(label, "_", ""))
}

// initials takes the first letter of each underscore-separated word, capped
// at two characters.
func initials(label string) string {
	var b strings.Builder
	for _, part := range strings.Split(strings.ToLower(label), "_") {
		if part == "" {
			continue
		}
		b.WriteString(part[:1])
	}
	s := b.String()
	if len(s) > 2 {
		s = s[:2]
	}
	return s
}
