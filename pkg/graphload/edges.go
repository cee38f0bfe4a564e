package graphload

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/aced-idp/metaload/pkg/dictionary"
	"github.com/aced-idp/metaload/pkg/logger"
)

var edgeColumns = []string{"src_id", "dst_id", "acl", "_sysan", "_props", "created"}

func edgeMergeSQL(table string) string {
	return fmt.Sprintf(
		`INSERT INTO %q (src_id, dst_id, acl, _sysan, _props, created)
		 SELECT src_id, dst_id, acl, _sysan, _props, created FROM %q
		 ON CONFLICT (src_id, dst_id) DO UPDATE SET acl = EXCLUDED.acl, _sysan = EXCLUDED._sysan, _props = EXCLUDED._props, created = EXCLUDED.created`,
		table, "tmp_"+table)
}

func isResearchStudy(name string) bool {
	return strings.EqualFold(strings.ReplaceAll(name, "_", ""), "researchstudy")
}

// dedupeRelations keeps at most one relation per destination id, last
// occurrence wins. A discarded duplicate that carried a different label is
// surfaced once, since that may mask a real distinct relation in the export.
func dedupeRelations(entityName string, relations []Relation, warn *WarningDeduper) []Relation {
	deduped := make([]Relation, 0, len(relations))
	index := make(map[string]int, len(relations))
	for _, relation := range relations {
		if i, ok := index[relation.DstID]; ok {
			if deduped[i].Label != relation.Label && warn.Once("relation-dedup "+entityName+" "+relation.DstID) {
				logger.Warn("[Graph][LoadEdges] Duplicate relation with differing label, keeping last",
					"src_type", entityName, "dst_id", relation.DstID,
					"kept", relation.Label, "discarded", deduped[i].Label)
			}
			deduped[i] = relation
			continue
		}
		index[relation.DstID] = len(deduped)
		deduped = append(deduped, relation)
	}
	return deduped
}

// buildEdgeBatch fans one batch of vertex records out into per-edge-table
// staging buffers. Returns the buffers and the number of records that
// contributed at least one relation.
func buildEdgeBatch(
	entityName string,
	lines [][]byte,
	dependencyOrder []string,
	mappings dictionary.Mappings,
	projectNodeID string,
	now time.Time,
	warn *WarningDeduper,
) (map[string][][]any, int) {
	buffers := map[string][][]any{}
	recordCount := 0

	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		var vertex Vertex
		if err := json.Unmarshal(line, &vertex); err != nil {
			if warn.Once("edge-parse " + entityName) {
				logger.Warn("[Graph][LoadEdges] Skipping malformed record", "type", entityName, "err", err)
			}
			continue
		}

		relations := dedupeRelations(entityName, vertex.Relations, warn)

		if isResearchStudy(vertex.Name) {
			// Exports do not carry the study-to-project edge; wire every
			// study root into the bootstrapped project explicitly.
			relations = append(relations, Relation{DstID: projectNodeID, DstName: "Project", Label: "project"})
			logger.Info("[Graph][LoadEdges] Adding project relation", "project_node_id", projectNodeID, "study_id", vertex.ID)
		}

		if len(relations) == 0 {
			if warn.Once("no-relations " + vertex.Name) {
				logger.Info("[Graph][LoadEdges] No relations", "type", vertex.Name)
			}
			continue
		}
		recordCount++

		for _, relation := range relations {
			mapping, ok := mappings.EdgeTable(entityName, relation.DstName)
			if !ok {
				if slices.Contains(dependencyOrder, relation.DstName) &&
					warn.Once("no-mapping "+entityName+" "+relation.DstName) {
					logger.Warn("[Graph][LoadEdges] No mapping", "src", entityName, "dst", relation.DstName)
				}
				// Destinations outside the dependency order are not tracked
				// vertex types (enumerations and the like).
				continue
			}
			buffers[mapping.TableName] = append(buffers[mapping.TableName],
				[]any{vertex.ID, relation.DstID, []string{}, []byte(`{}`), []byte(`{}`), now})
		}
	}
	return buffers, recordCount
}

// LoadEdges loads the relation lists embedded in the ndjson files into their
// physical edge tables, in the same dependency order as the vertex pass. A
// single input batch can fan out into several edge tables; each table's rows
// are staged and merged on (src_id, dst_id), then the batch commits.
func LoadEdges(
	ctx context.Context,
	conn Conn,
	files []string,
	dependencyOrder []string,
	mappings dictionary.Mappings,
	projectNodeID string,
	warn *WarningDeduper,
) error {
	logger.Info("[Graph][LoadEdges] Files available for load", "count", len(files))

	for _, entityName := range dependencyOrder {
		path := findEntityFile(files, entityName)
		if path == "" {
			logger.Warn("[Graph][LoadEdges] No file found, skipping", "type", entityName)
			continue
		}

		recordCount := 0
		err := readBatches(path, edgeBatchSize, func(lines [][]byte) error {
			buffers, records := buildEdgeBatch(entityName, lines, dependencyOrder, mappings, projectNodeID, time.Now(), warn)
			recordCount += records

			tables := make([]string, 0, len(buffers))
			for table := range buffers {
				tables = append(tables, table)
			}
			sort.Strings(tables)

			for _, table := range tables {
				if err := stageAndMerge(ctx, conn, table, edgeColumns, buffers[table], edgeMergeSQL(table)); err != nil {
					return err
				}
				logger.Info("[Graph][LoadEdges] Wrote records", "count", recordCount, "table", table, "path", path)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("load edges for %s: %w", entityName, err)
		}
	}
	return nil
}
