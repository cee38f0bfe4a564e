package graphload

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aced-idp/metaload/internal/util"
	"github.com/aced-idp/metaload/pkg/dictionary"
	"github.com/aced-idp/metaload/pkg/logger"
)

var vertexColumns = []string{"node_id", "_props", "acl", "_sysan", "created"}

func vertexMergeSQL(table string) string {
	return fmt.Sprintf(
		`INSERT INTO %q (node_id, _props, acl, _sysan, created)
		 SELECT node_id, _props, acl, _sysan, created FROM %q
		 ON CONFLICT (node_id) DO UPDATE SET _props = EXCLUDED._props, acl = EXCLUDED.acl, _sysan = EXCLUDED._sysan, created = EXCLUDED.created`,
		table, "tmp_"+table)
}

// buildVertexRows converts one batch of ndjson lines into staging rows.
// project_id is injected into every record's props so project scoping
// survives into the physical table. Malformed lines are skipped with a
// once-per-type warning.
func buildVertexRows(
	entityName string,
	lines [][]byte,
	projectID string,
	now time.Time,
	warn *WarningDeduper,
) [][]any {
	rows := make([][]any, 0, len(lines))
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		var vertex Vertex
		if err := json.Unmarshal(line, &vertex); err != nil {
			if warn.Once("vertex-parse " + entityName) {
				logger.Warn("[Graph][LoadVertices] Skipping malformed record", "type", entityName, "err", err)
			}
			continue
		}
		if vertex.Object == nil {
			vertex.Object = map[string]any{}
		}
		vertex.Object["project_id"] = projectID
		props, err := json.Marshal(vertex.Object)
		if err != nil {
			if warn.Once("vertex-props " + entityName) {
				logger.Warn("[Graph][LoadVertices] Skipping record with unencodable props", "type", entityName, "id", vertex.ID, "err", err)
			}
			continue
		}
		// Null code points in export payloads would abort the jsonb copy.
		rows = append(rows, []any{vertex.ID, []byte(util.SanitizePostgresText(string(props))), []string{}, []byte(`{}`), now})
	}
	return rows
}

// LoadVertices loads one ndjson file per logical type into its physical
// vertex table, strictly in dependency order. Each batch is staged, merged
// on node_id, and committed before the next batch starts; a failed batch
// leaves earlier batches durably committed.
func LoadVertices(
	ctx context.Context,
	conn Conn,
	files []string,
	dependencyOrder []string,
	projectID string,
	mappings dictionary.Mappings,
	warn *WarningDeduper,
) error {
	logger.Info("[Graph][LoadVertices] Files available for load", "count", len(files))

	for _, entityName := range dependencyOrder {
		path := findEntityFile(files, entityName)
		if path == "" {
			logger.Warn("[Graph][LoadVertices] No file found, skipping", "type", entityName)
			continue
		}
		table, ok := mappings.VertexTable(entityName)
		if !ok {
			logger.Warn("[Graph][LoadVertices] No mapping found, skipping", "type", entityName)
			continue
		}
		logger.Info("[Graph][LoadVertices] Loading", "path", path, "table", table)

		recordCount := 0
		err := readBatches(path, vertexBatchSize, func(lines [][]byte) error {
			rows := buildVertexRows(entityName, lines, projectID, time.Now(), warn)
			if len(rows) == 0 {
				return nil
			}
			if err := stageAndMerge(ctx, conn, table, vertexColumns, rows, vertexMergeSQL(table)); err != nil {
				return err
			}
			recordCount += len(rows)
			logger.Info("[Graph][LoadVertices] Wrote records", "count", recordCount, "table", table, "path", path)
			return nil
		})
		if err != nil {
			return fmt.Errorf("load vertices for %s: %w", entityName, err)
		}
	}
	return nil
}
