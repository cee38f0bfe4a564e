package graphload

import (
	"context"
	"fmt"

	"github.com/aced-idp/metaload/pkg/dictionary"
	"github.com/aced-idp/metaload/pkg/logger"
)

// EmptyParams are the inputs for removing one project's graph data.
type EmptyParams struct {
	Program        string `validate:"required"`
	Project        string `validate:"required"`
	DictionaryPath string `validate:"required"`
	ConfigPath     string `validate:"required"`
}

// EmptyProject deletes every vertex row scoped to the project, one physical
// table at a time in dependency order. The program/project roots and the
// edge rows referencing deleted vertices are left to the database's cascade
// rules; the loaders never recreate deleted data on their own.
func EmptyProject(ctx context.Context, params EmptyParams) error {
	if err := validate.Struct(params); err != nil {
		return fmt.Errorf("invalid empty params: %w", err)
	}

	order, err := LoadDependencyOrder(params.ConfigPath)
	if err != nil {
		return err
	}
	order = FilterDependencyOrder(order)

	mappings, err := dictionary.Load(ctx, params.DictionaryPath)
	if err != nil {
		return err
	}

	conn, err := Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	projectID := params.Program + "-" + params.Project
	logger.Info("[Graph][EmptyProject] Emptying project", "project_id", projectID)

	for _, entityName := range order {
		table, ok := mappings.VertexTable(entityName)
		if !ok {
			logger.Warn("[Graph][EmptyProject] No mapping found, skipping", "type", entityName)
			continue
		}
		logger.Info("[Graph][EmptyProject] Deleting rows", "table", table, "project_id", projectID)
		deleteSQL := fmt.Sprintf(`DELETE FROM %q WHERE _props->>'project_id' = $1`, table)
		if _, err := conn.Exec(ctx, deleteSQL, projectID); err != nil {
			return fmt.Errorf("empty %s for %s: %w", table, projectID, err)
		}
	}

	logger.Info("[Graph][EmptyProject] Done", "project_id", projectID)
	return nil
}
