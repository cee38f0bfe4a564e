package graphload

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5"

	"github.com/aced-idp/metaload/pkg/dictionary"
	"github.com/aced-idp/metaload/pkg/leaselock"
	"github.com/aced-idp/metaload/pkg/logger"
)

var validate = validator.New()

// UploadParams are the inputs for one end-to-end graph load.
type UploadParams struct {
	// SourcePath is the directory holding the per-type ndjson export files.
	SourcePath string `validate:"required"`
	// Program and Project name the root vertices owning the loaded data.
	Program string `validate:"required"`
	Project string `validate:"required"`
	// DictionaryPath is a local schema directory or an http(s) URL.
	DictionaryPath string `validate:"required"`
	// ConfigPath is the yaml file carrying dependency_order.
	ConfigPath string `validate:"required"`
}

// Upload runs the whole load: bootstrap the program/project roots, then load
// vertices and edges from the export directory over one database connection.
// A lease keyed on the project id serializes concurrent loads; the lease
// lives on its own connection so renewal never interleaves with the copies.
// Success is a nil error; any database error aborts the load with batches
// committed so far left in place. Rerunning is safe, upserts are idempotent.
func Upload(ctx context.Context, params UploadParams) error {
	if err := validate.Struct(params); err != nil {
		return fmt.Errorf("invalid upload params: %w", err)
	}
	if info, err := os.Stat(params.SourcePath); err != nil || !info.IsDir() {
		return fmt.Errorf("%s should be a directory", params.SourcePath)
	}
	if info, err := os.Stat(params.ConfigPath); err != nil || info.IsDir() {
		return fmt.Errorf("%s should be a file", params.ConfigPath)
	}

	order, err := LoadDependencyOrder(params.ConfigPath)
	if err != nil {
		return err
	}
	order = FilterDependencyOrder(order)

	lockConn, err := Connect(ctx)
	if err != nil {
		return err
	}
	defer lockConn.Close(ctx)

	conn, err := Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	logger.Info("[Graph][Upload] Connected to postgres")

	projectID := params.Program + "-" + params.Project
	locks := leaselock.New(lockConn)
	return locks.WithLease(ctx, "load:"+projectID, leaselock.Options{}, func(ctx context.Context) error {
		return upload(ctx, conn, params, order, projectID)
	})
}

func upload(ctx context.Context, conn Conn, params UploadParams, order []string, projectID string) error {
	projectNodeID, err := EnsureProject(ctx, conn, params.Program, params.Project)
	if err != nil {
		return err
	}

	// Re-check what the bootstrapper just ensured, to catch races and
	// transaction-visibility problems before any bulk work starts.
	if err := verifyProgramProject(ctx, conn, params.Program, params.Project); err != nil {
		return err
	}

	files, err := findNDJSONFiles(params.SourcePath)
	if err != nil {
		return err
	}

	mappings, err := dictionary.Load(ctx, params.DictionaryPath)
	if err != nil {
		return err
	}

	logger.Info("[Graph][Upload] Program and project exist", "project_id", projectID, "project_node_id", projectNodeID)

	warn := NewWarningDeduper()

	logger.Info("[Graph][Upload] Loading vertices")
	if err := LoadVertices(ctx, conn, files, order, projectID, mappings, warn); err != nil {
		return err
	}

	logger.Info("[Graph][Upload] Loading edges")
	if err := LoadEdges(ctx, conn, files, order, mappings, projectNodeID, warn); err != nil {
		return err
	}

	logger.Info("[Graph][Upload] Done", "project_id", projectID)
	return nil
}

func verifyProgramProject(ctx context.Context, conn Conn, program, project string) error {
	var nodeID string
	err := conn.QueryRow(ctx,
		`SELECT node_id FROM node_program WHERE _props->>'name' = $1`, program,
	).Scan(&nodeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s not found in node_program", program)
	}
	if err != nil {
		return fmt.Errorf("verify program %s: %w", program, err)
	}

	err = conn.QueryRow(ctx,
		`SELECT node_id FROM node_project WHERE _props->>'code' = $1`, project,
	).Scan(&nodeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s not found in node_project", project)
	}
	if err != nil {
		return fmt.Errorf("verify project %s: %w", project, err)
	}
	return nil
}
