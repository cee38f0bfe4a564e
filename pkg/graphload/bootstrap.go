package graphload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aced-idp/metaload/pkg/logger"
)

// Namespace seeds for deterministic program/project node ids. Fixed values,
// so bootstrapping the same names on any environment yields the same ids.
var (
	programSeed = uuid.MustParse("85b08c6a-56a6-4474-9c30-b65abfd214a8")
	projectSeed = uuid.MustParse("249b4405-2c69-45d9-96bc-7410333d5d80")
)

// ProgramNodeID derives the deterministic node id for a program name.
func ProgramNodeID(program string) string {
	return uuid.NewSHA1(programSeed, []byte(program)).String()
}

// ProjectNodeID derives the deterministic node id for a project name.
func ProjectNodeID(project string) string {
	return uuid.NewSHA1(projectSeed, []byte(project)).String()
}

// EnsureProject guarantees the program and project root vertices exist along
// with the membership edge linking them, and returns the project node id.
// Inserts are insert-ignore on the deterministic ids, so the call is
// idempotent and never overwrites an existing row. Each statement commits
// immediately, so concurrent or repeated invocations observe a consistent
// program/project state before any vertex or edge load begins.
func EnsureProject(ctx context.Context, conn Conn, program, project string) (string, error) {
	var programNodeID string
	err := conn.QueryRow(ctx,
		`SELECT node_id FROM node_program WHERE _props->>'name' = $1`, program,
	).Scan(&programNodeID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		programNodeID = ProgramNodeID(program)
		props, err := json.Marshal(map[string]string{
			"name":                   program,
			"type":                   "program",
			"dbgap_accession_number": program,
		})
		if err != nil {
			return "", fmt.Errorf("marshal program props: %w", err)
		}
		if _, err := conn.Exec(ctx,
			`INSERT INTO node_program (node_id, _props) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			programNodeID, props,
		); err != nil {
			return "", fmt.Errorf("create program %s: %w", program, err)
		}
		logger.Info("[Graph][EnsureProject] Created program", "program", program, "node_id", programNodeID)
	case err != nil:
		return "", fmt.Errorf("look up program %s: %w", program, err)
	default:
		logger.Info("[Graph][EnsureProject] Program exists", "program", program, "node_id", programNodeID)
	}

	var projectNodeID string
	err = conn.QueryRow(ctx,
		`SELECT node_id FROM node_project
		 WHERE node_id IN (SELECT src_id FROM edge_projectmemberofprogram WHERE dst_id = $1)
		 AND _props->>'code' = $2`,
		programNodeID, project,
	).Scan(&projectNodeID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		projectNodeID = ProjectNodeID(project)
		props, err := json.Marshal(map[string]string{
			"code":                   project,
			"type":                   "project",
			"state":                  "open",
			"dbgap_accession_number": project,
		})
		if err != nil {
			return "", fmt.Errorf("marshal project props: %w", err)
		}
		if _, err := conn.Exec(ctx,
			`INSERT INTO node_project (node_id, _props) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			projectNodeID, props,
		); err != nil {
			return "", fmt.Errorf("create project %s: %w", project, err)
		}
		logger.Info("[Graph][EnsureProject] Created project", "project", project, "node_id", projectNodeID)
		if _, err := conn.Exec(ctx,
			`INSERT INTO edge_projectmemberofprogram (src_id, dst_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			projectNodeID, programNodeID,
		); err != nil {
			return "", fmt.Errorf("link project %s to program %s: %w", project, program, err)
		}
		logger.Info("[Graph][EnsureProject] Linked project to program", "src_id", projectNodeID, "dst_id", programNodeID)
	case err != nil:
		return "", fmt.Errorf("look up project %s: %w", project, err)
	default:
		logger.Info("[Graph][EnsureProject] Project exists", "project", project, "node_id", projectNodeID)
	}

	return projectNodeID, nil
}
