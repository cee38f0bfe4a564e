package graphload

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestBuildVertexRows(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lines := [][]byte{
		[]byte(`{"id": "p1", "object": {"resourceType": "Patient", "gender": "female"}}`),
		[]byte(`{"id": "p2", "object": {"resourceType": "Patient"}}`),
	}

	rows := buildVertexRows("Patient", lines, "aced-demo", now, NewWarningDeduper())
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	row := rows[0]
	if len(row) != 5 {
		t.Fatalf("expected 5 columns per row, got %d", len(row))
	}
	if row[0] != "p1" {
		t.Fatalf("node_id = %v", row[0])
	}

	var props map[string]any
	if err := json.Unmarshal(row[1].([]byte), &props); err != nil {
		t.Fatalf("props are not valid json: %v", err)
	}
	if props["project_id"] != "aced-demo" {
		t.Fatalf("project_id not injected: %v", props)
	}
	if props["gender"] != "female" {
		t.Fatalf("original props lost: %v", props)
	}

	if acl, ok := row[2].([]string); !ok || len(acl) != 0 {
		t.Fatalf("acl should be an empty text array, got %v", row[2])
	}
	if string(row[3].([]byte)) != "{}" {
		t.Fatalf("_sysan should be empty json, got %v", row[3])
	}
	if row[4] != now {
		t.Fatalf("created = %v", row[4])
	}
}

func TestBuildVertexRows_NilObjectStillScoped(t *testing.T) {
	rows := buildVertexRows("Patient", [][]byte{[]byte(`{"id": "p1"}`)}, "aced-demo", time.Now(), NewWarningDeduper())
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	var props map[string]any
	if err := json.Unmarshal(rows[0][1].([]byte), &props); err != nil {
		t.Fatal(err)
	}
	if props["project_id"] != "aced-demo" {
		t.Fatalf("project_id missing for record without object: %v", props)
	}
}

func TestBuildVertexRows_StripsNullCodePoints(t *testing.T) {
	line := "{\"id\": \"p1\", \"object\": {\"note\": \"bad\\u0000value\"}}"
	rows := buildVertexRows("Patient", [][]byte{[]byte(line)}, "aced-demo", time.Now(), NewWarningDeduper())
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	props := string(rows[0][1].([]byte))
	if strings.Contains(props, "u0000") {
		t.Fatalf("null code point survived into staged props: %s", props)
	}
	if !strings.Contains(props, "badvalue") {
		t.Fatalf("surrounding text lost during sanitizing: %s", props)
	}
}

func TestBuildVertexRows_SkipsMalformedLines(t *testing.T) {
	warn := NewWarningDeduper()
	lines := [][]byte{
		[]byte(`{"id": "p1", "object": {}}`),
		[]byte(`not json`),
		{},
		[]byte(`{"id": "p2", "object": {}}`),
		[]byte(`also not json`),
	}

	rows := buildVertexRows("Patient", lines, "aced-demo", time.Now(), warn)
	if len(rows) != 2 {
		t.Fatalf("expected malformed and blank lines skipped, got %d rows", len(rows))
	}
	// The parse warning fired during the build, so the key is spent.
	if warn.Once("vertex-parse Patient") {
		t.Fatal("expected the malformed-line warning to have been recorded")
	}
}

func TestVertexMergeSQL(t *testing.T) {
	sql := vertexMergeSQL("node_patient")
	for _, fragment := range []string{
		`INSERT INTO "node_patient"`,
		`FROM "tmp_node_patient"`,
		`ON CONFLICT (node_id) DO UPDATE`,
	} {
		if !strings.Contains(sql, fragment) {
			t.Fatalf("merge sql missing %q:\n%s", fragment, sql)
		}
	}
}
