package graphload

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestUpload_MissingParams(t *testing.T) {
	err := Upload(context.Background(), UploadParams{Program: "prog"})
	if err == nil || !strings.Contains(err.Error(), "invalid upload params") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpload_SourcePathMustBeDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := Upload(context.Background(), UploadParams{
		SourcePath:     file,
		Program:        "prog",
		Project:        "proj",
		DictionaryPath: dir,
		ConfigPath:     file,
	})
	if err == nil || !strings.Contains(err.Error(), "should be a directory") {
		t.Fatalf("expected directory precondition failure, got %v", err)
	}
}

func TestUpload_ConfigPathMustBeFile(t *testing.T) {
	dir := t.TempDir()

	err := Upload(context.Background(), UploadParams{
		SourcePath:     dir,
		Program:        "prog",
		Project:        "proj",
		DictionaryPath: dir,
		ConfigPath:     dir,
	})
	if err == nil || !strings.Contains(err.Error(), "should be a file") {
		t.Fatalf("expected file precondition failure, got %v", err)
	}
}

func TestVerifyProgramProject(t *testing.T) {
	t.Run("BothPresent", func(t *testing.T) {
		conn := &fakeConn{rows: []fakeRow{
			{values: []any{"prog-id"}},
			{values: []any{"proj-id"}},
		}}
		if err := verifyProgramProject(context.Background(), conn, "prog", "proj"); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
	})

	t.Run("ProgramMissing", func(t *testing.T) {
		conn := &fakeConn{}
		err := verifyProgramProject(context.Background(), conn, "prog", "proj")
		if err == nil || !strings.Contains(err.Error(), "not found in node_program") {
			t.Fatalf("expected program lookup failure, got %v", err)
		}
	})

	t.Run("ProjectMissing", func(t *testing.T) {
		conn := &fakeConn{rows: []fakeRow{
			{values: []any{"prog-id"}},
		}}
		err := verifyProgramProject(context.Background(), conn, "prog", "proj")
		if err == nil || !strings.Contains(err.Error(), "not found in node_project") {
			t.Fatalf("expected project lookup failure, got %v", err)
		}
	})
}

func TestEmptyProject_MissingParams(t *testing.T) {
	err := EmptyProject(context.Background(), EmptyParams{Program: "prog"})
	if err == nil || !strings.Contains(err.Error(), "invalid empty params") {
		t.Fatalf("expected validation error, got %v", err)
	}
}
