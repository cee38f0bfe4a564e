package graphload

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Export lines hold full resource payloads; allow generous single-line sizes.
const (
	scanBufferSize  = 64 * 1024
	maxLineSize     = 16 * 1024 * 1024
	vertexBatchSize = 1000
	edgeBatchSize   = 100
)

// openNDJSON opens an export file, transparently decompressing .gz archives.
func openNDJSON(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return file, nil
	}
	zr, err := gzip.NewReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("open gzip %s: %w", path, err)
	}
	return &gzipFile{ReadCloser: zr, file: file}, nil
}

type gzipFile struct {
	io.ReadCloser
	file *os.File
}

func (g *gzipFile) Close() error {
	err := g.ReadCloser.Close()
	if ferr := g.file.Close(); err == nil {
		err = ferr
	}
	return err
}

// readBatches streams an ndjson file in batches of at most size lines,
// invoking fn for each batch in file order. An error from fn stops the read.
func readBatches(path string, size int, fn func(lines [][]byte) error) error {
	reader, err := openNDJSON(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer reader.Close()

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, scanBufferSize), maxLineSize)

	batch := make([][]byte, 0, size)
	for scanner.Scan() {
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		batch = append(batch, line)
		if len(batch) == size {
			if err := fn(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

// findNDJSONFiles globs dir recursively for export files.
func findNDJSONFiles(dir string) ([]string, error) {
	files := []string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".ndjson") || strings.HasSuffix(path, ".ndjson.gz") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no *.ndjson files found under %s", dir)
	}
	return files, nil
}

// findEntityFile locates the export file for one logical type by base name.
func findEntityFile(files []string, entityName string) string {
	for _, path := range files {
		base := filepath.Base(path)
		if base == entityName+".ndjson" || base == entityName+".ndjson.gz" {
			return path
		}
	}
	return ""
}
