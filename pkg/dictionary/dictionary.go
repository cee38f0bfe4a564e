package dictionary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aced-idp/metaload/internal/util"
)

// ErrSchemaLoad marks a failed dictionary fetch or parse. Nothing can be
// loaded without a dictionary, so callers treat this class as fatal.
var ErrSchemaLoad = errors.New("failed to load data dictionary")

// Schema is one node schema from the data dictionary. The dictionary defines
// a logical entity type per schema file, identified by a snake_case label
// (e.g. "research_study"), plus the links connecting it to other types.
type Schema struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	Links []Link `yaml:"links" json:"links"`
}

// Link describes one association from a schema to a target type. Dictionaries
// may group alternative links under a subgroup; those count as plain links
// for table mapping purposes.
type Link struct {
	Name       string `yaml:"name" json:"name"`
	Backref    string `yaml:"backref" json:"backref"`
	Label      string `yaml:"label" json:"label"`
	TargetType string `yaml:"target_type" json:"target_type"`
	Required   bool   `yaml:"required" json:"required"`
	Subgroup   []Link `yaml:"subgroup" json:"subgroup"`
}

// Load resolves the dictionary source and derives the vertex/edge table
// mappings. The source is either a local directory of yaml schema files or an
// http(s) URL serving the compiled dictionary as a single JSON document.
// The result is computed once per load and is read-only afterwards.
func Load(ctx context.Context, source string) (Mappings, error) {
	var (
		schemas []Schema
		err     error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		schemas, err = fetchSchemas(ctx, source)
	} else {
		schemas, err = readSchemaDir(source)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaLoad, err)
	}
	if len(schemas) == 0 {
		return nil, fmt.Errorf("%w: no schemas found at %s", ErrSchemaLoad, source)
	}
	return buildMappings(schemas), nil
}

// readSchemaDir parses every yaml schema in the directory. Files whose name
// starts with "_" hold shared definitions and terms, not entity schemas.
func readSchemaDir(dir string) ([]Schema, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "_") {
			continue
		}
		if ext := filepath.Ext(name); ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	schemas := make([]Schema, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		var schema Schema
		if err := yaml.Unmarshal(data, &schema); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		if schema.ID == "" {
			continue
		}
		schemas = append(schemas, schema)
	}
	return schemas, nil
}

const fetchTries = 3

// fetchSchemas retrieves the compiled dictionary, a JSON object keyed by
// schema file name. Transient fetch failures are retried.
func fetchSchemas(ctx context.Context, url string) ([]Schema, error) {
	body, err := util.RetryWithContext(ctx, fetchTries, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}

	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse dictionary from %s: %w", url, err)
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		if strings.HasPrefix(key, "_") {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	schemas := make([]Schema, 0, len(keys))
	for _, key := range keys {
		var schema Schema
		if err := json.Unmarshal(raw[key], &schema); err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", key, err)
		}
		if schema.ID == "" {
			continue
		}
		schemas = append(schemas, schema)
	}
	return schemas, nil
}
