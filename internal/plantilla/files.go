package plantilla

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ideclab/asistente-mga/internal/models"
)

var slugRe = regexp.MustCompile(`[^A-Za-z0-9_\-]+`)

// Slug makes a filename-safe identifier out of free text. Runs of anything
// outside [A-Za-z0-9_-] collapse to a single underscore.
func Slug(name string) string {
	s := slugRe.ReplaceAllString(name, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "proyecto"
	}
	return s
}

// TreeJSONName maps an uploaded workbook filename to the JSON file its parsed
// tree is stored under.
func TreeJSONName(xlsxName string) string {
	base := filepath.Base(xlsxName)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".json"
}

// SaveTreeJSON writes a parsed tree next to its workbook as UTF-8 JSON
// without HTML escaping, so the Spanish text stays readable on disk.
func SaveTreeJSON(dir, xlsxName string, tree interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tree); err != nil {
		return "", fmt.Errorf("encode tree: %w", err)
	}
	path := filepath.Join(dir, TreeJSONName(xlsxName))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write tree json: %w", err)
	}
	return path, nil
}

// LoadCausaTree reads a persisted causes tree.
func LoadCausaTree(path string) (*models.CausaTree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read causa tree: %w", err)
	}
	var t models.CausaTree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode causa tree %s: %w", path, err)
	}
	return &t, nil
}

// LoadObjetivoTree reads a persisted objectives tree.
func LoadObjetivoTree(path string) (*models.ObjetivoTree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read objetivo tree: %w", err)
	}
	var t models.ObjetivoTree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode objetivo tree %s: %w", path, err)
	}
	return &t, nil
}
