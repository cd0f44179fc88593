package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dataset is a collection of documents with known expected findings.
type Dataset struct {
	Name  string `json:"name" yaml:"name"`
	Cases []Case `json:"cases" yaml:"cases"`
}

// Case is one document to analyze and what a good analysis of it contains.
// Every expectation is optional. Facts may hold pipe-separated
// alternatives ("deposit|security amount"); matching any one counts.
type Case struct {
	Name     string `json:"name" yaml:"name"`
	Document string `json:"document" yaml:"document"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"` // lease, employment, nda...

	ExpectedPurpose string   `json:"expected_purpose,omitempty" yaml:"expected_purpose,omitempty"`
	ExpectedParties []string `json:"expected_parties,omitempty" yaml:"expected_parties,omitempty"`
	ExpectedSources []string `json:"expected_sources,omitempty" yaml:"expected_sources,omitempty"` // statute names that should be retrieved
	ExpectedFacts   []string `json:"expected_facts,omitempty" yaml:"expected_facts,omitempty"`     // findings the analysis should mention

	// ExpectError names the failure kind the case should end in:
	// input, extraction, schema or synthesis.
	ExpectError string `json:"expect_error,omitempty" yaml:"expect_error,omitempty"`
}

// LoadDataset reads a YAML or JSON dataset. Relative document paths are
// resolved against the dataset file's directory.
func LoadDataset(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("reading dataset: %w", err)
	}

	var ds Dataset
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &ds)
	case ".json":
		err = json.Unmarshal(data, &ds)
	default:
		return Dataset{}, fmt.Errorf("unsupported dataset format %q", filepath.Ext(path))
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("parsing dataset %s: %w", path, err)
	}

	if ds.Name == "" {
		ds.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	dir := filepath.Dir(path)
	for i, c := range ds.Cases {
		if c.Document == "" {
			return Dataset{}, fmt.Errorf("case %d (%s): document is required", i+1, c.Name)
		}
		if !filepath.IsAbs(c.Document) {
			ds.Cases[i].Document = filepath.Join(dir, c.Document)
		}
		if c.Name == "" {
			ds.Cases[i].Name = filepath.Base(c.Document)
		}
		if c.ExpectError != "" {
			if _, ok := errorKinds[c.ExpectError]; !ok {
				return Dataset{}, fmt.Errorf("case %s: unknown expect_error %q", ds.Cases[i].Name, c.ExpectError)
			}
		}
	}
	return ds, nil
}
