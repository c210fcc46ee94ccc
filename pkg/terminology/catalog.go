package terminology

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Concept struct {
	Display string `yaml:"display" json:"display"`
	SNOMED  string `yaml:"snomed" json:"snomed"`
	ICD10   string `yaml:"icd10" json:"icd10"`
}

type Catalog struct {
	Concepts map[string]Concept `yaml:"concepts" json:"concepts"`
}

func Load(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultCatalog(), err
	}
	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return Catalog{}, err
	}
	if len(cat.Concepts) == 0 {
		return Catalog{}, fmt.Errorf("terminology catalog empty")
	}
	return cat, nil
}

func (c Catalog) Lookup(key string) (Concept, bool) {
	if c.Concepts == nil {
		return Concept{}, false
	}
	concept, ok := c.Concepts[strings.ToLower(key)]
	if ok {
		return concept, true
	}
	for k, v := range c.Concepts {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return Concept{}, false
}

// DisplayForCode resolves a coded identifier back to its display name,
// scanning both code systems.
func (c Catalog) DisplayForCode(code string) (string, bool) {
	for _, concept := range c.Concepts {
		if concept.SNOMED == code || concept.ICD10 == code {
			return concept.Display, true
		}
	}
	return "", false
}

func DefaultCatalog() Catalog {
	return Catalog{Concepts: map[string]Concept{
		"diabetes-mellitus": {
			Display: "Diabetes mellitus",
			SNOMED:  "73211009",
			ICD10:   "E11.9",
		},
		"hypertension": {
			Display: "Hypertensive disorder",
			SNOMED:  "38341003",
			ICD10:   "I10",
		},
		"osteoporosis": {
			Display: "Osteoporosis",
			SNOMED:  "64859006",
			ICD10:   "M81.0",
		},
		"chronic-kidney-disease": {
			Display: "Chronic kidney disease",
			SNOMED:  "709044004",
			ICD10:   "N18.9",
		},
		"atrial-fibrillation": {
			Display: "Atrial fibrillation",
			SNOMED:  "49436004",
			ICD10:   "I48.91",
		},
	}}
}
