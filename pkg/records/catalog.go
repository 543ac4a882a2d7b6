package records

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/medledger/platform/pkg/common/models"
	"gopkg.in/yaml.v3"
)

// RecordType describes one authoring policy entry: how the type renders and
// what it requires of the author.
type RecordType struct {
	Display       string `yaml:"display" json:"display"`
	AuthorRole    string `yaml:"author_role" json:"author_role"`
	RequiresGrant bool   `yaml:"requires_grant" json:"requires_grant"`
	TitleLimit    int    `yaml:"title_limit" json:"title_limit"`
}

type Catalog struct {
	Types map[string]RecordType `yaml:"types" json:"types"`
}

func LoadCatalog(path string) (Catalog, error) {
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
	if len(cat.Types) == 0 {
		return Catalog{}, errors.New("no record types configured")
	}

	return cat, nil
}

func DefaultCatalog() Catalog {
	return Catalog{Types: map[string]RecordType{
		models.RecordTypeReport: {
			Display:       "Patient Report",
			AuthorRole:    models.RolePatient,
			RequiresGrant: false,
			TitleLimit:    120,
		},
		models.RecordTypeUpdate: {
			Display:       "Doctor Update",
			AuthorRole:    models.RoleDoctor,
			RequiresGrant: true,
			TitleLimit:    120,
		},
	}}
}

func (c Catalog) Type(name string) (RecordType, bool) {
	rt, ok := c.Types[name]
	return rt, ok
}
