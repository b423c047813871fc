package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"

	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/domain/types"
)

// Catalog holds the CLI flag pointing at a control catalog file
type Catalog struct {
	path string
}

// Flags returns CLI flags for catalog configuration
func (c *Catalog) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "catalog",
			Aliases:     []string{"c"},
			Usage:       "Path to the control catalog TOML file",
			Required:    true,
			Sources:     cli.EnvVars("GRCOPS_CATALOG"),
			Destination: &c.path,
		},
	}
}

// Path returns the catalog file path
func (c *Catalog) Path() string {
	return c.path
}

// CatalogFile is the TOML layout of a control catalog
type CatalogFile struct {
	Controls []CatalogControl `toml:"control"`
}

// CatalogControl is one catalog entry
type CatalogControl struct {
	ID          string           `toml:"id"`
	ControlID   string           `toml:"control_id"`
	Source      string           `toml:"source"`
	Name        string           `toml:"name"`
	Description string           `toml:"description"`
	Domain      string           `toml:"domain"`
	Mappings    []CatalogMapping `toml:"mapping"`
}

// CatalogMapping cross-references a catalog entry to another standard
type CatalogMapping struct {
	Standard  string `toml:"standard"`
	Reference string `toml:"reference"`
}

// Problems lists every issue in the file. An empty result means the file is valid.
func (f *CatalogFile) Problems() model.ValidationErrors {
	var errs model.ValidationErrors
	if len(f.Controls) == 0 {
		errs.Add("control", "catalog has no controls")
		return errs
	}

	seen := make(map[string]int, len(f.Controls))
	for i, c := range f.Controls {
		field := fmt.Sprintf("control[%d]", i)

		if strings.TrimSpace(c.ControlID) == "" {
			errs.Add(field+".control_id", "control_id is required")
		} else if first, ok := seen[c.ControlID]; ok {
			errs.Add(field+".control_id", fmt.Sprintf("control_id %q duplicates control[%d]", c.ControlID, first))
		} else {
			seen[c.ControlID] = i
		}

		if strings.TrimSpace(c.Name) == "" {
			errs.Add(field+".name", "name is required")
		}
		if c.ID != "" {
			if err := types.ControlID(c.ID).Validate(); err != nil {
				errs.Add(field+".id", "id must be a UUID")
			}
		}
		for j, m := range c.Mappings {
			if strings.TrimSpace(m.Standard) == "" || strings.TrimSpace(m.Reference) == "" {
				errs.Add(fmt.Sprintf("%s.mapping[%d]", field, j), "mapping requires standard and reference")
			}
		}
	}
	return errs
}

// Validate returns ErrInvalidCatalog with the problems attached
func (f *CatalogFile) Validate() error {
	problems := f.Problems()
	if len(problems) == 0 {
		return nil
	}
	return goerr.Wrap(ErrInvalidCatalog, "catalog validation failed",
		goerr.V("problems", problems.Error()),
		goerr.V("count", len(problems)))
}

// ToModel converts the entries to catalog controls
func (f *CatalogFile) ToModel() []*model.Control {
	controls := make([]*model.Control, len(f.Controls))
	for i, c := range f.Controls {
		control := &model.Control{
			ID:          types.ControlID(c.ID),
			Code:        c.ControlID,
			Source:      c.Source,
			Name:        c.Name,
			Description: c.Description,
			Domain:      c.Domain,
		}
		for _, m := range c.Mappings {
			control.Mappings = append(control.Mappings, model.ControlMapping{
				Standard:  m.Standard,
				Reference: m.Reference,
			})
		}
		controls[i] = control
	}
	return controls
}

// Sources counts entries per source
func (f *CatalogFile) Sources() map[string]int {
	counts := make(map[string]int)
	for _, c := range f.Controls {
		counts[c.Source]++
	}
	return counts
}

// SortedKeys returns map keys in lexical order
func SortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Parse decodes the catalog file without validating it
func (c *Catalog) Parse() (*CatalogFile, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrCatalogNotFound, "catalog file does not exist", goerr.V(CatalogPathKey, c.path))
		}
		return nil, goerr.Wrap(err, "failed to read catalog file", goerr.V(CatalogPathKey, c.path))
	}

	var file CatalogFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(ErrInvalidCatalog, "failed to parse TOML catalog",
			goerr.V(CatalogPathKey, c.path),
			goerr.V("cause", err.Error()))
	}
	return &file, nil
}

// Load parses and validates the catalog file
func (c *Catalog) Load() (*CatalogFile, error) {
	file, err := c.Parse()
	if err != nil {
		return nil, err
	}
	if err := file.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid catalog file", goerr.V(CatalogPathKey, c.path))
	}
	return file, nil
}
