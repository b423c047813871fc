package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/secmon-lab/grcops/pkg/cli/config"
)

func cmdValidate() *cli.Command {
	var catalogCfg config.Catalog

	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate a control catalog file and print a summary",
		Flags:   catalogCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			w := c.Root().Writer
			if w == nil {
				w = os.Stdout
			}
			return validateCatalog(w, &catalogCfg)
		},
	}
}

func validateCatalog(w io.Writer, catalogCfg *config.Catalog) error {
	okMark := color.New(color.FgGreen, color.Bold).SprintFunc()
	ngMark := color.New(color.FgRed, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	file, err := catalogCfg.Parse()
	if err != nil {
		fmt.Fprintf(w, "%s %s\n", ngMark("✗"), catalogCfg.Path())
		return err
	}

	problems := file.Problems()
	if len(problems) > 0 {
		fmt.Fprintf(w, "%s %s: %d problem(s)\n", ngMark("✗"), catalogCfg.Path(), len(problems))
		for _, p := range problems {
			fmt.Fprintf(w, "  %s %s\n", ngMark(p.Field), p.Message)
		}
		return goerr.Wrap(config.ErrInvalidCatalog, "catalog validation failed",
			goerr.V(config.CatalogPathKey, catalogCfg.Path()),
			goerr.V("count", len(problems)))
	}

	fmt.Fprintf(w, "%s %s: %d control(s)\n", okMark("✓"), catalogCfg.Path(), len(file.Controls))
	sources := file.Sources()
	for _, source := range config.SortedKeys(sources) {
		name := source
		if name == "" {
			name = "(none)"
		}
		fmt.Fprintf(w, "  %s %d\n", dim(name+":"), sources[source])
	}
	return nil
}
