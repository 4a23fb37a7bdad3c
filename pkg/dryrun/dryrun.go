// Package dryrun reports what a build run would produce without downloading
// or publishing anything.
package dryrun

import (
	"fmt"
	"io"

	"github.com/peachmeow/peachmeow/pkg/plan"
	"github.com/peachmeow/peachmeow/pkg/release"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Report is the document printed for a dry run.
type Report struct {
	Release string               `yaml:"release,omitempty"`
	Builds  []plan.Build         `yaml:"builds"`
	Sources []plan.SourceVersion `yaml:"sources"`
}

// Execute is the main entrypoint for the dry-run mode.
func Execute(w io.Writer, p *plan.Plan) error {
	r := Report{Builds: p.Builds, Sources: p.Sources}
	if first, ok := p.First(); ok {
		r.Release = release.Tag(p.Brand(), first.Version)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to render plan: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}

	log.Infof("Result: %d builds planned.", len(p.Builds))
	_, err := fmt.Fprintln(w, "[✓] Dry run complete")
	return err
}
