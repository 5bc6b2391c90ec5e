package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/chazu/contactkit/pkg/contact"
	"github.com/chazu/contactkit/pkg/kernel"
	"github.com/chazu/contactkit/pkg/kernel/manifold"
	"github.com/chazu/contactkit/pkg/kernel/sdfx"
	"github.com/chazu/contactkit/pkg/scenario"
	"github.com/chazu/contactkit/pkg/scene"
	"github.com/chazu/contactkit/pkg/tessellate"
)

// errInvalidScenario is returned for scenarios that fail to evaluate or
// validate. The details have been logged.
var errInvalidScenario = errors.New("invalid scenario")

// loaded is a scenario ready for the contact form.
type loaded struct {
	scene *scene.Scene
	res   *tessellate.Result
	cfg   contact.Config
}

// newKernel returns the solid kernel called name.
func newKernel(name string) (kernel.Kernel, error) {
	switch name {
	case "sdfx", "":
		return sdfx.New(), nil
	case "manifold":
		return manifold.New()
	}
	return nil, fmt.Errorf("unknown kernel %q", name)
}

// load evaluates, validates and tessellates the scenario at path. Scenario
// settings override the configured dhat.
func load(ctx context.Context, opts *options, path string) (*loaded, error) {
	s, evalErrs, err := scenario.NewEngine().EvaluateFile(path)
	if err != nil {
		return nil, err
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			opts.logger.Error("evaluation failed", "file", path, "line", e.Line, "error", e.Message)
		}
		return nil, fmt.Errorf("%s: %w", path, errInvalidScenario)
	}

	findings := scene.Validate(s)
	for _, f := range findings {
		if f.Severity == scene.SeverityWarning {
			opts.logger.Warn("scenario", "finding", f.Error())
		} else {
			opts.logger.Error("scenario", "finding", f.Error())
		}
	}
	if len(scene.Errors(findings)) > 0 {
		return nil, fmt.Errorf("%s: %w", path, errInvalidScenario)
	}

	cfg := opts.cfg
	if s.Settings.DHat > 0 {
		cfg.DHat = s.Settings.DHat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	k, err := newKernel(opts.kernel)
	if err != nil {
		return nil, err
	}
	res, err := tessellate.Tessellate(ctx, s, k, tessellate.Options{
		Cells:   opts.cells,
		Workers: cfg.Workers,
	})
	if err != nil {
		return nil, err
	}
	opts.logger.Info("tessellated scenario",
		"bodies", len(res.Instances),
		"vertices", res.Mesh.NumVertices(),
		"edges", len(res.Mesh.Edges()),
		"faces", len(res.Mesh.Faces()))
	return &loaded{scene: s, res: res, cfg: cfg}, nil
}
