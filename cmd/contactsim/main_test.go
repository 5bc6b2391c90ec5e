package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/contactkit/pkg/broadphase"
	"github.com/chazu/contactkit/pkg/ccd"
	"github.com/chazu/contactkit/pkg/contact"
)

const squeeze = "../../examples/squeeze.lisp"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func quietOptions() *options {
	cfg := contact.DefaultConfig()
	cfg.BroadPhase = broadphase.SweepAndPrune
	return &options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		cfg:    cfg,
	}
}

func TestCheckCommand(t *testing.T) {
	out, err := execute(t, "check", squeeze, "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, out, "intersecting at rest: false")
	assert.Contains(t, out, "constraints: 0 ")
	assert.Contains(t, out, "minimum distance: none within dhat")

	m := regexp.MustCompile(`admissible fraction of motion: ([0-9.e+-]+)`).FindStringSubmatch(out)
	require.NotNil(t, m, out)
	frac, err := strconv.ParseFloat(m[1], 64)
	require.NoError(t, err)
	// The plates close a 0.15 gap at 0.2 per unit of motion.
	assert.Greater(t, frac, 0.0)
	assert.LessOrEqual(t, frac, 0.75)
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run", squeeze, "--steps", "2", "--max-iters", "3", "--log-level", "warn")
	require.NoError(t, err)
	assert.Contains(t, out, "time steps: 2")
	assert.Contains(t, out, "body lower: prescribed (0 0 0.1)")
	assert.Contains(t, out, "body upper: prescribed (0 0 -0.1)")
}

func TestRunKeepsPlatesApart(t *testing.T) {
	ctx := context.Background()
	opts := quietOptions()
	l, err := load(ctx, opts, squeeze)
	require.NoError(t, err)
	require.Len(t, l.res.Instances, 2)

	springs := &targetSprings{target: make([]float64, l.res.Mesh.NumDOF()), mass: 1}
	form, err := contact.NewForm(l.res.Mesh, springs, l.cfg, contact.WithLogger(opts.logger))
	require.NoError(t, err)

	d := &driver{
		form:     form,
		springs:  springs,
		full:     l.res.Target(),
		steps:    4,
		maxIters: 20,
		tol:      1e-3 * l.cfg.DHat,
		logger:   opts.logger,
	}
	x, err := d.run(ctx)
	require.NoError(t, err)
	assert.Equal(t, contact.Ready, form.State())
	assert.Positive(t, d.iterations)

	lower := meanDisplacement(l.res, l.res.Instances[0], x)
	upper := meanDisplacement(l.res, l.res.Instances[1], x)
	assert.Positive(t, lower.Z, "lower plate did not move up")
	assert.Negative(t, upper.Z, "upper plate did not move down")
	assert.Greater(t, 0.15+upper.Z-lower.Z, 0.0, "plates passed through each other")

	det, err := broadphase.New(l.cfg.BroadPhase, 1)
	require.NoError(t, err)
	assert.False(t, ccd.HasIntersections(det, l.res.Mesh, l.res.Mesh.DisplacedSurface(x), 1))
}

func TestTargetSprings(t *testing.T) {
	s := &targetSprings{target: []float64{1, 2}, mass: 2}
	g, err := s.EnergyGradient([]float64{0, 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{-2, 2}, g)
	assert.InDelta(t, 2.0, s.energy([]float64{0, 3}), 1e-12)
	assert.Equal(t, 2.0, s.AvgMass())

	_, err = s.EnergyGradient([]float64{0})
	assert.Error(t, err)
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.lisp")
	require.NoError(t, os.WriteFile(bad, []byte(`(defbody "a" (box :size (vec3 -1 1 1))) (group "g" (body "a"))`), 0o644))
	broken := filepath.Join(dir, "broken.lisp")
	require.NoError(t, os.WriteFile(broken, []byte(`(defbody "a"`), 0o644))
	cfg := filepath.Join(dir, "contact.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("dhat: 0.01\nbogus: 1\n"), 0o644))

	_, err := execute(t, "check", bad)
	assert.ErrorIs(t, err, errInvalidScenario)

	_, err = execute(t, "check", broken)
	assert.ErrorIs(t, err, errInvalidScenario)

	_, err = execute(t, "check", squeeze, "--config", cfg)
	assert.Error(t, err)

	_, err = execute(t, "check", squeeze, "--log-level", "loud")
	assert.Error(t, err)

	_, err = execute(t, "check", squeeze, "--kernel", "wood")
	assert.ErrorContains(t, err, "unknown kernel")

	_, err = execute(t, "run")
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "": slog.LevelInfo, "WARN": slog.LevelWarn, "error": slog.LevelError,
	} {
		got, err := parseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}
