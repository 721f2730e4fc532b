package planner

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wayfind/indoornav/internal/catalog"
	"github.com/wayfind/indoornav/internal/surface"
	"github.com/wayfind/indoornav/pkg/core"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type stubSurface struct {
	query  surface.Query
	err    error
	panics bool
	calls  [][2]core.Position3D
}

func (s *stubSurface) Pose() core.Pose        { return core.IdentityPose }
func (s *stubSurface) SetPose(pose core.Pose) {}
func (s *stubSurface) CalculatePath(from, to core.Position3D) (surface.Query, error) {
	s.calls = append(s.calls, [2]core.Position3D{from, to})
	if s.panics {
		panic("engine exploded")
	}
	return s.query, s.err
}

type stubSource struct {
	s surface.Surface
}

func (src *stubSource) CurrentSurface() (surface.Surface, bool) {
	if src.s == nil {
		return nil, false
	}
	return src.s, true
}

var (
	lobby = core.Destination{Name: "Lobby", Position: core.Position3D{}}
	lab   = core.Destination{Name: "Lab", Position: core.Position3D{X: 10}}
)

func completeRoute(corners ...core.Position3D) surface.Query {
	return surface.Query{Status: core.PathComplete, Corners: corners}
}

func newTestPlanner(t *testing.T, src SurfaceSource, dests ...core.Destination) (*Planner, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	p, err := New(Dependencies{
		Surfaces: src,
		Catalog:  catalog.New(dests, logger),
		Logger:   logger,
	})
	require.NoError(t, err)
	return p, &buf
}

func TestPlan_NoSurface(t *testing.T) {
	p, _ := newTestPlanner(t, &stubSource{}, lobby, lab)

	path, err := p.Plan(core.Position3D{X: 1}, "Lobby")

	assert.ErrorIs(t, err, ErrNoActiveSurface)
	assert.True(t, path.IsEmpty())
}

func TestPlan_NilSurfaceSource(t *testing.T) {
	p, _ := newTestPlanner(t, nil, lobby)

	path := p.Recompute(core.Position3D{}, "Lobby")
	assert.True(t, path.IsEmpty())
}

func TestPlan_CompleteRoute(t *testing.T) {
	s := &stubSurface{query: completeRoute(core.Position3D{X: 1}, core.Position3D{X: 10})}
	p, _ := newTestPlanner(t, &stubSource{s: s}, lobby, lab)

	path, err := p.Plan(core.Position3D{X: 1}, "Lab")

	require.NoError(t, err)
	assert.Equal(t, []core.Position3D{{X: 1}, {X: 10}}, path.Corners)
	require.Len(t, s.calls, 1)
	assert.Equal(t, core.Position3D{X: 1}, s.calls[0][0])
	assert.Equal(t, lab.Position, s.calls[0][1])
}

func TestPlan_NonCompleteIsEmpty(t *testing.T) {
	for _, status := range []core.PathStatus{core.PathPartial, core.PathInvalid} {
		t.Run(status.String(), func(t *testing.T) {
			s := &stubSurface{query: surface.Query{
				Status:  status,
				Corners: []core.Position3D{{X: 1}, {X: 4}},
			}}
			p, _ := newTestPlanner(t, &stubSource{s: s}, lobby, lab)

			path, err := p.Plan(core.Position3D{X: 1}, "Lab")

			assert.ErrorIs(t, err, ErrUnreachable)
			assert.True(t, path.IsEmpty())
		})
	}
}

func TestPlan_QueryErrorIsEmpty(t *testing.T) {
	s := &stubSurface{err: errors.New("navmesh not baked")}
	p, buf := newTestPlanner(t, &stubSource{s: s}, lobby, lab)

	path, err := p.Plan(core.Position3D{}, "Lab")
	assert.ErrorIs(t, err, ErrQuery)
	assert.True(t, path.IsEmpty())

	assert.True(t, p.Recompute(core.Position3D{}, "Lab").IsEmpty())
	assert.Contains(t, buf.String(), "Surface query failed")
}

func TestPlan_CompleteWithTooFewCornersIsEmpty(t *testing.T) {
	s := &stubSurface{query: completeRoute(core.Position3D{X: 1})}
	p, _ := newTestPlanner(t, &stubSource{s: s}, lab)

	path, err := p.Plan(core.Position3D{X: 1}, "Lab")
	assert.ErrorIs(t, err, ErrQuery)
	assert.True(t, path.IsEmpty())
}

func TestPlan_NoSelection(t *testing.T) {
	s := &stubSurface{query: completeRoute(core.Position3D{}, core.Position3D{X: 1})}
	p, _ := newTestPlanner(t, &stubSource{s: s}, lobby)

	path, err := p.Plan(core.Position3D{}, "")
	assert.ErrorIs(t, err, ErrNoSelection)
	assert.True(t, path.IsEmpty())
	assert.Empty(t, s.calls)
}

func TestPlan_EmptyCatalog(t *testing.T) {
	s := &stubSurface{query: completeRoute(core.Position3D{}, core.Position3D{X: 1})}
	p, _ := newTestPlanner(t, &stubSource{s: s})

	path, err := p.Plan(core.Position3D{}, "Lab")
	assert.ErrorIs(t, err, ErrEmptyCatalog)
	assert.True(t, path.IsEmpty())
	assert.Empty(t, s.calls)
}

func TestRecompute_UnknownSelection(t *testing.T) {
	s := &stubSurface{query: completeRoute(core.Position3D{}, core.Position3D{X: 1})}
	p, buf := newTestPlanner(t, &stubSource{s: s}, lobby, lab)

	for i := 0; i < 3; i++ {
		assert.True(t, p.Recompute(core.Position3D{}, "Cafeteria").IsEmpty())
	}

	assert.Empty(t, s.calls)
	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "level=WARN msg=\"No valid destination found\""))
	assert.Contains(t, out, "level=DEBUG msg=\"No valid destination found\"")
}

func TestRecompute_UnknownSelectionWarnsOncePerName(t *testing.T) {
	s := &stubSurface{query: completeRoute(core.Position3D{}, core.Position3D{X: 1})}
	p, buf := newTestPlanner(t, &stubSource{s: s}, lobby, lab)

	for i := 0; i < 3; i++ {
		p.Recompute(core.Position3D{}, "Cafeteria")
		p.Recompute(core.Position3D{}, "Gym")
	}

	assert.Equal(t, 2, strings.Count(buf.String(), "level=WARN msg=\"No valid destination found\""))
}

func TestRecompute_UnknownSelectionWarnsAgainAfterRecovery(t *testing.T) {
	s := &stubSurface{query: completeRoute(core.Position3D{}, core.Position3D{X: 1})}
	p, buf := newTestPlanner(t, &stubSource{s: s}, lobby, lab)

	p.Recompute(core.Position3D{}, "Cafeteria")
	p.Recompute(core.Position3D{}, "Lab")
	p.Recompute(core.Position3D{}, "Cafeteria")

	assert.Equal(t, 2, strings.Count(buf.String(), "level=WARN msg=\"No valid destination found\""))
}

func TestRecompute_Idempotent(t *testing.T) {
	s := &stubSurface{query: completeRoute(core.Position3D{X: 1}, core.Position3D{X: 5}, core.Position3D{X: 10})}
	p, _ := newTestPlanner(t, &stubSource{s: s}, lobby, lab)

	first := p.Recompute(core.Position3D{X: 1}, "Lab")
	second := p.Recompute(core.Position3D{X: 1}, "Lab")

	assert.True(t, first.Equal(second))
	assert.Len(t, s.calls, 2, "each call must query the surface afresh")
}

func TestRecompute_DoesNotAliasQueryCorners(t *testing.T) {
	corners := []core.Position3D{{X: 1}, {X: 10}}
	s := &stubSurface{query: completeRoute(corners...)}
	p, _ := newTestPlanner(t, &stubSource{s: s}, lab)

	path := p.Recompute(core.Position3D{X: 1}, "Lab")
	s.query.Corners[0] = core.Position3D{X: 99}

	assert.Equal(t, core.Position3D{X: 1}, path.Corners[0])
}

func TestRecompute_SurvivesPanickingSurface(t *testing.T) {
	s := &stubSurface{panics: true}
	p, buf := newTestPlanner(t, &stubSource{s: s}, lab)

	var path core.Path
	assert.NotPanics(t, func() {
		path = p.Recompute(core.Position3D{}, "Lab")
	})
	assert.True(t, path.IsEmpty())
	assert.Contains(t, buf.String(), "Surface query panicked")
}

func TestRecompute_TracksLatestSurface(t *testing.T) {
	src := &stubSource{}
	p, _ := newTestPlanner(t, src, lab)

	assert.True(t, p.Recompute(core.Position3D{}, "Lab").IsEmpty())

	src.s = &stubSurface{query: completeRoute(core.Position3D{}, core.Position3D{X: 10})}
	assert.Equal(t, 2, p.Recompute(core.Position3D{}, "Lab").Len())
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "complete"},
		{ErrEmptyCatalog, "empty_catalog"},
		{ErrNoSelection, "no_selection"},
		{ErrUnknownSelection, "unknown_selection"},
		{ErrNoActiveSurface, "no_surface"},
		{ErrUnreachable, "unreachable"},
		{ErrQuery, "query_error"},
		{errors.New("other"), "query_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome(tt.err))
	}
}

func TestRecompute_RecordsOutcomeMetric(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		_ = provider.Shutdown(context.Background())
	})

	src := &stubSource{}
	p, _ := newTestPlanner(t, src, lab)

	p.Recompute(core.Position3D{}, "Lab")
	src.s = &stubSurface{query: completeRoute(core.Position3D{}, core.Position3D{X: 10})}
	p.Recompute(core.Position3D{}, "Lab")
	p.Recompute(core.Position3D{}, "Lab")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "planner.recompute" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value("outcome")
				counts[v.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, int64(1), counts["no_surface"])
	assert.Equal(t, int64(2), counts["complete"])
}
