package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/wayfind/indoornav/internal/config"
	"github.com/wayfind/indoornav/internal/dispatcher"
	"github.com/wayfind/indoornav/internal/geo"
	"github.com/wayfind/indoornav/internal/logging"
	"github.com/wayfind/indoornav/internal/monitor"
	"github.com/wayfind/indoornav/internal/navigator"
	"github.com/wayfind/indoornav/internal/render"
	"github.com/wayfind/indoornav/internal/replay"
	"github.com/wayfind/indoornav/internal/storage"
	"github.com/wayfind/indoornav/pkg/core"
)

var (
	scenarioFile string
	tickInterval time.Duration
)

// runSummary is printed when a replay finishes.
type runSummary struct {
	Scenario    string            `json:"scenario"`
	Session     string            `json:"session"`
	Frames      uint64            `json:"frames"`
	Routes      int               `json:"routes"`
	Destination string            `json:"destination"`
	Corners     []core.Position3D `json:"corners"`
	Length      float64           `json:"length"`
	Export      string            `json:"export,omitempty"`
	Interrupted bool              `json:"interrupted,omitempty"`
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a scenario",
	Long: `Replay a scenario of marker sightings, destination choices, movement and
ticks against the configured surface. Every route update goes to the log and,
when storage is configured, to the route history.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runScenario(ctx, cmd.OutOrStdout())
	},
}

func init() {
	runCmd.Flags().StringVarP(&scenarioFile, "scenario", "s", "", "Scenario file (JSON)")
	runCmd.Flags().DurationVar(&tickInterval, "tick-interval", 0, "Real-time delay between ticks")
	_ = runCmd.MarkFlagRequired("scenario")
}

func runScenario(ctx context.Context, out io.Writer) (err error) {
	sc, err := replay.LoadScenario(scenarioFile)
	if err != nil {
		return err
	}

	a, err := newApp(appOptions{})
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.Close()) }()
	logger := a.logger

	engine, err := loadEngine()
	if err != nil {
		return err
	}
	cat, err := loadCatalog(logger)
	if err != nil {
		return err
	}

	history, err := createStorageBackend(config.GetStorageConfig(), logger)
	if err != nil {
		return err
	}
	if err := history.Init(); err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer func() { err = errors.Join(err, history.Close()) }()

	session := &core.Session{
		ID:        uuid.NewString(),
		Site:      config.GetString("site"),
		StartTime: a.start,
	}
	if err := history.StartSession(session); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	navCfg := config.GetNavigatorConfig()
	events, err := dispatcher.New(logging.NewDispatcherLogger(logger), navCfg.BufferSize)
	if err != nil {
		return err
	}

	rig := replay.NewRig(sc)
	latest := &render.Latest{}
	nav, err := navigator.New(navigator.Dependencies{
		Engine:     engine,
		Catalog:    cat,
		Tracker:    rig.Feed,
		Selector:   rig.Dropdown,
		Player:     rig.Player,
		Renderer:   render.NewMulti(render.NewLogRenderer(logger), render.NewRecorder(history, logger), latest),
		Dispatcher: events,
		History:    history,
		Logger:     logger,
		Options: navigator.Options{
			ReleasePrevious: navCfg.ReleasePrevious,
			SkipUnchanged:   navCfg.SkipUnchanged,
		},
	})
	if err != nil {
		return err
	}
	a.trackFrame(nav.Frame)

	status, err := startMonitor(history, logger)
	if err != nil {
		return err
	}
	sample := func() {
		if status != nil {
			status.Update(sessionStatus(session.ID, nav, latest))
		}
	}
	defer func() {
		if status != nil {
			sample()
			status.Stop()
		}
	}()

	logger.Info("Replaying scenario",
		"scenario", sc.Name,
		"session", session.ID,
		"surface", engine.Name(),
		"steps", len(sc.Steps),
	)
	if err := nav.Start(); err != nil {
		return err
	}

	runErr := replay.Run(ctx, sc, rig, nav, replay.Hooks{
		TickInterval: tickInterval,
		BeforeStep: func(i int, step replay.Step) {
			logger.Debug("Scenario step", "index", i, "kind", step.Kind(), "ticks", step.Ticks)
		},
		AfterTick: func(int) { sample() },
	})
	interrupted := errors.Is(runErr, context.Canceled)
	if runErr != nil && !interrupted {
		_ = nav.Close()
		return runErr
	}

	if err := nav.Close(); err != nil {
		logger.Warn("Closing navigator", "error", err)
	}
	if err := history.EndSession(); err != nil && !errors.Is(err, storage.ErrNoSession) {
		return fmt.Errorf("ending session: %w", err)
	}

	last := latest.Update()
	summary := runSummary{
		Scenario:    sc.Name,
		Session:     session.ID,
		Frames:      nav.Frame(),
		Routes:      latest.Count(),
		Destination: last.Destination,
		Corners:     last.Path.Corners,
		Length:      geo.PathLength(last.Path),
		Interrupted: interrupted,
	}
	if exp, ok := history.(storage.Exportable); ok {
		summary.Export = exp.GetExportedFilePath()
	}
	return printRunSummary(out, summary)
}

// startMonitor starts the status file writer when monitor.statusFile is set.
func startMonitor(history storage.Backend, logger *slog.Logger) (*monitor.Service, error) {
	cfg := config.GetMonitorConfig()
	cfg.StatusFile = resolvePath(cfg.StatusFile)
	if cfg.StatusFile == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.StatusFile), 0o755); err != nil {
		return nil, fmt.Errorf("creating status directory: %w", err)
	}

	var pending func() int
	if p, ok := history.(interface{ Pending() int }); ok {
		pending = p.Pending
	}
	s := monitor.NewService(monitor.Dependencies{
		Logger:     logger,
		StatusFile: cfg.StatusFile,
		Interval:   cfg.Interval,
		Pending:    pending,
	})
	if err := s.Start(); err != nil {
		return nil, err
	}
	return s, nil
}

func sessionStatus(session string, nav *navigator.Navigator, latest *render.Latest) monitor.Status {
	last := latest.Update()
	return monitor.Status{
		Time:        time.Now(),
		Session:     session,
		Frame:       nav.Frame(),
		Routes:      latest.Count(),
		Destination: last.Destination,
		Corners:     last.Path.Len(),
		Generation:  nav.Alignment().Generation(),
		Abandoned:   nav.Alignment().Abandoned(),
	}
}

func printRunSummary(out io.Writer, s runSummary) error {
	if jsonOutput {
		return outputJSON(out, s)
	}

	if s.Interrupted {
		printWarning(out, "Replay interrupted")
	} else {
		printSuccess(out, fmt.Sprintf("Replayed %s", s.Scenario))
	}
	printLabelValue(out, "session", s.Session)
	printLabelValue(out, "frames", fmt.Sprintf("%d", s.Frames))
	printLabelValue(out, "routes", fmt.Sprintf("%d", s.Routes))
	if len(s.Corners) == 0 {
		printLabelValue(out, "last route", "none")
	} else {
		printLabelValue(out, "last route", fmt.Sprintf("%s, %d corners, %.2f m", s.Destination, len(s.Corners), s.Length))
	}
	if s.Export != "" {
		printLabelValue(out, "export", s.Export)
	}
	return nil
}
