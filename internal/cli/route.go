package cli

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"
	"github.com/wayfind/indoornav/internal/alignment"
	"github.com/wayfind/indoornav/internal/geo"
	"github.com/wayfind/indoornav/internal/planner"
	"github.com/wayfind/indoornav/pkg/core"
)

var (
	routeFrom      string
	routeTo        string
	routeMarker    string
	routeMarkerYaw float64
)

// routeResult is the JSON form of a single route query.
type routeResult struct {
	Destination string            `json:"destination"`
	From        core.Position3D   `json:"from"`
	Corners     []core.Position3D `json:"corners"`
	Length      float64           `json:"length"`
	WKT         string            `json:"wkt"`
}

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Compute one route",
	Long: `Align the surface to a single marker and print the shortest route from a
point to a destination. Without --to the first destination is used.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := geo.Position3DFromString(routeFrom)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		markerPos, err := geo.Position3DFromString(routeMarker)
		if err != nil {
			return fmt.Errorf("--marker: %w", err)
		}

		a, err := newApp(appOptions{logWriter: cmd.ErrOrStderr()})
		if err != nil {
			return err
		}
		defer a.Close()

		engine, err := loadEngine()
		if err != nil {
			return err
		}
		cat, err := loadCatalog(a.logger)
		if err != nil {
			return err
		}

		name := routeTo
		if name == "" {
			first, ok := cat.First()
			if !ok {
				return planner.ErrEmptyCatalog
			}
			name = first.Name
		}

		surfaces := alignment.New(engine, a.logger)
		defer surfaces.Close()
		surfaces.OnMarkerAdded(core.Marker{
			ID: "cli",
			Pose: core.Pose{
				Position: markerPos,
				Rotation: geo.YawRotation(routeMarkerYaw * math.Pi / 180),
			},
		})

		p, err := planner.New(planner.Dependencies{
			Surfaces: surfaces,
			Catalog:  cat,
			Logger:   a.logger,
		})
		if err != nil {
			return err
		}
		path, err := p.Plan(from, name)
		if err != nil {
			return fmt.Errorf("no route to %q: %w", name, err)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, routeResult{
				Destination: name,
				From:        from,
				Corners:     path.Corners,
				Length:      geo.PathLength(path),
				WKT:         geo.PathLineString(path).AsText(),
			})
		}

		printSuccess(out, fmt.Sprintf("Route to %s: %d corners, %.2f m", name, path.Len(), geo.PathLength(path)))
		for i, c := range path.Corners {
			printLabelValue(out, fmt.Sprintf("%d", i), formatPosition(c.X, c.Y, c.Z))
		}
		return nil
	},
}

func init() {
	routeCmd.Flags().StringVar(&routeFrom, "from", "0,0,0", "Start position as x,y,z")
	routeCmd.Flags().StringVar(&routeTo, "to", "", "Destination name")
	routeCmd.Flags().StringVar(&routeMarker, "marker", "0,0,0", "Marker position as x,y,z")
	routeCmd.Flags().Float64Var(&routeMarkerYaw, "marker-yaw", 0, "Marker heading in degrees about +Y")
}
