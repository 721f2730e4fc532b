package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wayfind/indoornav/pkg/core"
)

// SessionExport is the root JSON structure
type SessionExport struct {
	SessionID  string          `json:"sessionId"`
	Site       string          `json:"site"`
	StartTime  time.Time       `json:"startTime"`
	EndFrame   uint64          `json:"endFrame"`
	Routes     []RouteJSON     `json:"routes"`
	Alignments []AlignmentJSON `json:"alignments"`
}

// RouteJSON is one path update. Corners are [x, y, z] triples.
type RouteJSON struct {
	Frame       uint64       `json:"frame"`
	Time        time.Time    `json:"time"`
	Destination string       `json:"destination"`
	User        [3]float64   `json:"user"`
	Corners     [][3]float64 `json:"corners"`
	Length      float64      `json:"length"`
}

// AlignmentJSON is one surface pose change. Rotation is [w, x, y, z].
type AlignmentJSON struct {
	Frame    uint64     `json:"frame"`
	Time     time.Time  `json:"time"`
	MarkerID string     `json:"markerId"`
	Created  bool       `json:"created"`
	Position [3]float64 `json:"position"`
	Rotation [4]float64 `json:"rotation"`
}

func triple(p core.Position3D) [3]float64 {
	return [3]float64{p.X, p.Y, p.Z}
}

// exportJSON writes the session data to a (optionally gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	site := strings.ReplaceAll(b.session.Site, " ", "_")
	site = strings.ReplaceAll(site, ":", "_")
	timestamp := b.session.StartTime.Format("20060102_150405")

	filename := fmt.Sprintf("%s_%s.json", site, timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = b.writeGzipJSON(outputPath, export)
	} else {
		err = b.writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() SessionExport {
	export := SessionExport{
		SessionID:  b.session.ID,
		Site:       b.session.Site,
		StartTime:  b.session.StartTime,
		Routes:     make([]RouteJSON, 0, len(b.routes)),
		Alignments: make([]AlignmentJSON, 0, len(b.alignments)),
	}

	for _, r := range b.routes {
		corners := make([][3]float64, len(r.Corners))
		for i, c := range r.Corners {
			corners[i] = triple(c)
		}
		export.Routes = append(export.Routes, RouteJSON{
			Frame:       r.Frame,
			Time:        r.Time,
			Destination: r.Destination,
			User:        triple(r.User),
			Corners:     corners,
			Length:      r.Length,
		})
		export.EndFrame = max(export.EndFrame, r.Frame)
	}

	for _, a := range b.alignments {
		rot := a.Pose.Rotation
		export.Alignments = append(export.Alignments, AlignmentJSON{
			Frame:    a.Frame,
			Time:     a.Time,
			MarkerID: a.MarkerID,
			Created:  a.Created,
			Position: triple(a.Pose.Position),
			Rotation: [4]float64{rot.W, rot.X, rot.Y, rot.Z},
		})
		export.EndFrame = max(export.EndFrame, a.Frame)
	}

	return export
}

func (b *Backend) writeJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func (b *Backend) writeGzipJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	if err := json.NewEncoder(gw).Encode(data); err != nil {
		gw.Close()
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return gw.Close()
}
