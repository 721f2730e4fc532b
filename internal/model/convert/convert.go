// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/wayfind/indoornav/internal/geo"
	"github.com/wayfind/indoornav/internal/model"
	"github.com/wayfind/indoornav/pkg/core"
)

// cornersToJSON converts corners to [[x,y,z],...] for DB storage.
func cornersToJSON(corners []core.Position3D) datatypes.JSON {
	if len(corners) == 0 {
		return datatypes.JSON("[]")
	}
	triples := make([][3]float64, len(corners))
	for i, c := range corners {
		triples[i] = [3]float64{c.X, c.Y, c.Z}
	}
	data, _ := json.Marshal(triples)
	return datatypes.JSON(data)
}

func cornersFromJSON(data datatypes.JSON) ([]core.Position3D, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var triples [][3]float64
	if err := json.Unmarshal(data, &triples); err != nil {
		return nil, fmt.Errorf("decoding corners: %w", err)
	}
	corners := make([]core.Position3D, len(triples))
	for i, t := range triples {
		corners[i] = core.Position3D{X: t[0], Y: t[1], Z: t[2]}
	}
	return corners, nil
}

// CoreToSession converts a core.Session. An empty ID is assigned a new uuid
// and written back to s.
func CoreToSession(s *core.Session) (model.Session, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	} else if _, err := uuid.Parse(s.ID); err != nil {
		return model.Session{}, fmt.Errorf("invalid session id %q: %w", s.ID, err)
	}
	return model.Session{
		ID:        s.ID,
		Site:      s.Site,
		StartTime: s.StartTime,
	}, nil
}

// CoreToRoute converts a core.RouteRecord for the given session.
func CoreToRoute(sessionID string, r core.RouteRecord) model.Route {
	path := core.NewPath(r.Corners)
	return model.Route{
		SessionID:   sessionID,
		Frame:       r.Frame,
		Time:        r.Time,
		Destination: r.Destination,
		User:        datatypes.NewJSONType(r.User),
		Corners:     cornersToJSON(r.Corners),
		CornerCount: len(r.Corners),
		Length:      r.Length,
		Line:        geo.PathLineString(path).AsText(),
	}
}

// RouteToCore converts a stored route back to a core.RouteRecord.
func RouteToCore(r model.Route) (core.RouteRecord, error) {
	corners, err := cornersFromJSON(r.Corners)
	if err != nil {
		return core.RouteRecord{}, err
	}
	return core.RouteRecord{
		Frame:       r.Frame,
		Time:        r.Time,
		Destination: r.Destination,
		User:        r.User.Data(),
		Corners:     corners,
		Length:      r.Length,
	}, nil
}

// CoreToAlignment converts a core.AlignmentRecord for the given session.
func CoreToAlignment(sessionID string, a core.AlignmentRecord) model.Alignment {
	return model.Alignment{
		SessionID: sessionID,
		Frame:     a.Frame,
		Time:      a.Time,
		MarkerID:  a.MarkerID,
		Created:   a.Created,
		Pose:      datatypes.NewJSONType(a.Pose),
	}
}

// AlignmentToCore converts a stored alignment back to a core.AlignmentRecord.
func AlignmentToCore(a model.Alignment) core.AlignmentRecord {
	return core.AlignmentRecord{
		Frame:    a.Frame,
		Time:     a.Time,
		MarkerID: a.MarkerID,
		Created:  a.Created,
		Pose:     a.Pose.Data(),
	}
}
