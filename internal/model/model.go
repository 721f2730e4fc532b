package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"

	"github.com/wayfind/indoornav/pkg/core"
)

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&Route{},
	&Alignment{},
}

// Session is one navigator run
type Session struct {
	ID        string       `json:"id" gorm:"primaryKey;size:36"` // uuid
	Site      string       `json:"site" gorm:"size:127;index"`
	StartTime time.Time    `json:"startTime"`
	EndTime   sql.NullTime `json:"endTime"`
}

// Route is one rendered path update
type Route struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement"`
	SessionID   string    `json:"sessionId" gorm:"size:36;index:idx_route_session_frame"`
	Session     Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Frame       uint64    `json:"frame" gorm:"index:idx_route_session_frame"`
	Time        time.Time `json:"time"`
	Destination string    `json:"destination" gorm:"size:127"`

	User        datatypes.JSONType[core.Position3D] `json:"user"`
	Corners     datatypes.JSON                      `json:"corners"` // [[x,y,z],...]
	CornerCount int                                 `json:"cornerCount"`
	Length      float64                             `json:"length"`
	Line        string                              `json:"line" gorm:"type:text"` // WKT, floor plane as XY
}

// Alignment is one change of the navigable surface pose
type Alignment struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement"`
	SessionID string    `json:"sessionId" gorm:"size:36;index"`
	Session   Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Frame     uint64    `json:"frame"`
	Time      time.Time `json:"time"`
	MarkerID  string    `json:"markerId" gorm:"size:127"`
	Created   bool      `json:"created"`

	Pose datatypes.JSONType[core.Pose] `json:"pose"`
}
