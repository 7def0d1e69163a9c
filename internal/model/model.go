// Package model defines the GORM models for recorded flight data. One
// FlightSession is written per simulation run, with its role bindings and a
// TickRecord per control step.
package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FlightSession is one simulation run of one quadcopter instance.
type FlightSession struct {
	gorm.Model
	QuadObjectID int64     `json:"quadObjectId"`
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime"`
	// Bindings is the role name -> object id map resolved at construction,
	// stored as a JSON document.
	Bindings datatypes.JSON `json:"bindings"`

	ExtensionVersion string `json:"extensionVersion"`

	Ticks []TickRecord `json:"-" gorm:"foreignKey:SessionID"`
}

// RoleBinding is the JSON element stored in FlightSession.Bindings.
type RoleBinding struct {
	Role     string `json:"role"`
	Bound    bool   `json:"bound"`
	ObjectID int64  `json:"objectId,omitempty"`
	Name     string `json:"name,omitempty"`
}

// TickRecord is the outcome of one control tick.
type TickRecord struct {
	gorm.Model
	SessionID uint      `json:"sessionId" gorm:"index"`
	Frame     uint      `json:"frame"`
	Time      time.Time `json:"time"`

	AltError  float32 `json:"altError"`
	Thrust    float32 `json:"thrust"`
	AlphaCorr float32 `json:"alphaCorr"`
	BetaCorr  float32 `json:"betaCorr"`
	RotCorr   float32 `json:"rotCorr"`

	Motor0 float32 `json:"motor0"`
	Motor1 float32 `json:"motor1"`
	Motor2 float32 `json:"motor2"`
	Motor3 float32 `json:"motor3"`

	// Aborted marks a tick that was cut short by a failed host read; the
	// numeric fields before the failing read keep their computed values.
	Aborted bool   `json:"aborted"`
	Fault   string `json:"fault,omitempty"`
}

// CameraDump records one debug image written by the camera dumper.
type CameraDump struct {
	gorm.Model
	SessionID uint    `json:"sessionId" gorm:"index"`
	Camera    string  `json:"camera"`
	SimTime   float32 `json:"simTime"`
	Path      string  `json:"path"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
}

// DatabaseModels lists every model migrated on Postgres.
var DatabaseModels = []any{
	&FlightSession{},
	&TickRecord{},
	&CameraDump{},
}

// DatabaseModelsSQLite lists every model migrated on SQLite.
var DatabaseModelsSQLite = DatabaseModels
