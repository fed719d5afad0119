package model

import (
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Event{},
	&Step{},
}

////////////////////////
// SIMULATION MODELS
////////////////////////

// Step is one row of the flat step table. Rows are stored in the order the
// simulation wrote them, which is not track order.
type Step struct {
	ID             uint    `json:"-" gorm:"primarykey;autoIncrement"`
	EventID        int     `json:"event_id" gorm:"index:idx_step_order,priority:1"`
	TrackID        int     `json:"track_id" gorm:"index:idx_step_order,priority:2"`
	TrackStepCount int     `json:"track_step_count" gorm:"index:idx_step_order,priority:3"`
	Particle       int     `json:"particle"`
	Process        string  `json:"process" gorm:"size:32"`
	PrePosX        float64 `json:"pre_pos_x"`
	PrePosY        float64 `json:"pre_pos_y"`
	PrePosZ        float64 `json:"pre_pos_z"`
	PostPosX       float64 `json:"post_pos_x"`
	PostPosY       float64 `json:"post_pos_y"`
	PostPosZ       float64 `json:"post_pos_z"`
}

func (*Step) TableName() string {
	return "steps"
}

// Event is one simulated event with its tracks stored as JSON arrays.
type Event struct {
	ID          uint           `json:"-" gorm:"primarykey;autoIncrement"`
	EventID     int            `json:"event_id" gorm:"uniqueIndex"`
	Primaries   datatypes.JSON `json:"primaries"`
	Secondaries datatypes.JSON `json:"secondaries"`
}

func (*Event) TableName() string {
	return "events"
}
