package models

import "time"

// DatasetRevision is a single-row table counting committed dataset writes.
// Every process that reads the table derives the same snapshot version from it.
// DatasetID is generated once per database and tells datasets apart that
// happen to share a revision number.
type DatasetRevision struct {
	ID        uint      `gorm:"primaryKey"`
	DatasetID string    `gorm:"size:36"`
	Revision  uint64    `gorm:"not null;default:0"`
	Source    string    `gorm:"size:255"`
	UpdatedAt time.Time
}

func (DatasetRevision) TableName() string { return "dataset_revisions" }

// RefreshEvent is published after a dataset write so other processes can reload.
type RefreshEvent struct {
	InstanceID string    `json:"instance_id"`
	Version    uint64    `json:"snapshot_version"`
	Count      int       `json:"municipalities_count"`
	Source     string    `json:"source"`
	At         time.Time `json:"at"`
}
