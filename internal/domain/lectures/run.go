package lectures

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// LectureRun records one pipeline run.
type LectureRun struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Topic           string         `gorm:"column:topic;not null" json:"topic"`
	Audience        string         `gorm:"column:audience" json:"audience,omitempty"`
	DurationMinutes int            `gorm:"column:duration_minutes;not null;default:0" json:"duration_minutes"`
	Status          string         `gorm:"column:status;not null;index" json:"status"`
	Stage           string         `gorm:"column:stage;not null" json:"stage"`
	Prompt          string         `gorm:"column:prompt" json:"-"`
	Plan            datatypes.JSON `gorm:"column:plan" json:"plan,omitempty"`
	VideoPath       string         `gorm:"column:video_path" json:"video_path,omitempty"`
	CloudURL        string         `gorm:"column:cloud_url" json:"cloud_url,omitempty"`
	Error           string         `gorm:"column:error" json:"error,omitempty"`
	StartedAt       *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt      *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (LectureRun) TableName() string { return "lecture_run" }

func (r *LectureRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = RunStatusQueued
	}
	if r.Stage == "" {
		r.Stage = RunStatusQueued
	}
	return nil
}
