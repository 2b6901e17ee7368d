package lectures

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/lecturegen/internal/data/repos/testutil"
	types "github.com/yungbote/lecturegen/internal/domain"
	"github.com/yungbote/lecturegen/internal/pkg/dbctx"
)

func TestLectureRunRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewLectureRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	older := testutil.SeedLectureRun(t, ctx, tx, "Volcanoes", types.RunStatusSucceeded, now.Add(-2*time.Hour))
	newer := testutil.SeedLectureRun(t, ctx, tx, "Glaciers", types.RunStatusRunning, now.Add(-1*time.Hour))

	created, err := repo.Create(dbc, &types.LectureRun{Topic: "Tides", DurationMinutes: 3})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == uuid.Nil || created.Status != types.RunStatusQueued || created.Stage != types.RunStatusQueued {
		t.Fatalf("defaults: got id=%s status=%q stage=%q", created.ID, created.Status, created.Stage)
	}

	got, err := repo.GetByID(dbc, older.ID)
	if err != nil || got == nil || got.Topic != "Volcanoes" {
		t.Fatalf("GetByID: got=%+v err=%v", got, err)
	}
	if missing, err := repo.GetByID(dbc, uuid.New()); err != nil || missing != nil {
		t.Fatalf("GetByID missing: got=%+v err=%v", missing, err)
	}

	list, err := repo.List(dbc, ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 || list[0].ID != created.ID || list[2].ID != older.ID {
		t.Fatalf("List order: got=%d rows", len(list))
	}
	running, err := repo.List(dbc, ListFilter{Status: types.RunStatusRunning})
	if err != nil || len(running) != 1 || running[0].ID != newer.ID {
		t.Fatalf("List status filter: got=%d err=%v", len(running), err)
	}

	if err := repo.UpdateFields(dbc, older.ID, map[string]interface{}{
		"stage":     "done",
		"cloud_url": "https://cdn.example.com/v.mp4",
		"plan":      datatypes.JSON([]byte(`{"slides":[],"quiz":[]}`)),
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, _ = repo.GetByID(dbc, older.ID)
	if got.Stage != "done" || got.CloudURL != "https://cdn.example.com/v.mp4" {
		t.Fatalf("updated: got stage=%q url=%q", got.Stage, got.CloudURL)
	}

	n, err := repo.FailUnfinished(dbc, "server restarted")
	if err != nil {
		t.Fatalf("FailUnfinished: %v", err)
	}
	if n != 2 {
		t.Fatalf("FailUnfinished rows: want=2 got=%d", n)
	}
	got, _ = repo.GetByID(dbc, newer.ID)
	if got.Status != types.RunStatusFailed || got.Error != "server restarted" {
		t.Fatalf("failed run: got status=%q error=%q", got.Status, got.Error)
	}
}
