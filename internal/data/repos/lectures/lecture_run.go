package lectures

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/lecturegen/internal/domain"
	"github.com/yungbote/lecturegen/internal/pkg/dbctx"
	"github.com/yungbote/lecturegen/internal/platform/logger"
)

type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

type LectureRunRepo interface {
	Create(dbc dbctx.Context, run *types.LectureRun) (*types.LectureRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.LectureRun, error)
	List(dbc dbctx.Context, filter ListFilter) ([]*types.LectureRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	// FailUnfinished marks queued or running runs failed. Used at startup to
	// close out runs orphaned by a restart.
	FailUnfinished(dbc dbctx.Context, reason string) (int64, error)
}

type lectureRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLectureRunRepo(db *gorm.DB, baseLog *logger.Logger) LectureRunRepo {
	return &lectureRunRepo{
		db:  db,
		log: baseLog.With("repo", "LectureRunRepo"),
	}
}

func (r *lectureRunRepo) tx(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx)
}

func (r *lectureRunRepo) Create(dbc dbctx.Context, run *types.LectureRun) (*types.LectureRun, error) {
	if run == nil {
		return nil, errors.New("run required")
	}
	if err := r.tx(dbc).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *lectureRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.LectureRun, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var run types.LectureRun
	err := r.tx(dbc).Where("id = ?", id).Limit(1).Find(&run).Error
	if err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

func (r *lectureRunRepo) List(dbc dbctx.Context, filter ListFilter) ([]*types.LectureRun, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := r.tx(dbc).Model(&types.LectureRun{})
	if s := strings.TrimSpace(filter.Status); s != "" {
		q = q.Where("status = ?", s)
	}
	var out []*types.LectureRun
	if err := q.Order("created_at DESC").Limit(limit).Offset(max(filter.Offset, 0)).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *lectureRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return errors.New("id required")
	}
	if len(updates) == 0 {
		return nil
	}
	return r.tx(dbc).Model(&types.LectureRun{}).Where("id = ?", id).Updates(updates).Error
}

func (r *lectureRunRepo) FailUnfinished(dbc dbctx.Context, reason string) (int64, error) {
	res := r.tx(dbc).Model(&types.LectureRun{}).
		Where("status IN ?", []string{types.RunStatusQueued, types.RunStatusRunning}).
		Updates(map[string]interface{}{
			"status": types.RunStatusFailed,
			"error":  reason,
		})
	return res.RowsAffected, res.Error
}
