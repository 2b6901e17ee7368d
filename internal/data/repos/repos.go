package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/lecturegen/internal/data/repos/lectures"
	"github.com/yungbote/lecturegen/internal/platform/logger"
)

type LectureRunRepo = lectures.LectureRunRepo
type LectureRunFilter = lectures.ListFilter

type Repos struct {
	LectureRuns LectureRunRepo
}

func New(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		LectureRuns: lectures.NewLectureRunRepo(db, log),
	}
}
