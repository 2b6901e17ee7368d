package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/lecturegen/internal/http/handlers"
	httpMW "github.com/yungbote/lecturegen/internal/http/middleware"
	"github.com/yungbote/lecturegen/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string

	LectureHandler *httpH.LectureHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.LectureHandler != nil {
			api.POST("/lectures", cfg.LectureHandler.CreateLecture)
			api.GET("/lectures", cfg.LectureHandler.ListLectures)
			api.GET("/lectures/:id", cfg.LectureHandler.GetLecture)
			api.POST("/lectures/plan", cfg.LectureHandler.PreviewPlan)
		}
	}
	return r
}
