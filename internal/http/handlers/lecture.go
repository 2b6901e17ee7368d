package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/lecturegen/internal/data/repos"
	"github.com/yungbote/lecturegen/internal/http/response"
	"github.com/yungbote/lecturegen/internal/services"
)

type LectureHandler struct {
	lectures services.LectureService
}

func NewLectureHandler(lectures services.LectureService) *LectureHandler {
	return &LectureHandler{lectures: lectures}
}

// POST /api/lectures
func (h *LectureHandler) CreateLecture(c *gin.Context) {
	var req services.SubmitLectureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	run, err := h.lectures.Submit(c.Request.Context(), req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Header("Location", "/api/lectures/"+run.ID.String())
	response.RespondAccepted(c, gin.H{"lecture": run})
}

// GET /api/lectures/:id
func (h *LectureHandler) GetLecture(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_lecture_id", err)
		return
	}
	run, err := h.lectures.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"lecture": run})
}

// GET /api/lectures?status=&limit=&offset=
func (h *LectureHandler) ListLectures(c *gin.Context) {
	filter := repos.LectureRunFilter{Status: c.Query("status")}
	var err error
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
		return
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_offset", err)
		return
	}
	runs, err := h.lectures.List(c.Request.Context(), filter)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"lectures": runs})
}

// POST /api/lectures/plan
func (h *LectureHandler) PreviewPlan(c *gin.Context) {
	var req services.SubmitLectureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	plan, err := h.lectures.PreviewPlan(c.Request.Context(), req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"plan": plan})
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}
