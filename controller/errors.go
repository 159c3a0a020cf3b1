package controller

import (
	"errors"
	"log/slog"
	"net/http"

	"math-tutor-backend/model"
	"math-tutor-backend/response"
	"math-tutor-backend/service/reconcile"
	"math-tutor-backend/service/summarization"
	"math-tutor-backend/service/tutor"

	"github.com/gin-gonic/gin"
)

var (
	ErrParseRequest = errors.New("failed to parse request")

	ErrCreateSession      = errors.New("failed to create a tutoring session")
	ErrGetSessions        = errors.New("failed to get tutoring sessions")
	ErrResumeSession      = errors.New("failed to resume the tutoring session")
	ErrInteract           = errors.New("failed to get a reply from the tutor")
	ErrSaveWhiteboard     = errors.New("failed to save whiteboard")
	ErrTerminateSession   = errors.New("failed to end the tutoring session")
	ErrGetSummary         = errors.New("failed to get session summary")
	ErrRequestSummary     = errors.New("failed to request session summary")
	ErrGetSessionDetail   = errors.New("failed to get session detail")
	ErrDeleteSession      = errors.New("failed to delete the tutoring session")
	ErrSubmitLogbook      = errors.New("failed to submit logbook")
	ErrSubmitCoAnalysis   = errors.New("failed to submit co-analysis")
	ErrCompareAnalyses    = errors.New("failed to compare analyses")
	ErrGetLogbooks        = errors.New("failed to get logbooks")
	ErrGetAnalytics       = errors.New("failed to get analytics")
	ErrGetProgression     = errors.New("failed to get progression")
	ErrInvalidExerciseID  = errors.New("invalid exercise id")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidMessageBody = errors.New("invalid message content")
)

// 服务层错误到 HTTP 状态码的映射，未列出的错误按 500 处理
var serviceErrors = []struct {
	err    error
	status int
}{
	{tutor.ErrNotFound, http.StatusNotFound},
	{reconcile.ErrNotFound, http.StatusNotFound},
	{summarization.ErrSessionNotFound, http.StatusNotFound},
	{tutor.ErrInvalidState, http.StatusConflict},
	{tutor.ErrExtractionFailure, http.StatusUnprocessableEntity},
	{tutor.ErrUpstreamFailure, http.StatusBadGateway},
	{tutor.ErrEmptyImage, http.StatusBadRequest},
	{reconcile.ErrInvalidRating, http.StatusBadRequest},
	{model.ErrEmptyContent, http.StatusBadRequest},
	{summarization.ErrQueueFull, http.StatusServiceUnavailable},
}

// abortWithError 记录错误并按服务层错误类型返回状态码
// 可识别的错误返回其描述，其余只返回 msg
func abortWithError(c *gin.Context, msg error, err error) {
	status := http.StatusInternalServerError
	text := msg.Error()
	for _, e := range serviceErrors {
		if errors.Is(err, e.err) {
			status = e.status
			text = msg.Error() + ": " + e.err.Error()
			break
		}
	}

	if status >= http.StatusInternalServerError {
		slog.Error(msg.Error(), "err", err)
	} else {
		slog.Info(msg.Error(), "err", err)
	}
	c.AbortWithStatusJSON(status, response.Response{
		Msg: text,
	})
}

func abortBadRequest(c *gin.Context, msg error, err error) {
	slog.Info(msg.Error(), "err", err)
	c.AbortWithStatusJSON(http.StatusBadRequest, response.Response{
		Msg: msg.Error(),
	})
}
