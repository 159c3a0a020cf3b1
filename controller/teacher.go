package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"math-tutor-backend/dao"
	"math-tutor-backend/request"
	"math-tutor-backend/response"
	"math-tutor-backend/service/reconcile"
	"math-tutor-backend/service/tutor"

	"github.com/gin-gonic/gin"
)

// parseExerciseID 读取可选的 exercise_id 查询参数
func parseExerciseID(c *gin.Context) (*uint, bool) {
	raw := c.Query("exercise_id")
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		abortBadRequest(c, ErrInvalidExerciseID, err)
		return nil, false
	}
	exerciseID := uint(id)
	return &exerciseID, true
}

// ListStudentSessions 教师查看会话列表，可按学生和练习过滤
func ListStudentSessions(c *gin.Context) {
	exerciseID, ok := parseExerciseID(c)
	if !ok {
		return
	}

	filter := dao.SessionFilter{ExerciseID: exerciseID}
	if studentID := c.Query("student_id"); studentID != "" {
		filter.StudentIDs = []string{studentID}
	}

	sessions, err := dao.ListSessions(c.Request.Context(), filter)
	if err != nil {
		abortWithError(c, ErrGetSessions, err)
		return
	}

	c.JSON(http.StatusOK, response.Response{
		Data: newSessionsResponse(sessions),
	})
}

func GetSessionDetail(c *gin.Context) {
	ctx := c.Request.Context()
	session, err := dao.GetSession(ctx, c.Param("id"))
	if err != nil {
		abortWithError(c, ErrGetSessionDetail, err)
		return
	}
	if session == nil {
		abortWithError(c, ErrGetSessionDetail, tutor.ErrNotFound)
		return
	}

	messages, err := dao.GetMessagesBySessionID(ctx, session.SessionID)
	if err != nil {
		abortWithError(c, ErrGetSessionDetail, err)
		return
	}
	messagesResp, err := response.NewMessagesResponse(messages)
	if err != nil {
		abortWithError(c, ErrGetSessionDetail, err)
		return
	}

	c.JSON(http.StatusOK, response.Response{
		Data: response.SessionDetailResponse{
			Session:         response.NewSessionResponse(session),
			Messages:        messagesResp,
			WhiteboardState: json.RawMessage(session.WhiteboardState),
			SummaryData:     json.RawMessage(session.SummaryData),
			TeacherAnalysis: session.TeacherAnalysis,
		},
	})
}

// DeleteSession 删除会话及其对话记录
func DeleteSession(c *gin.Context) {
	deleted, err := dao.DeleteSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, ErrDeleteSession, err)
		return
	}
	if !deleted {
		abortWithError(c, ErrDeleteSession, tutor.ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, response.Response{})
}

// GetSummaryStatus 教师查看任意会话的摘要状态
func GetSummaryStatus(c *gin.Context) {
	respondSummaryStatus(c, c.Param("id"))
}

// RequestSummary 手动重新触发摘要生成
func RequestSummary(c *gin.Context) {
	if err := tutor.ServiceInstance.RequestSummary(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, ErrRequestSummary, err)
		return
	}

	c.JSON(http.StatusAccepted, response.Response{})
}

func SubmitLogbook(c *gin.Context) {
	var req request.LogbookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, ErrParseRequest, err)
		return
	}

	analysis, err := reconcile.SubmitLogbook(c.Request.Context(), c.Param("id"), reconcile.Logbook{
		DivergenceAnalysis:  req.DivergenceAnalysis,
		RemediationStrategy: req.RemediationStrategy,
		GeneralNotes:        req.GeneralNotes,
		AIInfluenceRating:   req.AIInfluenceRating,
	})
	if err != nil {
		abortWithError(c, ErrSubmitLogbook, err)
		return
	}

	c.JSON(http.StatusOK, response.Response{
		Data: response.TeacherAnalysisResponse{TeacherAnalysis: analysis},
	})
}

func SubmitCoAnalysis(c *gin.Context) {
	var req request.CoAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, ErrParseRequest, err)
		return
	}

	analysis, err := reconcile.SubmitCoAnalysis(c.Request.Context(), c.Param("id"), req.ErrorAnalysis, req.Notes)
	if err != nil {
		abortWithError(c, ErrSubmitCoAnalysis, err)
		return
	}

	c.JSON(http.StatusOK, response.Response{
		Data: response.TeacherAnalysisResponse{TeacherAnalysis: analysis},
	})
}

func CompareAnalyses(c *gin.Context) {
	comparison, err := reconcile.Compare(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, ErrCompareAnalyses, err)
		return
	}

	c.JSON(http.StatusOK, response.Response{
		Data: comparison,
	})
}

// GetLogbooks 已填写教师分析的会话
func GetLogbooks(c *gin.Context) {
	sessions, err := dao.ListSessions(c.Request.Context(), dao.SessionFilter{
		WithTeacherAnalysis: true,
	})
	if err != nil {
		abortWithError(c, ErrGetLogbooks, err)
		return
	}

	resp := response.GetLogbooksResponse{
		Entries: make([]response.LogbookEntryResponse, 0, len(sessions)),
	}
	for i := range sessions {
		resp.Entries = append(resp.Entries, response.LogbookEntryResponse{
			Session:         response.NewSessionResponse(&sessions[i]),
			TeacherAnalysis: sessions[i].TeacherAnalysis,
		})
	}

	c.JSON(http.StatusOK, response.Response{
		Data: resp,
	})
}
