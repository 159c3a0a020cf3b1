package controller

import (
	"encoding/json"
	"io"
	"net/http"

	"math-tutor-backend/dao"
	"math-tutor-backend/middleware"
	"math-tutor-backend/model"
	"math-tutor-backend/request"
	"math-tutor-backend/response"
	"math-tutor-backend/service/summarization"
	"math-tutor-backend/service/tutor"

	"github.com/gin-gonic/gin"
)

func CreateSession(c *gin.Context) {
	var req request.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, ErrParseRequest, err)
		return
	}

	studentID := c.GetString(middleware.ContextUserID)
	result, err := tutor.ServiceInstance.Create(c.Request.Context(), studentID, req.ExerciseID)
	if err != nil {
		abortWithError(c, ErrCreateSession, err)
		return
	}

	respondCreated(c, result)
}

// CreateSessionFromImage 从题目图片中识别题目与答案后创建会话
func CreateSessionFromImage(c *gin.Context) {
	var req request.CreateSessionFromImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, ErrParseRequest, err)
		return
	}

	studentID := c.GetString(middleware.ContextUserID)
	result, err := tutor.ServiceInstance.CreateFromImage(c.Request.Context(), studentID, req.Image, req.ExerciseID)
	if err != nil {
		abortWithError(c, ErrCreateSession, err)
		return
	}

	respondCreated(c, result)
}

func respondCreated(c *gin.Context, result *tutor.CreateResult) {
	resp := response.CreateSessionResponse{
		Session: response.NewSessionResponse(result.Session),
	}
	if result.Welcome != nil {
		welcome, err := response.NewMessageResponse(result.Welcome)
		if err != nil {
			abortWithError(c, ErrCreateSession, err)
			return
		}
		resp.Welcome = &welcome
	}

	c.JSON(http.StatusCreated, response.Response{
		Data: resp,
	})
}

// GetSessions 当前学生的全部会话，最近的在前
func GetSessions(c *gin.Context) {
	studentID := c.GetString(middleware.ContextUserID)
	sessions, err := dao.ListSessions(c.Request.Context(), dao.SessionFilter{
		StudentIDs: []string{studentID},
	})
	if err != nil {
		abortWithError(c, ErrGetSessions, err)
		return
	}

	c.JSON(http.StatusOK, response.Response{
		Data: newSessionsResponse(sessions),
	})
}

func newSessionsResponse(sessions []model.Session) response.GetSessionsResponse {
	resp := response.GetSessionsResponse{
		Sessions: make([]response.SessionResponse, 0, len(sessions)),
	}
	for i := range sessions {
		resp.Sessions = append(resp.Sessions, response.NewSessionResponse(&sessions[i]))
	}
	return resp
}

// ResumeSession 返回对话记录和白板，已结束的会话会被重新打开
func ResumeSession(c *gin.Context) {
	studentID := c.GetString(middleware.ContextUserID)
	result, err := tutor.ServiceInstance.Resume(c.Request.Context(), studentID, c.Param("id"))
	if err != nil {
		abortWithError(c, ErrResumeSession, err)
		return
	}

	messages, err := response.NewMessagesResponse(result.Messages)
	if err != nil {
		abortWithError(c, ErrResumeSession, err)
		return
	}

	c.JSON(http.StatusOK, response.Response{
		Data: response.ResumeSessionResponse{
			Session:         response.NewSessionResponse(result.Session),
			Messages:        messages,
			WhiteboardState: json.RawMessage(result.Session.WhiteboardState),
			DocumentURL:     result.DocumentURL,
		},
	})
}

func Interact(c *gin.Context) {
	var req request.InteractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, ErrParseRequest, err)
		return
	}

	content, err := model.ParseContent(req.Content)
	if err != nil {
		abortBadRequest(c, ErrInvalidMessageBody, err)
		return
	}

	studentID := c.GetString(middleware.ContextUserID)
	reply, err := tutor.ServiceInstance.Interact(c.Request.Context(), studentID, c.Param("id"), content)
	if err != nil {
		abortWithError(c, ErrInteract, err)
		return
	}

	c.JSON(http.StatusOK, response.Response{
		Data: response.InteractResponse{Reply: reply},
	})
}

// SaveWhiteboard 请求体即白板状态，原样保存
func SaveWhiteboard(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || !json.Valid(body) {
		abortBadRequest(c, ErrParseRequest, err)
		return
	}

	studentID := c.GetString(middleware.ContextUserID)
	if err := tutor.ServiceInstance.SaveWhiteboard(c.Request.Context(), studentID, c.Param("id"), body); err != nil {
		abortWithError(c, ErrSaveWhiteboard, err)
		return
	}

	c.JSON(http.StatusOK, response.Response{})
}

func TerminateSession(c *gin.Context) {
	studentID := c.GetString(middleware.ContextUserID)
	redirect, err := tutor.ServiceInstance.Terminate(c.Request.Context(), studentID, c.Param("id"))
	if err != nil {
		abortWithError(c, ErrTerminateSession, err)
		return
	}

	c.JSON(http.StatusOK, response.Response{
		Data: response.TerminateResponse{Redirect: redirect},
	})
}

// GetSessionSummary 学生轮询自己会话的摘要状态
func GetSessionSummary(c *gin.Context) {
	studentID := c.GetString(middleware.ContextUserID)
	session, err := dao.GetStudentSession(c.Request.Context(), studentID, c.Param("id"))
	if err != nil {
		abortWithError(c, ErrGetSummary, err)
		return
	}
	if session == nil {
		abortWithError(c, ErrGetSummary, tutor.ErrNotFound)
		return
	}

	respondSummaryStatus(c, session.SessionID)
}

func respondSummaryStatus(c *gin.Context, sessionID string) {
	result, err := summarization.SummarizerInstance.Status(c.Request.Context(), sessionID)
	if err != nil {
		abortWithError(c, ErrGetSummary, err)
		return
	}

	resp := response.SummaryStatusResponse{Status: string(result.Status)}
	if result.Summary != nil {
		resp.ErrorAnalysis = result.Summary.ErrorAnalysis
		resp.SummaryText = result.Summary.SummaryText
	}
	c.JSON(http.StatusOK, response.Response{
		Data: resp,
	})
}
