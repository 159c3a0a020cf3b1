package controller

import (
	"net/http"

	"math-tutor-backend/middleware"
	"math-tutor-backend/request"
	"math-tutor-backend/response"
	"math-tutor-backend/service/analytics"

	"github.com/gin-gonic/gin"
)

func GetStudentAnalytics(c *gin.Context) {
	exerciseID, ok := parseExerciseID(c)
	if !ok {
		return
	}

	stats, err := analytics.ForStudent(c.Request.Context(), c.Param("student_id"), exerciseID)
	if err != nil {
		abortWithError(c, ErrGetAnalytics, err)
		return
	}

	c.JSON(http.StatusOK, response.Response{
		Data: response.NewStudentStatsResponse(stats),
	})
}

// GetClassAnalytics 名单由调用方提供，班级管理不在本服务内
func GetClassAnalytics(c *gin.Context) {
	var req request.ClassAnalyticsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, ErrParseRequest, err)
		return
	}

	class, err := analytics.ForClass(c.Request.Context(), req.StudentIDs, req.ExerciseID)
	if err != nil {
		abortWithError(c, ErrGetAnalytics, err)
		return
	}

	c.JSON(http.StatusOK, response.Response{
		Data: response.NewClassStatsResponse(class),
	})
}

// GetProgression 学生查看自己的学习进度
func GetProgression(c *gin.Context) {
	studentID := c.GetString(middleware.ContextUserID)
	progression, err := analytics.ForProgression(c.Request.Context(), studentID)
	if err != nil {
		abortWithError(c, ErrGetProgression, err)
		return
	}

	c.JSON(http.StatusOK, response.Response{
		Data: progression,
	})
}
