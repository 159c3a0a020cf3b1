package router

import (
	"math-tutor-backend/controller"
	"math-tutor-backend/middleware"

	"github.com/gin-gonic/gin"
)

func Register() *gin.Engine {
	r := gin.Default()
	r.Use(middleware.CORSMiddleware())

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware())
	{
		sessions := api.Group("/sessions")
		{
			sessions.POST("", controller.CreateSession)
			sessions.POST("/from-image", controller.CreateSessionFromImage)
			sessions.GET("", controller.GetSessions)
			sessions.GET("/:id", controller.ResumeSession)
			sessions.POST("/:id/messages", controller.Interact)
			sessions.PUT("/:id/whiteboard", controller.SaveWhiteboard)
			sessions.POST("/:id/terminate", controller.TerminateSession)
			sessions.GET("/:id/summary", controller.GetSessionSummary)
		}

		api.GET("/progression", controller.GetProgression)

		teacher := api.Group("/teacher")
		teacher.Use(middleware.RequireTeacher())
		{
			teacher.GET("/sessions", controller.ListStudentSessions)
			teacher.GET("/sessions/:id", controller.GetSessionDetail)
			teacher.DELETE("/sessions/:id", controller.DeleteSession)
			teacher.GET("/sessions/:id/summary", controller.GetSummaryStatus)
			teacher.POST("/sessions/:id/summary", controller.RequestSummary)
			teacher.PUT("/sessions/:id/logbook", controller.SubmitLogbook)
			teacher.PUT("/sessions/:id/co-analysis", controller.SubmitCoAnalysis)
			teacher.GET("/sessions/:id/comparison", controller.CompareAnalyses)

			teacher.GET("/logbooks", controller.GetLogbooks)
			teacher.GET("/students/:student_id/analytics", controller.GetStudentAnalytics)
			teacher.POST("/class/analytics", controller.GetClassAnalytics)
		}
	}

	return r
}
