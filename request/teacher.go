package request

// LogbookRequest 只提交需要更新的字段
type LogbookRequest struct {
	DivergenceAnalysis  *string `json:"divergence_analysis"`
	RemediationStrategy *string `json:"remediation_strategy"`
	GeneralNotes        *string `json:"general_notes"`
	AIInfluenceRating   *int    `json:"ai_influence_rating"`
}

type CoAnalysisRequest struct {
	ErrorAnalysis map[string]int `json:"error_analysis"`
	Notes         string         `json:"notes"`
}

type ClassAnalyticsRequest struct {
	StudentIDs []string `json:"student_ids" binding:"required"`
	ExerciseID *uint    `json:"exercise_id"`
}
