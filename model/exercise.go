package model

import "time"

const (
	defaultQuestionPrefix = "Exercise: "
	defaultSolution       = "No solution provided."
)

// Exercise 教师上传的练习文档，文件本身存放在 OSS
// 由外部文档服务维护，本服务只读
type Exercise struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
	Title     string    `gorm:"not null" json:"title"`

	// 文件在OSS上的完整路径，不包含bucket名称
	ObjectName string `gorm:"not null" json:"object_name"`

	// 练习的题目与参考答案文本，可能为空
	QuestionText string `gorm:"type:text" json:"question_text"`
	SolutionText string `gorm:"type:text" json:"solution_text"`
}

func (Exercise) TableName() string {
	return "exercise"
}

// QuestionContext 题目文本为空时退化为练习标题
func (e *Exercise) QuestionContext() string {
	if e.QuestionText != "" {
		return e.QuestionText
	}
	return defaultQuestionPrefix + e.Title
}

func (e *Exercise) SolutionContext() string {
	if e.SolutionText != "" {
		return e.SolutionText
	}
	return defaultSolution
}
