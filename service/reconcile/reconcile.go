package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"math-tutor-backend/dao"
	"math-tutor-backend/model"

	"gorm.io/datatypes"
)

// teacher_analysis 中的字段
const (
	KeyDivergenceAnalysis  = "divergence_analysis"
	KeyRemediationStrategy = "remediation_strategy"
	KeyGeneralNotes        = "general_notes"
	KeyAIInfluenceRating   = "ai_influence_rating"
	KeyErrorAnalysis       = "error_analysis"
	KeyNotes               = "notes"

	minAIInfluenceRating = 1
	maxAIInfluenceRating = 4
)

var (
	ErrNotFound      = errors.New("session not found")
	ErrInvalidRating = errors.New("ai influence rating must be between 1 and 4")
)

// Logbook 教师日志表单，nil 字段表示未提交
type Logbook struct {
	DivergenceAnalysis  *string
	RemediationStrategy *string
	GeneralNotes        *string
	AIInfluenceRating   *int
}

// SubmitLogbook 只更新提交的字段，保留 teacher_analysis 中的其余内容
func SubmitLogbook(ctx context.Context, sessionID string, logbook Logbook) (datatypes.JSONMap, error) {
	if r := logbook.AIInfluenceRating; r != nil && (*r < minAIInfluenceRating || *r > maxAIInfluenceRating) {
		return nil, ErrInvalidRating
	}

	session, err := dao.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrNotFound
	}

	analysis := make(datatypes.JSONMap, len(session.TeacherAnalysis)+4)
	for k, v := range session.TeacherAnalysis {
		analysis[k] = v
	}
	if logbook.DivergenceAnalysis != nil {
		analysis[KeyDivergenceAnalysis] = *logbook.DivergenceAnalysis
	}
	if logbook.RemediationStrategy != nil {
		analysis[KeyRemediationStrategy] = *logbook.RemediationStrategy
	}
	if logbook.GeneralNotes != nil {
		analysis[KeyGeneralNotes] = *logbook.GeneralNotes
	}
	if logbook.AIInfluenceRating != nil {
		analysis[KeyAIInfluenceRating] = *logbook.AIInfluenceRating
	}

	if err := dao.UpdateTeacherAnalysis(ctx, sessionID, analysis); err != nil {
		return nil, fmt.Errorf("failed to save logbook: %w", err)
	}
	return analysis, nil
}

// SubmitCoAnalysis 用教师的错误统计和备注整体替换 teacher_analysis
// 未知错误类型和非正数计数会被丢弃
func SubmitCoAnalysis(ctx context.Context, sessionID string, counts map[string]int, notes string) (datatypes.JSONMap, error) {
	session, err := dao.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrNotFound
	}

	errorAnalysis := make(map[string]any, len(counts))
	for label, n := range counts {
		kind, ok := model.ParseErrorKind(label)
		if !ok || n <= 0 {
			continue
		}
		prev, _ := errorAnalysis[string(kind)].(int)
		errorAnalysis[string(kind)] = prev + n
	}

	analysis := datatypes.JSONMap{
		KeyErrorAnalysis: errorAnalysis,
		KeyNotes:         strings.TrimSpace(notes),
	}
	if err := dao.UpdateTeacherAnalysis(ctx, sessionID, analysis); err != nil {
		return nil, fmt.Errorf("failed to save co-analysis: %w", err)
	}
	return analysis, nil
}

// Row 同一错误类型下自动分析与教师分析的计数
type Row struct {
	Kind      model.ErrorKind `json:"kind"`
	Automated int             `json:"automated"`
	Teacher   int             `json:"teacher"`
}

type Comparison struct {
	SessionID string `json:"session_id"`

	// 两侧分析是否存在
	HasAutomated bool `json:"has_automated"`
	HasTeacher   bool `json:"has_teacher"`

	SummaryText  string `json:"summary_text"`
	TeacherNotes string `json:"teacher_notes"`
	Rows         []Row  `json:"rows"`
}

// Compare 按错误类型并列展示两份分析，不做裁决
func Compare(ctx context.Context, sessionID string) (*Comparison, error) {
	session, err := dao.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrNotFound
	}

	comparison := &Comparison{SessionID: sessionID}

	automated := model.ErrorCounts{}
	summary, err := session.Summary()
	if err != nil {
		return nil, err
	}
	if summary != nil {
		comparison.HasAutomated = true
		comparison.SummaryText = summary.SummaryText
		if summary.ErrorAnalysis != nil {
			automated = summary.ErrorAnalysis
		}
	}

	teacher, err := TeacherErrorCounts(session.TeacherAnalysis)
	if err != nil {
		return nil, err
	}
	if teacher != nil {
		comparison.HasTeacher = true
	} else {
		teacher = model.ErrorCounts{}
	}
	comparison.TeacherNotes, _ = session.TeacherAnalysis[KeyNotes].(string)

	comparison.Rows = make([]Row, 0, len(model.ErrorKinds))
	for _, kind := range model.ErrorKinds {
		comparison.Rows = append(comparison.Rows, Row{
			Kind:      kind,
			Automated: automated[kind],
			Teacher:   teacher[kind],
		})
	}
	return comparison, nil
}

// TeacherErrorCounts 读取 teacher_analysis 中的错误统计，没有时返回 nil
func TeacherErrorCounts(analysis datatypes.JSONMap) (model.ErrorCounts, error) {
	raw, ok := analysis[KeyErrorAnalysis]
	if !ok || raw == nil {
		return nil, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal teacher error analysis: %w", err)
	}
	var counts model.ErrorCounts
	if err := json.Unmarshal(data, &counts); err != nil {
		return nil, fmt.Errorf("failed to parse teacher error analysis: %w", err)
	}
	return counts, nil
}
