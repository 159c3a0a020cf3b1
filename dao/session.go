package dao

import (
	"context"
	"errors"
	"time"

	"math-tutor-backend/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SessionFilter struct {
	StudentIDs []string
	ExerciseID *uint

	// 只返回教师填写过分析的会话
	WithTeacherAnalysis bool
}

func CreateSession(ctx context.Context, session *model.Session) error {
	return DB.WithContext(ctx).Create(session).Error
}

// GetSession 会话不存在时返回 nil, nil
func GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	var session model.Session
	if err := DB.WithContext(ctx).
		Preload("Exercise").
		Where("session_id = ?", sessionID).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// GetStudentSession 只返回属于该学生的会话
func GetStudentSession(ctx context.Context, studentID, sessionID string) (*model.Session, error) {
	var session model.Session
	if err := DB.WithContext(ctx).
		Preload("Exercise").
		Where("session_id = ? AND student_id = ?", sessionID, studentID).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func ListSessions(ctx context.Context, filter SessionFilter) ([]model.Session, error) {
	query := DB.WithContext(ctx).Preload("Exercise")
	if len(filter.StudentIDs) > 0 {
		query = query.Where("student_id IN ?", filter.StudentIDs)
	}
	if filter.ExerciseID != nil {
		query = query.Where("exercise_id = ?", *filter.ExerciseID)
	}
	if filter.WithTeacherAnalysis {
		query = query.Where("teacher_analysis IS NOT NULL")
	}

	var sessions []model.Session
	if err := query.Order("start_time DESC").
		Find(&sessions).Error; err != nil {
		return nil, err
	}

	if filter.WithTeacherAnalysis {
		filtered := sessions[:0]
		for _, s := range sessions {
			if len(s.TeacherAnalysis) > 0 {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}
	return sessions, nil
}

// SetEndTime 仅在会话未结束时写入结束时间，返回是否发生了状态变化
func SetEndTime(ctx context.Context, sessionID string, endTime time.Time) (bool, error) {
	result := DB.WithContext(ctx).
		Model(&model.Session{}).
		Where("session_id = ? AND end_time IS NULL", sessionID).
		Update("end_time", endTime)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func ClearEndTime(ctx context.Context, sessionID string) error {
	return DB.WithContext(ctx).
		Model(&model.Session{}).
		Where("session_id = ?", sessionID).
		Update("end_time", nil).Error
}

func UpdateWhiteboardState(ctx context.Context, sessionID string, state datatypes.JSON) error {
	return DB.WithContext(ctx).
		Model(&model.Session{}).
		Where("session_id = ?", sessionID).
		Update("whiteboard_state", state).Error
}

// SaveSummaryOnce 原子地写入摘要：仅当会话已结束且尚无摘要时生效
// 返回 false 表示摘要已存在或会话已被重新打开
func SaveSummaryOnce(ctx context.Context, sessionID string, summary datatypes.JSON) (bool, error) {
	result := DB.WithContext(ctx).
		Model(&model.Session{}).
		Where("session_id = ? AND summary_data IS NULL AND end_time IS NOT NULL", sessionID).
		Update("summary_data", summary)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func UpdateTeacherAnalysis(ctx context.Context, sessionID string, analysis datatypes.JSONMap) error {
	return DB.WithContext(ctx).
		Model(&model.Session{}).
		Where("session_id = ?", sessionID).
		Update("teacher_analysis", analysis).Error
}

// DeleteSession 删除会话及其全部对话记录，返回会话是否存在
func DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	var deleted bool
	err := DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("session_id = ?", sessionID).
			Delete(&model.Session{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected > 0

		// 删除会话内的对话记录
		return tx.Where("session_id = ?", sessionID).
			Delete(&model.Message{}).Error
	})
	return deleted, err
}
