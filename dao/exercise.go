package dao

import (
	"context"
	"errors"

	"math-tutor-backend/model"

	"gorm.io/gorm"
)

func GetExerciseByID(ctx context.Context, id uint) (*model.Exercise, error) {
	var exercise model.Exercise
	if err := DB.WithContext(ctx).
		Where("id = ?", id).
		First(&exercise).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &exercise, nil
}
