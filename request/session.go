package request

import "encoding/json"

type CreateSessionRequest struct {
	ExerciseID uint `json:"exercise_id" binding:"required"`
}

// CreateSessionFromImageRequest image 为 data URL、图片链接或裸 base64
type CreateSessionFromImageRequest struct {
	Image      string `json:"image" binding:"required"`
	ExerciseID *uint  `json:"exercise_id"`
}

// InteractRequest content 可以是字符串或分段数组
type InteractRequest struct {
	Content json.RawMessage `json:"content" binding:"required"`
}
