package tutor

import "errors"

var (
	// ErrNotFound 会话或练习不存在，或不属于当前学生
	ErrNotFound = errors.New("session not found")

	// ErrInvalidState 会话已结束或不存在，不能继续对话
	ErrInvalidState = errors.New("session is not open")

	// ErrExtractionFailure 图片中未能识别出题目与答案，会话未创建
	ErrExtractionFailure = errors.New("failed to extract question and solution from image")

	// ErrUpstreamFailure 模型调用失败或超时，可重试
	ErrUpstreamFailure = errors.New("tutor model call failed")

	ErrEmptyImage = errors.New("no image provided")
)
