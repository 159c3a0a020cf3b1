package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTutor   Role = "tutor"
)

// 兼容旧数据中的角色名
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(s) {
	case "student", "user", "human":
		return RoleStudent, true
	case "tutor", "assistant", "ai":
		return RoleTutor, true
	}
	return "", false
}

// Message 建立联合索引 (session_id, timestamp)
type Message struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	SessionID string         `gorm:"not null;size:36;index:idx_session_timestamp" json:"session_id"`
	Role      Role           `gorm:"not null;size:16" json:"role"`
	Content   datatypes.JSON `gorm:"not null" json:"content"`
	Timestamp time.Time      `gorm:"not null;index:idx_session_timestamp" json:"timestamp"`
}

func (Message) TableName() string {
	return "chat_message"
}

// NormalizedRole 旧数据中的 assistant/user 等角色名映射为 tutor/student
func (m *Message) NormalizedRole() Role {
	if role, ok := ParseRole(string(m.Role)); ok {
		return role
	}
	return m.Role
}

// Parts 解析消息内容，兼容纯文本的旧格式
func (m *Message) Parts() (Content, error) {
	return ParseContent(m.Content)
}

type PartType string

const (
	PartTypeText  PartType = "text"
	PartTypeImage PartType = "image"
)

// ContentPart 消息内容片段，文本或图片引用二选一
type ContentPart struct {
	Type PartType `json:"type"`
	Text string   `json:"text,omitempty"`
	URL  string   `json:"url,omitempty"`
}

func TextPart(text string) ContentPart {
	return ContentPart{Type: PartTypeText, Text: text}
}

func ImagePart(url string) ContentPart {
	return ContentPart{Type: PartTypeImage, URL: url}
}

type Content []ContentPart

var ErrEmptyContent = errors.New("message content is empty")

// Text 拼接所有文本片段，图片片段被忽略
func (c Content) Text() string {
	texts := make([]string, 0, len(c))
	for _, part := range c {
		if part.Type == PartTypeText && strings.TrimSpace(part.Text) != "" {
			texts = append(texts, strings.TrimSpace(part.Text))
		}
	}
	return strings.Join(texts, " ")
}

func (c Content) JSON() (datatypes.JSON, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

// rawPart 浏览器端发送的片段格式，image_url 可能是字符串或 {url} 对象
type rawPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text"`
	URL      string          `json:"url"`
	ImageURL json.RawMessage `json:"image_url"`
}

// ParseContent 将纯文本或片段数组统一为 Content
func ParseContent(raw []byte) (Content, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, ErrEmptyContent
	}

	if strings.HasPrefix(trimmed, `"`) {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("failed to unmarshal text content: %w", err)
		}
		if strings.TrimSpace(text) == "" {
			return nil, ErrEmptyContent
		}
		return Content{TextPart(text)}, nil
	}

	var rawParts []rawPart
	if err := json.Unmarshal(raw, &rawParts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal content parts: %w", err)
	}

	content := make(Content, 0, len(rawParts))
	for _, p := range rawParts {
		switch p.Type {
		case "text":
			if strings.TrimSpace(p.Text) == "" {
				continue
			}
			content = append(content, TextPart(p.Text))
		case "image", "image_url":
			url := p.URL
			if url == "" {
				url = imageURL(p.ImageURL)
			}
			if url == "" {
				return nil, fmt.Errorf("image part without url")
			}
			content = append(content, ImagePart(url))
		default:
			return nil, fmt.Errorf("unknown content part type: %q", p.Type)
		}
	}

	if len(content) == 0 {
		return nil, ErrEmptyContent
	}
	return content, nil
}

func imageURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.URL
	}
	return ""
}
