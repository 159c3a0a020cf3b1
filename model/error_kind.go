package model

import (
	"encoding/json"
	"strings"
)

// ErrorKind 自动分析与教师分析共用的错误分类
type ErrorKind string

const (
	ErrorKindComputation  ErrorKind = "computation"
	ErrorKindSubstitution ErrorKind = "substitution"
	ErrorKindProcedural   ErrorKind = "procedural"
	ErrorKindConceptual   ErrorKind = "conceptual"
	ErrorKindOther        ErrorKind = "other"
)

// ErrorKinds 全部错误类型，顺序固定
var ErrorKinds = []ErrorKind{
	ErrorKindComputation,
	ErrorKindSubstitution,
	ErrorKindProcedural,
	ErrorKindConceptual,
	ErrorKindOther,
}

// AutomatedErrorKinds 自动分析只允许输出的错误类型，不含 other
var AutomatedErrorKinds = ErrorKinds[:4]

// 旧版摘要使用的标签
var legacyErrorLabels = map[string]ErrorKind{
	"erreurs de calcul":       ErrorKindComputation,
	"erreurs de substitution": ErrorKindSubstitution,
	"erreurs de procédure":    ErrorKindProcedural,
	"erreurs conceptuelles":   ErrorKindConceptual,
	"calcul":                  ErrorKindComputation,
	"procedure":               ErrorKindProcedural,
	"conceptuelle":            ErrorKindConceptual,
	"autre":                   ErrorKindOther,
	"autres erreurs":          ErrorKindOther,
	"computation errors":      ErrorKindComputation,
	"substitution errors":     ErrorKindSubstitution,
	"procedural errors":       ErrorKindProcedural,
	"conceptual errors":       ErrorKindConceptual,
}

func ParseErrorKind(s string) (ErrorKind, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, kind := range ErrorKinds {
		if key == string(kind) {
			return kind, true
		}
	}
	kind, ok := legacyErrorLabels[key]
	return kind, ok
}

func (k ErrorKind) Automated() bool {
	for _, kind := range AutomatedErrorKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// ErrorCounts 错误类型到次数的映射，只保存正数
type ErrorCounts map[ErrorKind]int

// UnmarshalJSON 识别旧标签，丢弃未知类型和非正数
func (c *ErrorCounts) UnmarshalJSON(data []byte) error {
	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	counts := make(ErrorCounts, len(raw))
	for label, n := range raw {
		kind, ok := ParseErrorKind(label)
		if !ok || n <= 0 {
			continue
		}
		counts[kind] += n
	}
	*c = counts
	return nil
}

func (c ErrorCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

func (c ErrorCounts) Add(other ErrorCounts) {
	for kind, n := range other {
		c[kind] += n
	}
}

// Percentages 各类错误占比，总数为 0 时返回空映射
func (c ErrorCounts) Percentages() map[ErrorKind]float64 {
	total := c.Total()
	result := make(map[ErrorKind]float64, len(c))
	if total <= 0 {
		return result
	}
	for kind, n := range c {
		result[kind] = float64(n) / float64(total) * 100
	}
	return result
}
