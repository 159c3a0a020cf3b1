package tutor

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"
)

var (
	//go:embed prompts/welcome.txt
	welcomePrompt string

	//go:embed prompts/tutor_system.txt
	tutorSystemPrompt string

	//go:embed prompts/extraction.txt
	extractionPrompt string
)

var (
	welcomeTmpl     = template.Must(template.New("welcome").Parse(welcomePrompt))
	tutorSystemTmpl = template.Must(template.New("tutor_system").Parse(tutorSystemPrompt))
	extractionTmpl  = template.Must(template.New("extraction").Parse(extractionPrompt))
)

// 开场与图片识别时发送给模型的用户消息
const (
	welcomeKickoff    = "Start the conversation."
	extractionRequest = "Analyse this image and extract the question and its solution."
)

type promptData struct {
	Language string
	Question string
	Solution string
}

func renderPrompt(tmpl *template.Template, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
