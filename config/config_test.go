package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  addr: ":9090"
model:
  chat_model: qwen-plus
  timeout: 30s
summarizer:
  dispatcher: mq
  workers: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("MODEL_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "qwen-plus", cfg.Model.ChatModel)
	assert.Equal(t, 30*time.Second, cfg.Model.Timeout)
	assert.Equal(t, "sk-test", cfg.Model.APIKey)
	assert.Equal(t, "mq", cfg.Summarizer.Dispatcher)
	assert.Equal(t, 2, cfg.Summarizer.Workers)

	// 未配置的字段保留默认值
	assert.Equal(t, 100, cfg.Summarizer.QueueSize)
	assert.Equal(t, "gpt-4o", cfg.Model.VisionModel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
