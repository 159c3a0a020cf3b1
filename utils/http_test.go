package utils

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewHTTPClient(t *testing.T) {
	client := NewHTTPClient(WithTimeout(5 * time.Second))
	assert.Equal(t, 5*time.Second, client.Timeout)

	_, ok := client.Transport.(*http.Transport)
	assert.True(t, ok)

	assert.Equal(t, defaultTimeout, NewHTTPClient().Timeout)
}
