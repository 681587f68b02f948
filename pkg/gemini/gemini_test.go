package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImageFormat(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "jpeg", imageFormat("image/jpeg"))
	assert.Equal(t, "jpeg", imageFormat("image/jpg"))
	assert.Equal(t, "png", imageFormat("image/PNG"))
	assert.Equal(t, "jpeg", imageFormat(""))
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	_, err := NewGeminiClient()
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
