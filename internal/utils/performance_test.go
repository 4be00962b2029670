package utils

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestTimer_LogsContext(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	d := NewTimer("analyze_provider", log).StopWithContext(map[string]interface{}{
		"provider":  "openai",
		"decisions": 3,
	})

	assert.GreaterOrEqual(t, d.Nanoseconds(), int64(0))
	out := buf.String()
	assert.Contains(t, out, `"operation":"analyze_provider"`)
	assert.Contains(t, out, `"provider":"openai"`)
	assert.Contains(t, out, `"decisions":3`)
}

func TestOperationTimer(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	OperationTimer("reconcile", log)()
	assert.Contains(t, buf.String(), `"operation":"reconcile"`)
}
