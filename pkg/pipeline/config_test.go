package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 8<<10, cfg.ChunkSize)
	assert.Equal(t, 64<<10, cfg.FlushBytes)
	assert.Equal(t, 10, cfg.FlushEveryChunks)
	assert.Equal(t, 16<<10, cfg.OverlapMax)
	assert.Equal(t, 50, cfg.UtteranceChars)
	assert.Equal(t, "nova", cfg.Voice)
	assert.NoError(t, cfg.Validate())
}

func TestConfigWithMethodsCopy(t *testing.T) {
	base := DefaultConfig()
	changed := base.WithFlush(1024, 0).WithCallTimeout(time.Second).WithVoice("echo", 1.2).WithPartial(30, 8)

	assert.Equal(t, 64<<10, base.FlushBytes, "receiver is not modified")
	assert.Equal(t, 1024, changed.FlushBytes)
	assert.Equal(t, 0, changed.FlushEveryChunks)
	assert.Equal(t, time.Second, changed.CallTimeout)
	assert.Equal(t, "echo", changed.Voice)
	assert.Equal(t, 30, changed.PartialMinChars)
	assert.Equal(t, 8, changed.PartialStep)
	assert.Equal(t, 10, base.PartialMinChars)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero chunk", DefaultConfig().WithChunkSize(0)},
		{"zero flush", DefaultConfig().WithFlush(0, 10)},
		{"negative every", DefaultConfig().WithFlush(1, -1)},
		{"overlap ratio", DefaultConfig().WithOverlap(1, 10)},
		{"negative overlap", DefaultConfig().WithOverlap(0.2, -1)},
		{"negative partial", DefaultConfig().WithPartial(-1, 5)},
		{"negative step", DefaultConfig().WithPartial(10, -5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}
