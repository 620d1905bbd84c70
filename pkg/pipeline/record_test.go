package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	assert.Equal(t, "2024-01-02T03:04:05.006Z", Timestamp(at))

	east := time.FixedZone("east", 2*3600)
	assert.Equal(t, "2024-01-02T03:04:05.006Z", Timestamp(at.In(east)))
}

func TestRecordLine(t *testing.T) {
	t.Run("audio is base64", func(t *testing.T) {
		line, err := audioRecord([]byte("abc")).Line()
		require.NoError(t, err)
		assert.Equal(t, "AUDIO:YWJj\n", string(line))
	})

	t.Run("transcript", func(t *testing.T) {
		r := transcriptRecord("hello there")
		line, err := r.Line()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(line), "TRANSCRIPT:{"))
		assert.True(t, strings.HasSuffix(string(line), "}\n"))

		m := decode(t, r)
		assert.Equal(t, "hello there", m["transcript"])
		assert.NotEmpty(t, m["timestamp"])
	})

	t.Run("partial carries input", func(t *testing.T) {
		m := decode(t, chatRecord(KindPartial, "Sure", "what is rag"))
		assert.Equal(t, "Sure", m["content"])
		assert.Equal(t, "what is rag", m["inputUsed"])
	})

	t.Run("complete omits input", func(t *testing.T) {
		m := decode(t, chatRecord(KindComplete, "RAG is retrieval.", "what is rag"))
		assert.Equal(t, "RAG is retrieval.", m["content"])
		assert.NotContains(t, m, "inputUsed")
	})

	t.Run("done", func(t *testing.T) {
		m := decode(t, doneRecord(&Report{Windows: 2}))
		assert.Equal(t, "parallel", m["processingMode"])
		metrics, ok := m["metrics"].(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 2, metrics["windows"])
	})

	t.Run("error", func(t *testing.T) {
		m := decode(t, errorRecord("Voice processing failed", ""))
		assert.Equal(t, "Voice processing failed", m["error"])
		assert.NotContains(t, m, "details")
	})
}

func TestParseLine(t *testing.T) {
	kind, body, err := ParseLine("DONE:{\"a\":1}\n")
	require.NoError(t, err)
	assert.Equal(t, KindDone, kind)
	assert.Equal(t, `{"a":1}`, body)

	_, _, err = ParseLine("garbage")
	assert.Error(t, err)
	_, _, err = ParseLine(":empty")
	assert.Error(t, err)
}
