package web

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-persona/pkg/chat"
	"github.com/teslashibe/go-persona/pkg/inference"
	"github.com/teslashibe/go-persona/pkg/persona"
	"github.com/teslashibe/go-persona/pkg/pipeline"
	"github.com/teslashibe/go-persona/pkg/session"
	"github.com/teslashibe/go-persona/pkg/stt"
	"github.com/teslashibe/go-persona/pkg/tts"
)

type harness struct {
	stt    *stt.Mock
	llm    *inference.Mock
	tts    *tts.Mock
	store  *session.Store
	server *Server
}

func newHarness(t *testing.T, configure func(*Config, *Deps)) *harness {
	t.Helper()
	h := &harness{
		stt:   stt.NewMock(),
		llm:   inference.NewMock(),
		tts:   tts.NewMock(),
		store: session.NewStore(session.ModePerSession, nil),
	}
	svc := chat.New(h.llm, persona.Default())
	orch := pipeline.NewOrchestrator(pipeline.DefaultConfig(), h.stt, svc, h.tts)

	cfg := DefaultConfig()
	deps := Deps{
		Orchestrator: orch,
		Sessions:     h.store,
		Speech:       h.tts,
		Checks: map[string]HealthCheck{
			"stt":  h.stt.Health,
			"chat": svc.Health,
			"tts":  h.tts.Health,
		},
	}
	if configure != nil {
		configure(&cfg, &deps)
	}
	h.server = NewServer(cfg, deps)
	return h
}

func (h *harness) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := h.server.App().Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// voiceRequest builds a multipart upload. A nil audio leaves the file out.
func voiceRequest(t *testing.T, path, mime string, audio []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if audio != nil {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="audio"; filename="clip"`)
		hdr.Set("Content-Type", mime)
		part, err := w.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(audio)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func readJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, sonic.Unmarshal(body, &m), "body: %s", body)
	return m
}

func readLines(t *testing.T, resp *http.Response) []string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(body), "\n"), "\n")
}

func kindsOf(t *testing.T, lines []string) []pipeline.Kind {
	t.Helper()
	out := make([]pipeline.Kind, len(lines))
	for i, line := range lines {
		kind, _, err := pipeline.ParseLine(line)
		require.NoError(t, err, "line %q", line)
		out[i] = kind
	}
	return out
}
