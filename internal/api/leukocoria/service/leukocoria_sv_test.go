package leukocoriaService

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"eyescreen/internal/api/leukocoria"
	"eyescreen/pkg/reflex"
	"eyescreen/pkg/utils"
	"eyescreen/pkg/vision"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

type fakeVision struct {
	vision.IVision
	analysis *vision.PhotoAnalysis
	err      error
	got      []byte
}

func (f *fakeVision) AnalyzePhoto(_ context.Context, image []byte) (*vision.PhotoAnalysis, error) {
	f.got = image
	return f.analysis, f.err
}

type fakeGemini struct {
	reply    string
	err      error
	mimeType string
	calls    int
}

func (f *fakeGemini) AnalyzeImage(_ context.Context, _ []byte, mimeType, _ string) (string, error) {
	f.calls++
	f.mimeType = mimeType
	return f.reply, f.err
}

func (f *fakeGemini) Close() {}

func photo(t *testing.T, contentType string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="photo"; filename="eye.jpg"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))

	return req.MultipartForm.File["photo"][0]
}

func newService(v vision.IVision, g *fakeGemini) ILeukocoriaService {
	log := logrus.New()
	log.SetOutput(io.Discard)
	if g == nil {
		return NewLeukocoriaService(log, validator.New(), v, nil, utils.New())
	}
	return NewLeukocoriaService(log, validator.New(), v, g, utils.New())
}

func TestDetect_Vision(t *testing.T) {
	white := reflex.Eye{PupilFound: true, PupilBGR: [3]float64{220, 225, 230}}
	red := reflex.Eye{PupilFound: true, PupilBGR: [3]float64{30, 40, 200}}
	closed := reflex.Eye{PupilFound: false, PupilBGR: [3]float64{255, 255, 255}}

	cases := []struct {
		name    string
		eyes    []reflex.Eye
		want    bool
		checked int
	}{
		{name: "white reflex", eyes: []reflex.Eye{red, white}, want: true, checked: 2},
		{name: "red reflex only", eyes: []reflex.Eye{red, red}, want: false, checked: 2},
		{name: "no pupil found", eyes: []reflex.Eye{closed}, want: false, checked: 0},
		{name: "no eyes", eyes: nil, want: false, checked: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := &fakeVision{analysis: &vision.PhotoAnalysis{Faces: 1, Eyes: tc.eyes}}
			resp, err := newService(v, nil).Detect(context.Background(), photo(t, "image/jpeg", []byte("jpeg")))
			require.NoError(t, err)

			assert.Equal(t, tc.want, resp.Leukocoria)
			assert.True(t, resp.Success)
			assert.Equal(t, leukocoria.Message(tc.want), resp.Message)
			assert.Equal(t, tc.checked, resp.EyesChecked)
			assert.Equal(t, leukocoria.BackendVision, resp.Backend)
			assert.Equal(t, "jpeg", string(v.got))
		})
	}
}

func TestDetect_Validation(t *testing.T) {
	svc := newService(&fakeVision{}, nil)

	_, err := svc.Detect(context.Background(), nil)
	assert.ErrorIs(t, err, leukocoria.ErrNoImageFile)

	_, err = svc.Detect(context.Background(), photo(t, "text/plain", []byte("x")))
	assert.ErrorIs(t, err, leukocoria.ErrInvalidImage)

	big := utils.NewWithLimits(0, 4)
	log := logrus.New()
	log.SetOutput(io.Discard)
	_, err = NewLeukocoriaService(log, validator.New(), &fakeVision{}, nil, big).
		Detect(context.Background(), photo(t, "image/png", []byte("too large")))
	assert.ErrorIs(t, err, leukocoria.ErrImageTooLarge)
}

func TestDetect_Fallback(t *testing.T) {
	t.Run("vision down uses gemini", func(t *testing.T) {
		g := &fakeGemini{reply: "```json\n{\"leukocoria\": true, \"faces\": 1, \"eyes_checked\": 2}\n```"}
		resp, err := newService(&fakeVision{err: errors.New("connection refused")}, g).
			Detect(context.Background(), photo(t, "image/png", []byte("png")))
		require.NoError(t, err)

		assert.True(t, resp.Leukocoria)
		assert.Equal(t, leukocoria.BackendGemini, resp.Backend)
		assert.Equal(t, 2, resp.EyesChecked)
		assert.Equal(t, "image/png", g.mimeType)
	})

	t.Run("undecodable image does not fall back", func(t *testing.T) {
		g := &fakeGemini{reply: `{"leukocoria": false}`}
		_, err := newService(&fakeVision{err: fmt.Errorf("%w: cannot decode image", vision.ErrImageRejected)}, g).
			Detect(context.Background(), photo(t, "image/png", []byte("png")))
		assert.ErrorIs(t, err, leukocoria.ErrInvalidImage)
		assert.Zero(t, g.calls)
	})

	t.Run("vision down without gemini", func(t *testing.T) {
		_, err := newService(&fakeVision{err: errors.New("connection refused")}, nil).
			Detect(context.Background(), photo(t, "image/png", []byte("png")))
		assert.ErrorIs(t, err, leukocoria.ErrBackendFailed)
	})

	t.Run("gemini only", func(t *testing.T) {
		g := &fakeGemini{reply: `{"leukocoria": false, "faces": 1, "eyes_checked": 1}`}
		resp, err := newService(nil, g).Detect(context.Background(), photo(t, "image/jpeg", []byte("jpg")))
		require.NoError(t, err)
		assert.False(t, resp.Leukocoria)
		assert.Equal(t, "No leukocoria detected", resp.Message)
	})

	t.Run("gemini verdict without answer", func(t *testing.T) {
		g := &fakeGemini{reply: `{"faces": 1}`}
		_, err := newService(nil, g).Detect(context.Background(), photo(t, "image/jpeg", []byte("jpg")))
		assert.ErrorIs(t, err, leukocoria.ErrUnparseableVerdict)
	})

	t.Run("no backend", func(t *testing.T) {
		_, err := newService(nil, nil).Detect(context.Background(), photo(t, "image/jpeg", []byte("jpg")))
		assert.ErrorIs(t, err, leukocoria.ErrNoBackend)
	})
}

// photoSidecar answers every photo frame with reply.
func photoSidecar(t *testing.T, reply string) vision.IVision {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			conn.WriteMessage(websocket.TextMessage, []byte(reply))
		}
	}))
	t.Cleanup(srv.Close)

	log := logrus.New()
	log.SetOutput(io.Discard)
	c := vision.New(vision.Config{
		PhotoURL:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/photo",
		ReadTimeout: 2 * time.Second,
	}, log)
	t.Cleanup(c.CloseConnections)
	return c
}

func TestDetect_SidecarRejectsImage(t *testing.T) {
	v := photoSidecar(t, `{"error":"cannot decode image"}`)

	t.Run("with gemini configured", func(t *testing.T) {
		g := &fakeGemini{reply: `{"leukocoria": false}`}
		_, err := newService(v, g).Detect(context.Background(), photo(t, "image/png", []byte("png")))
		assert.ErrorIs(t, err, leukocoria.ErrInvalidImage)
		assert.Zero(t, g.calls)
	})

	t.Run("vision only", func(t *testing.T) {
		_, err := newService(v, nil).Detect(context.Background(), photo(t, "image/png", []byte("png")))
		assert.ErrorIs(t, err, leukocoria.ErrInvalidImage)
		assert.NotErrorIs(t, err, leukocoria.ErrBackendFailed)
	})
}

func TestDetect_SidecarAnswers(t *testing.T) {
	v := photoSidecar(t, `{"faces":1,"eyes":[{"box":[1,1,9,9],"pupil_found":true,"pupil_bgr":[220,225,230]}]}`)

	resp, err := newService(v, nil).Detect(context.Background(), photo(t, "image/png", []byte("png")))
	require.NoError(t, err)
	assert.True(t, resp.Leukocoria)
	assert.Equal(t, 1, resp.EyesChecked)
	assert.Equal(t, leukocoria.BackendVision, resp.Backend)
}

func TestParseVerdict(t *testing.T) {
	t.Parallel()

	for name, reply := range map[string]string{
		"plain":      `{"leukocoria": true}`,
		"fenced":     "```json\n{\"leukocoria\": true}\n```",
		"bare fence": "```\n{\"leukocoria\": true}\n```",
		"whitespace": "  {\"leukocoria\": true}\n",
	} {
		t.Run(name, func(t *testing.T) {
			v, err := ParseVerdict(reply)
			require.NoError(t, err)
			require.NotNil(t, v.Leukocoria)
			assert.True(t, *v.Leukocoria)
		})
	}

	_, err := ParseVerdict("the eyes look fine")
	assert.Error(t, err)
}
