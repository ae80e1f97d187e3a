package recognizer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/framevocab/internal/models"
)

type fakeEngine struct {
	text      string
	err       error
	installed []string
	listErr   error
	calls     []string
	listCalls int
}

func (e *fakeEngine) Recognize(_ context.Context, _ []byte, languages string) (string, error) {
	e.calls = append(e.calls, languages)
	return e.text, e.err
}

type listingEngine struct{ *fakeEngine }

func (e listingEngine) Languages(context.Context) ([]string, error) {
	e.listCalls++
	return e.installed, e.listErr
}

type debugRecorder struct{ stages []string }

func (d *debugRecorder) WriteDebugImage(_ models.Frame, stage string, _ []byte) error {
	d.stages = append(d.stages, stage)
	return nil
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, G: 10, B: 10, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func langs(t *testing.T, ids ...string) models.LanguageSet {
	t.Helper()
	l, err := models.ParseLanguages(ids)
	require.NoError(t, err)
	return l
}

func TestRecognizeCombinesLanguagesInOnePass(t *testing.T) {
	engine := &fakeEngine{text: "Hello 世界"}
	a := NewAdapter(engine, discard())
	frame := models.Frame{Index: 2, Timestamp: 10, Image: testPNG(t)}

	res, err := a.Recognize(context.Background(), frame, langs(t, "eng", "chi_sim"))
	require.NoError(t, err)

	assert.Equal(t, []string{"eng+chi_sim"}, engine.calls)
	assert.Equal(t, "Hello 世界", res.Text)
	assert.Equal(t, 2, res.FrameIndex)
	assert.Equal(t, "eng+chi_sim", res.Languages)
}

func TestRecognizeMissingLanguageIsUnavailable(t *testing.T) {
	engine := listingEngine{&fakeEngine{installed: []string{"eng", "osd"}}}
	a := NewAdapter(engine, discard())
	frame := models.Frame{Image: testPNG(t)}

	_, err := a.Recognize(context.Background(), frame, langs(t, "chi_tra"))

	assert.ErrorIs(t, err, models.ErrRecognitionUnavailable)
	assert.NotErrorIs(t, err, models.ErrRecognitionFailed)
	assert.Empty(t, engine.calls)
}

func TestRecognizeListFailureFallsBackToEngine(t *testing.T) {
	engine := listingEngine{&fakeEngine{listErr: errors.New("no binary"), text: "ok"}}
	a := NewAdapter(engine, discard())

	res, err := a.Recognize(context.Background(), models.Frame{Image: testPNG(t)}, langs(t, "eng"))
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
}

func TestRecognizeEngineErrorsAreClassified(t *testing.T) {
	frame := models.Frame{Image: testPNG(t)}

	a := NewAdapter(&fakeEngine{err: errors.New("engine crashed")}, discard())
	_, err := a.Recognize(context.Background(), frame, langs(t, "eng"))
	assert.ErrorIs(t, err, models.ErrRecognitionFailed)

	a = NewAdapter(&fakeEngine{err: models.ErrRecognitionUnavailable}, discard())
	_, err = a.Recognize(context.Background(), frame, langs(t, "eng"))
	assert.ErrorIs(t, err, models.ErrRecognitionUnavailable)
}

func TestRecognizeMalformedImageFails(t *testing.T) {
	engine := &fakeEngine{}
	a := NewAdapter(engine, discard())

	_, err := a.Recognize(context.Background(), models.Frame{Image: []byte("not an image")}, langs(t, "eng"))

	assert.ErrorIs(t, err, models.ErrRecognitionFailed)
	assert.Empty(t, engine.calls)
}

func TestRecognizeWritesDebugStages(t *testing.T) {
	rec := &debugRecorder{}
	a := NewAdapter(&fakeEngine{text: "x"}, discard(), WithDebugWriter(rec))

	_, err := a.Recognize(context.Background(), models.Frame{Image: testPNG(t)}, langs(t, "eng"))
	require.NoError(t, err)
	assert.Equal(t, []string{"source", "grayscale"}, rec.stages)
}

func TestGrayscaleProducesGrayPNG(t *testing.T) {
	out, err := Grayscale(testPNG(t))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	_, ok := img.(*image.Gray)
	assert.True(t, ok)
}

func TestParseLanguageList(t *testing.T) {
	out := "List of available languages in \"/usr/share/tesseract-ocr/5/tessdata/\" (3):\nchi_sim\neng\nosd\n"
	assert.Equal(t, []string{"chi_sim", "eng", "osd"}, ParseLanguageList(out))
}

func TestClassifyTesseractStderr(t *testing.T) {
	assert.ErrorIs(t, classify("Failed loading language 'chi_tra'\nTesseract couldn't load any languages!"), models.ErrRecognitionUnavailable)
	assert.ErrorIs(t, classify("Error in pixReadMem: Unknown format"), models.ErrRecognitionFailed)
}
