package generation

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type stubGenerator struct {
	resp     *genai.GenerateContentResponse
	err      error
	calls    int
	contents []*genai.Content
}

func (s *stubGenerator) GenerateContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	s.calls++
	s.contents = contents
	return s.resp, s.err
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func responseWith(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: parts}}},
	}
}

func newTestService(t *testing.T, gen ContentGenerator) *Service {
	t.Helper()
	svc := NewService(gen, Config{Model: "test-model", OutputDir: t.TempDir(), CostPerImage: 0.039})
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }
	return svc
}

func TestGenerateReturnsImageAndDiscardsText(t *testing.T) {
	data := pngBytes(t)
	gen := &stubGenerator{resp: responseWith(
		&genai.Part{Text: "Here is a red circle"},
		&genai.Part{InlineData: &genai.Blob{Data: data, MIMEType: "image/png"}},
	)}
	svc := newTestService(t, gen)

	img, err := svc.Generate(context.Background(), "A red circle", Options{})
	require.NoError(t, err)
	assert.Equal(t, data, img.Data)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Empty(t, img.Path)
	assert.Equal(t, 1, gen.calls)
	require.Len(t, gen.contents, 1)
	assert.Equal(t, "A red circle", gen.contents[0].Parts[0].Text)
}

func TestGenerateTextOnlyResponse(t *testing.T) {
	gen := &stubGenerator{resp: responseWith(&genai.Part{Text: "I cannot draw that"})}
	svc := newTestService(t, gen)

	_, err := svc.Generate(context.Background(), "something", Options{})
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.ErrorIs(t, err, ErrNoImage)
	assert.Equal(t, "generate failed: no image in response", err.Error())
}

func TestGenerateFirstImageWins(t *testing.T) {
	first := pngBytes(t)
	gen := &stubGenerator{resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: nil},
		{Content: &genai.Content{Parts: []*genai.Part{
			{InlineData: &genai.Blob{Data: first, MIMEType: "image/png"}},
			{InlineData: &genai.Blob{Data: []byte("second"), MIMEType: "image/png"}},
		}}},
	}}}
	svc := newTestService(t, gen)

	img, err := svc.Generate(context.Background(), "p", Options{})
	require.NoError(t, err)
	assert.Equal(t, first, img.Data)
}

func TestGenerateUpstreamError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("Error 429, Message: Resource has been exhausted")}
	svc := newTestService(t, gen)

	_, err := svc.Generate(context.Background(), "p", Options{})
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.True(t, genErr.RateLimited)

	gen.err = errors.New("deadline exceeded")
	_, err = svc.Generate(context.Background(), "p", Options{})
	require.ErrorAs(t, err, &genErr)
	assert.False(t, genErr.RateLimited)
	assert.Equal(t, 2, gen.calls)
}

func TestNotConfigured(t *testing.T) {
	svc := NewService(nil, Config{})

	_, err := svc.Generate(context.Background(), "p", Options{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = svc.Edit(context.Background(), Source{Data: pngBytes(t)}, "p", Options{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestEditSendsPromptAndImage(t *testing.T) {
	src := pngBytes(t)
	out := pngBytes(t)
	gen := &stubGenerator{resp: responseWith(&genai.Part{InlineData: &genai.Blob{Data: out, MIMEType: "image/png"}})}
	svc := newTestService(t, gen)

	img, err := svc.Edit(context.Background(), Source{Data: src}, "make it blue", Options{})
	require.NoError(t, err)
	assert.Equal(t, out, img.Data)

	require.Len(t, gen.contents, 1)
	parts := gen.contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "make it blue", parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, src, parts[1].InlineData.Data)
	assert.Equal(t, "image/png", parts[1].InlineData.MIMEType)
}

func TestEditUnreachableURLIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	gen := &stubGenerator{}
	svc := newTestService(t, gen)

	_, err := svc.Edit(context.Background(), Source{URL: srv.URL + "/missing.png"}, "p", Options{})
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)

	var genErr *GenerationError
	assert.False(t, errors.As(err, &genErr))
	assert.Zero(t, gen.calls)
}

func TestEditClosedServerIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/gone.png"
	srv.Close()

	gen := &stubGenerator{}
	svc := newTestService(t, gen)

	_, err := svc.Edit(context.Background(), Source{URL: url}, "p", Options{})
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Zero(t, fetchErr.StatusCode)
	assert.Zero(t, gen.calls)
}

func TestEditRejectsNonImageSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not an image</html>"))
	}))
	defer srv.Close()

	svc := newTestService(t, &stubGenerator{})
	_, err := svc.Edit(context.Background(), Source{URL: srv.URL}, "p", Options{})
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestEditFromURL(t *testing.T) {
	src := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(src)
	}))
	defer srv.Close()

	gen := &stubGenerator{resp: responseWith(&genai.Part{InlineData: &genai.Blob{Data: src, MIMEType: "image/png"}})}
	svc := newTestService(t, gen)

	img, err := svc.Edit(context.Background(), Source{URL: srv.URL + "/photo.png"}, "p", Options{SaveToDisk: true})
	require.NoError(t, err)
	assert.Equal(t, "photo_edited_1700000000.png", filepath.Base(img.Path))
}

func TestRestoreUsesDefaultPrompt(t *testing.T) {
	src := pngBytes(t)
	gen := &stubGenerator{resp: responseWith(&genai.Part{InlineData: &genai.Blob{Data: src, MIMEType: "image/png"}})}
	svc := newTestService(t, gen)

	_, err := svc.Restore(context.Background(), Source{Data: src}, "  ", Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultRestorePrompt, gen.contents[0].Parts[0].Text)

	_, err = svc.Restore(context.Background(), Source{Data: src}, "just fix scratches", Options{})
	require.NoError(t, err)
	assert.Equal(t, "just fix scratches", gen.contents[0].Parts[0].Text)
}

func TestSaveToDiskNeverOverwrites(t *testing.T) {
	data := pngBytes(t)
	gen := &stubGenerator{resp: responseWith(&genai.Part{InlineData: &genai.Blob{Data: data, MIMEType: "image/png"}})}
	svc := newTestService(t, gen)

	var paths []string
	for i := 0; i < 3; i++ {
		img, err := svc.Generate(context.Background(), "p", Options{SaveToDisk: true})
		require.NoError(t, err)
		paths = append(paths, filepath.Base(img.Path))
	}
	assert.Equal(t, []string{
		"generated_1700000000.png",
		"generated_1700000000-1.png",
		"generated_1700000000-2.png",
	}, paths)

	written, err := os.ReadFile(filepath.Join(svc.outputDir, paths[2]))
	require.NoError(t, err)
	assert.Equal(t, data, written)
}

func TestSaveToDiskExplicitName(t *testing.T) {
	data := pngBytes(t)
	gen := &stubGenerator{resp: responseWith(&genai.Part{InlineData: &genai.Blob{Data: data, MIMEType: "image/png"}})}
	svc := newTestService(t, gen)

	img, err := svc.Generate(context.Background(), "p", Options{SaveToDisk: true, OutputFilename: "../escape/cat.png"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(svc.outputDir, "cat.png"), img.Path)
}

func TestPricing(t *testing.T) {
	svc := newTestService(t, &stubGenerator{})

	assert.InDelta(t, 0.39, svc.EstimateCost(10), 1e-9)
	info := svc.PricingInfo()
	assert.Equal(t, 25, info.ImagesPerDollar)
	assert.Equal(t, "test-model", info.ModelName)
}
