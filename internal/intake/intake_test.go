package intake

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFile 记录 Open 调用次数
type countingFile struct {
	mediaType string
	data      []byte
	opened    int
	openErr   error
}

func (f *countingFile) MediaType() string { return f.mediaType }

func (f *countingFile) Open() (io.ReadCloser, error) {
	f.opened++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 3))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAcquire(t *testing.T) {
	ctx := context.Background()

	t.Run("valid image round-trips", func(t *testing.T) {
		data := tinyPNG(t)

		img, err := Acquire(ctx, FromBytes("image/png", data))
		require.NoError(t, err)

		decoded, err := base64.StdEncoding.DecodeString(img.Base64)
		require.NoError(t, err)
		assert.Equal(t, data, decoded)
		assert.Equal(t, "image/png", img.MIMEType)
		assert.Equal(t, "data:image/png;base64,"+img.Base64, img.PreviewURL)
		assert.Equal(t, 2, img.Width)
		assert.Equal(t, 3, img.Height)
	})

	t.Run("undecodable bytes with an image type are still accepted", func(t *testing.T) {
		data := []byte("not really a jpeg")

		img, err := Acquire(ctx, FromBytes("image/jpeg", data))
		require.NoError(t, err)

		decoded, err := img.Bytes()
		require.NoError(t, err)
		assert.Equal(t, data, decoded)
		assert.Equal(t, "image/jpeg", img.MIMEType)
		assert.Zero(t, img.Width)
		assert.Zero(t, img.Height)
	})

	t.Run("empty image file", func(t *testing.T) {
		img, err := Acquire(ctx, FromBytes("image/gif", nil))
		require.NoError(t, err)
		assert.Equal(t, "", img.Base64)
		assert.Equal(t, "data:image/gif;base64,", img.PreviewURL)
	})

	for _, mediaType := range []string{"text/plain", "application/pdf", ""} {
		t.Run("rejects "+mediaType, func(t *testing.T) {
			f := &countingFile{mediaType: mediaType, data: []byte("hello")}

			img, err := Acquire(ctx, f)
			assert.ErrorIs(t, err, ErrInvalidFileType)
			assert.Equal(t, EncodedImage{}, img)
			assert.Zero(t, f.opened, "file must not be read when the type is rejected")
		})
	}

	t.Run("open failure is returned", func(t *testing.T) {
		openErr := errors.New("disk gone")
		_, err := Acquire(ctx, &countingFile{mediaType: "image/png", openErr: openErr})
		assert.ErrorIs(t, err, openErr)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := Acquire(cctx, FromBytes("image/png", tinyPNG(t)))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFromMultipart(t *testing.T) {
	data := tinyPNG(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="child.png"`)
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	form, err := multipart.NewReader(&body, mw.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	defer form.RemoveAll()

	img, err := Acquire(context.Background(), FromMultipart(form.File["file"][0]))
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
	decoded, err := img.Bytes()
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestFromDataURL(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		img, err := FromDataURL("data:image/png;base64,AAAA")
		require.NoError(t, err)
		assert.Equal(t, EncodedImage{
			PreviewURL: "data:image/png;base64,AAAA",
			Base64:     "AAAA",
			MIMEType:   "image/png",
		}, img)
	})

	t.Run("reads dimensions from the payload", func(t *testing.T) {
		payload := base64.StdEncoding.EncodeToString(tinyPNG(t))

		img, err := FromDataURL("data:image/png;base64," + payload)
		require.NoError(t, err)
		assert.Equal(t, 2, img.Width)
		assert.Equal(t, 3, img.Height)
	})

	t.Run("non-image type", func(t *testing.T) {
		_, err := FromDataURL("data:text/plain;base64,AAAA")
		assert.ErrorIs(t, err, ErrInvalidFileType)
	})

	t.Run("bad base64", func(t *testing.T) {
		_, err := FromDataURL("data:image/png;base64,@@@")
		assert.ErrorIs(t, err, ErrMalformedDataURL)
	})

	t.Run("not a data URL", func(t *testing.T) {
		_, err := FromDataURL("https://example.com/a.png")
		assert.ErrorIs(t, err, ErrMalformedDataURL)
	})
}
