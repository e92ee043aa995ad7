// Package intake 把用户上传的照片转换为可预览、可传输的 EncodedImage。
package intake

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"

	"hugime/common"
	"hugime/internal/utils"

	_ "golang.org/x/image/webp"
)

var (
	// ErrInvalidFileType 上传的文件不是图片
	ErrInvalidFileType = errors.New("invalid file type")
	// ErrMalformedDataURL data URL 无法解析或 base64 无法解码
	ErrMalformedDataURL = errors.New("malformed data URL")
)

// EncodedImage 一张用户照片的编码形式，构造后不可变
type EncodedImage struct {
	PreviewURL string // 完整的 data URL，仅用于展示
	Base64     string // 不带头部的 base64 数据，仅用于传输
	MIMEType   string // 例如 image/jpeg
	// 像素尺寸，图片头无法识别时为 0
	Width  int
	Height int
}

// File 单个待读取的上传文件
type File interface {
	// MediaType 返回文件声明的媒体类型
	MediaType() string
	Open() (io.ReadCloser, error)
}

// Acquire 校验并读取文件，返回 EncodedImage。
// 非图片类型返回 ErrInvalidFileType，此时不会读取文件内容。
func Acquire(ctx context.Context, file File) (EncodedImage, error) {
	mediaType := file.MediaType()
	if !utils.IsImageMediaType(mediaType) {
		return EncodedImage{}, fmt.Errorf("%w: %q", ErrInvalidFileType, mediaType)
	}
	if err := ctx.Err(); err != nil {
		return EncodedImage{}, err
	}

	rc, err := file.Open()
	if err != nil {
		return EncodedImage{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return EncodedImage{}, fmt.Errorf("failed to read file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return EncodedImage{}, err
	}

	img, err := fromPreviewURL(utils.BuildDataURL(mediaType, data))
	if err != nil {
		return EncodedImage{}, err
	}

	img.Width, img.Height = dimensions(img.MIMEType, data)
	return img, nil
}

// FromDataURL 从已有的 data URL 重建 EncodedImage
func FromDataURL(dataURL string) (EncodedImage, error) {
	img, err := fromPreviewURL(dataURL)
	if err != nil {
		return EncodedImage{}, err
	}
	if !utils.IsImageMediaType(img.MIMEType) {
		return EncodedImage{}, fmt.Errorf("%w: %q", ErrInvalidFileType, img.MIMEType)
	}
	data, err := base64.StdEncoding.DecodeString(img.Base64)
	if err != nil {
		return EncodedImage{}, fmt.Errorf("%w: %v", ErrMalformedDataURL, err)
	}
	img.Width, img.Height = dimensions(img.MIMEType, data)
	return img, nil
}

// fromPreviewURL mimeType 与 base64 都从同一个 data URL 派生
func fromPreviewURL(previewURL string) (EncodedImage, error) {
	mimeType, payload, err := utils.ParseDataURL(previewURL)
	if err != nil {
		return EncodedImage{}, fmt.Errorf("%w: %v", ErrMalformedDataURL, err)
	}
	return EncodedImage{
		PreviewURL: previewURL,
		Base64:     payload,
		MIMEType:   mimeType,
	}, nil
}

// Bytes 解码 Base64 得到原始图片数据
func (e EncodedImage) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(e.Base64)
}

// dimensions 读取图片头中的宽高；解码失败不影响结果，只是宽高为 0
func dimensions(mimeType string, data []byte) (width, height int) {
	fields := map[string]interface{}{
		"mime_type": mimeType,
		"size":      len(data),
	}
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		width, height = cfg.Width, cfg.Height
		fields["format"] = format
		fields["width"] = width
		fields["height"] = height
	}
	common.WithFields(fields).Debug("Image acquired")
	return width, height
}

type multipartFile struct {
	header *multipart.FileHeader
}

// FromMultipart 把表单上传的文件适配为 File
func FromMultipart(fh *multipart.FileHeader) File {
	return multipartFile{header: fh}
}

func (f multipartFile) MediaType() string {
	return f.header.Header.Get("Content-Type")
}

func (f multipartFile) Open() (io.ReadCloser, error) {
	return f.header.Open()
}

type bytesFile struct {
	mediaType string
	data      []byte
}

// FromBytes 把内存中的数据适配为 File
func FromBytes(mediaType string, data []byte) File {
	return bytesFile{mediaType: mediaType, data: data}
}

func (f bytesFile) MediaType() string {
	return f.mediaType
}

func (f bytesFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}
