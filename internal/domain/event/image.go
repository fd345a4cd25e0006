package event

import (
	"mime"
	"strings"
)

// MaxImageSize は添付画像の上限サイズ（5MiB）
const MaxImageSize = 5 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

// Image はイベントに添付された画像本体
type Image struct {
	Data        []byte
	ContentType string
}

// NormalizeContentType はパラメータを除いた小文字のMIMEタイプを返す
func NormalizeContentType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

// IsAllowedImageType は受け付け可能な画像形式かどうかを返す
func IsAllowedImageType(contentType string) bool {
	return allowedImageTypes[NormalizeContentType(contentType)]
}

// NewImage は画像を検証して作成する
func NewImage(data []byte, contentType string) (*Image, error) {
	ct := NormalizeContentType(contentType)
	if !allowedImageTypes[ct] {
		return nil, ErrUnsupportedImage
	}
	if len(data) == 0 {
		return nil, ErrImageEmpty
	}
	if len(data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}
	return &Image{Data: data, ContentType: ct}, nil
}

// Info は画像のメタデータを返す
func (i *Image) Info() *ImageInfo {
	return &ImageInfo{ContentType: i.ContentType, Size: int64(len(i.Data))}
}
