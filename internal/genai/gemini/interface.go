package gemini

import (
	"context"

	"hugime/internal/intake"
)

// GeminiIface 根据童年照和成年照生成拥抱合成图，返回 data URL
type GeminiIface interface {
	GenerateHug(ctx context.Context, child, adult intake.EncodedImage) (string, error)
}

var _ GeminiIface = (*Client)(nil)
