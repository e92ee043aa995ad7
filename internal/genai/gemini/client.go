package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hugime/common"
	"hugime/internal/intake"
	"hugime/internal/utils"

	"google.golang.org/genai"
)

// HugPrompt 固定的生成指令
const HugPrompt = `Given these two photos, one of a person as a child and one as an adult, create a new photorealistic image. ` +
	`In the new image, the adult version of the person should be warmly and lovingly hugging their younger, child self. ` +
	`Place them in a pleasant, softly lit outdoor setting like a park or garden during a sunny day. ` +
	`The style should be that of a heartfelt, professional photograph. Ensure the final image is a single, cohesive picture. ` +
	`The final image should only contain the two people hugging.`

// 同时请求图片和文本，模型附带说明文字时也能拿到图片
var responseModalities = []string{"IMAGE", "TEXT"}

var (
	// ErrGenerationFailed 调用服务失败（网络、鉴权、配额、响应格式等）
	ErrGenerationFailed = errors.New("failed to generate image")
	// ErrNoImageReturned 调用成功但响应中没有图片
	ErrNoImageReturned = errors.New("model did not return an image")
	// ErrUnknown 无法识别的失败
	ErrUnknown = errors.New("an unknown error occurred while generating the image")
)

// contentGenerator genai.Models 中用到的部分
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client Gemini 客户端实现，调用之间不保存状态，可并发使用
type Client struct {
	models contentGenerator
	model  string
}

// Config Gemini 客户端配置
type Config struct {
	APIKey    string // API Key
	BaseURL   string // 自定义 Base URL，如果为空则使用默认值
	ModelName string // 模型名称，例如：gemini-2.5-flash-image-preview
}

// NewClient 创建新的 Gemini 客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("model name is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return newClient(client.Models, cfg.ModelName), nil
}

// NewClientFromConfig 从应用配置创建 Gemini 客户端
func NewClientFromConfig(cfg *common.Config) (*Client, error) {
	return NewClient(Config{
		APIKey:    cfg.GenAIAPIKey,
		BaseURL:   cfg.GenAIBaseURL,
		ModelName: cfg.GenAIModelName,
	})
}

func newClient(models contentGenerator, model string) *Client {
	return &Client{models: models, model: model}
}

// Close 关闭客户端（genai.Client 不需要显式关闭）
func (c *Client) Close() error {
	return nil
}

// GenerateHug 发送一次请求：童年照、成年照、固定指令，按顺序排列。
// 返回响应中第一张内联图片的 data URL；不重试，也不设置本地超时。
func (c *Client) GenerateHug(ctx context.Context, child, adult intake.EncodedImage) (string, error) {
	childPart, err := inlinePart(child)
	if err != nil {
		return "", generationFailed(fmt.Errorf("child image: %w", err))
	}
	adultPart, err := inlinePart(adult)
	if err != nil {
		return "", generationFailed(fmt.Errorf("adult image: %w", err))
	}

	parts := []*genai.Part{
		childPart,
		adultPart,
		genai.NewPartFromText(HugPrompt),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	common.WithFields(map[string]interface{}{
		"model":      c.model,
		"child_mime": child.MIMEType,
		"adult_mime": adult.MIMEType,
	}).Debug("Starting hug image generation")

	result, err := c.models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: responseModalities,
	})
	if err != nil {
		common.WithError(err).WithField("model", c.model).Error("Failed to generate image from Gemini API")
		return "", generationFailed(err)
	}
	if result == nil {
		return "", generationFailed(errors.New("malformed response: empty body"))
	}

	return c.extractImage(result)
}

func inlinePart(img intake.EncodedImage) (*genai.Part, error) {
	data, err := img.Bytes()
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return &genai.Part{
		InlineData: &genai.Blob{
			Data:     data,
			MIMEType: img.MIMEType,
		},
	}, nil
}

// extractImage 按顺序扫描第一个候选的内容，返回第一个内联数据
func (c *Client) extractImage(result *genai.GenerateContentResponse) (string, error) {
	var texts []string
	if len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
		candidate := result.Candidates[0]
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if part.InlineData != nil {
				common.WithFields(map[string]interface{}{
					"model":     c.model,
					"mime_type": part.InlineData.MIMEType,
					"size":      len(part.InlineData.Data),
				}).Info("Hug image generated successfully")
				return utils.BuildDataURL(part.InlineData.MIMEType, part.InlineData.Data), nil
			}
			if part.Text != "" && !part.Thought {
				texts = append(texts, part.Text)
			}
		}
	}

	text := strings.Join(texts, "")
	if text == "" {
		text = "No text response"
	}

	fields := map[string]interface{}{
		"model":      c.model,
		"candidates": len(result.Candidates),
		"text":       utils.TruncateForLog(text, 200),
	}
	if len(result.Candidates) > 0 {
		fields["finish_reason"] = result.Candidates[0].FinishReason
	}
	common.WithFields(fields).Warn("No image data found in Gemini response")

	return "", fmt.Errorf("%w. Response: %s", ErrNoImageReturned, text)
}

// generationFailed 把任意失败统一为 ErrGenerationFailed，保留原始信息
func generationFailed(err error) error {
	if err == nil || err.Error() == "" {
		return fmt.Errorf("%w: %w", ErrGenerationFailed, ErrUnknown)
	}
	return fmt.Errorf("%w: %w", ErrGenerationFailed, err)
}
