package tools

import (
	"context"
	"fmt"

	"hugime/common"
	"hugime/internal/genai/gemini"
	"hugime/internal/intake"
	"hugime/internal/utils"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// HugGenerateToolName MCP 工具名
const HugGenerateToolName = "hug_generate"

// RegisterGeminiTools 注册拥抱合成图的 MCP tool
func RegisterGeminiTools(s *server.MCPServer, geminiClient gemini.GeminiIface) error {
	hugTool := mcp.NewTool(
		HugGenerateToolName,
		mcp.WithDescription("Create a photorealistic image of an adult warmly hugging their younger child self. Takes a childhood photo and an adult photo of the same person as data URIs and returns the generated image."),
		mcp.WithString("child_image",
			mcp.Required(),
			mcp.Description("Childhood photo as a data URI, e.g. data:image/jpeg;base64,..."),
		),
		mcp.WithString("adult_image",
			mcp.Required(),
			mcp.Description("Adult photo as a data URI, e.g. data:image/jpeg;base64,..."),
		),
	)

	s.AddTool(hugTool, newHugHandler(geminiClient))
	return nil
}

func newHugHandler(geminiClient gemini.GeminiIface) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		child, errResult := requireImage(req, "child_image")
		if errResult != nil {
			return errResult, nil
		}
		adult, errResult := requireImage(req, "adult_image")
		if errResult != nil {
			return errResult, nil
		}

		common.WithFields(map[string]interface{}{
			"child_mime": child.MIMEType,
			"adult_mime": adult.MIMEType,
		}).Info("MCP: generating hug image")

		dataURL, err := geminiClient.GenerateHug(ctx, child, adult)
		if err != nil {
			common.WithError(err).Error("MCP: failed to generate hug image")
			return mcp.NewToolResultError(err.Error()), nil
		}

		mimeType, payload, err := utils.ParseDataURL(dataURL)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("unexpected image result: %v", err)), nil
		}
		return mcp.NewToolResultImage("Generated hug image", payload, mimeType), nil
	}
}

func requireImage(req mcp.CallToolRequest, name string) (intake.EncodedImage, *mcp.CallToolResult) {
	raw, err := req.RequireString(name)
	if err != nil {
		return intake.EncodedImage{}, mcp.NewToolResultError(fmt.Sprintf("%s parameter is required: %v", name, err))
	}
	img, err := intake.FromDataURL(raw)
	if err != nil {
		return intake.EncodedImage{}, mcp.NewToolResultError(fmt.Sprintf("invalid %s: %v", name, err))
	}
	return img, nil
}
