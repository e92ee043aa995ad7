package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hugime/common"
	"hugime/internal/genai/gemini"
	"hugime/internal/tools"
	"hugime/internal/web"

	"github.com/mark3labs/mcp-go/server"
)

func main() {
	// 加载配置，凭据缺失时直接退出
	config, err := common.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 打印配置信息（隐藏敏感信息）
	fmt.Fprintf(os.Stderr, "Server starting...\n")
	fmt.Fprintf(os.Stderr, "Mode: %s\n", config.ServerMode)
	fmt.Fprintf(os.Stderr, "GenAI Model: %s\n", config.GenAIModelName)
	fmt.Fprintf(os.Stderr, "API Key: %s\n", maskAPIKey(config.GenAIAPIKey))

	geminiClient, err := gemini.NewClientFromConfig(config)
	if err != nil {
		common.Fatalf("Failed to create Gemini client: %v", err)
	}
	defer geminiClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch config.ServerMode {
	case common.ServerModeStdio:
		err = serveStdio(geminiClient)
	default:
		err = serveHTTP(ctx, config, geminiClient)
	}
	if err != nil {
		common.Fatalf("Server error: %v", err)
	}
}

func serveStdio(geminiClient gemini.GeminiIface) error {
	s := server.NewMCPServer(
		"hugime MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	if err := tools.RegisterGeminiTools(s, geminiClient); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}
	return server.ServeStdio(s)
}

func serveHTTP(ctx context.Context, config *common.Config, geminiClient gemini.GeminiIface) error {
	sessions := web.NewSessions(geminiClient, config.SessionTTL)
	go sessions.RunSweeper(ctx, time.Minute)

	srv := &http.Server{
		Addr:              config.GetServerAddr(),
		Handler:           web.NewHandler(sessions).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		common.Infof("HTTP server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		common.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// maskAPIKey 隐藏 API Key 的敏感部分
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
