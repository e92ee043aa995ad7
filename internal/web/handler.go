// Package web 提供照片上传页面和生成接口
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"hugime/common"
	"hugime/internal/controller"
	"hugime/internal/intake"
	"hugime/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// 表单上传在内存中保留的最大字节数，超出部分由 net/http 写入临时文件
const maxMemory = 32 << 20

const invalidFileTypeAlert = "Please upload an image file."

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"imageURL": imageURL,
}).ParseFS(templateFS, "templates/index.html"))

// imageURL 只放行 data:image/ 开头的地址，其余替换为空白
func imageURL(s string) template.URL {
	if rest, ok := strings.CutPrefix(s, "data:"); ok && utils.IsImageMediaType(rest) {
		return template.URL(s)
	}
	return template.URL("about:blank")
}

// Handler HTTP 处理器
type Handler struct {
	sessions *Sessions
}

// NewHandler 创建处理器
func NewHandler(sessions *Sessions) *Handler {
	return &Handler{sessions: sessions}
}

// Routes 注册所有路由
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", h.HandleIndex)
	r.Post("/upload/{slot}", h.HandleUpload)
	r.Post("/generate", h.HandleGenerate)
	r.Post("/reset", h.HandleReset)
	r.Get("/api/state", h.HandleState)
	r.Get("/healthz", h.HandleHealth)
	return r
}

type pageData struct {
	controller.Snapshot
	Alert       string
	ResultName  string
	CanGenerate bool
}

func (h *Handler) render(w http.ResponseWriter, status int, snap controller.Snapshot, alert string) {
	data := pageData{
		Snapshot:    snap,
		Alert:       alert,
		CanGenerate: snap.State == controller.StateReady,
	}
	if snap.Result != "" {
		if mimeType, _, err := utils.ParseDataURL(snap.Result); err == nil {
			data.ResultName = "hugime" + utils.GetExtensionFromMimeType(mimeType)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := indexTemplate.Execute(w, data); err != nil {
		common.WithError(err).Error("Failed to render page")
	}
}

// snapshot 只读请求使用；没有会话时返回空状态
func (h *Handler) snapshot(r *http.Request) controller.Snapshot {
	if ctrl, ok := h.sessions.Lookup(r); ok {
		return ctrl.Snapshot()
	}
	return controller.Snapshot{State: controller.StateIdle}
}

// HandleIndex 渲染当前会话的页面
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, h.snapshot(r), "")
}

// HandleUpload 接收单个槽位的照片
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	slot, err := controller.ParseSlot(chi.URLParam(r, "slot"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}

	img, err := intake.Acquire(r.Context(), intake.FromMultipart(files[0]))
	if errors.Is(err, intake.ErrInvalidFileType) {
		common.WithFields(map[string]interface{}{
			"slot":     slot,
			"filename": files[0].Filename,
		}).Info("Rejected non-image upload")
		h.render(w, http.StatusUnsupportedMediaType, h.snapshot(r), invalidFileTypeAlert)
		return
	}
	if err != nil {
		common.WithError(err).WithField("slot", slot).Error("Failed to read upload")
		http.Error(w, "Failed to read upload", http.StatusInternalServerError)
		return
	}

	h.sessions.Controller(w, r).Select(slot, img)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleGenerate 触发生成；模型调用在后台进行，不随请求结束而取消
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctrl := h.sessions.Controller(w, r)

	err := ctrl.Trigger(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, controller.ErrMissingInput),
		errors.Is(err, controller.ErrInFlight),
		errors.Is(err, controller.ErrAlreadyDone):
		common.WithError(err).Debug("Generate ignored")
	case err != nil:
		common.WithError(err).Error("Failed to start generation")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleReset 清空照片、结果和错误
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if ctrl, ok := h.sessions.Lookup(r); ok {
		ctrl.Reset()
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type photoInfo struct {
	MIMEType string `json:"mime_type"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

func newPhotoInfo(img *intake.EncodedImage) *photoInfo {
	if img == nil {
		return nil
	}
	return &photoInfo{MIMEType: img.MIMEType, Width: img.Width, Height: img.Height}
}

type stateResponse struct {
	State    controller.State `json:"state"`
	HasChild bool             `json:"has_child"`
	HasAdult bool             `json:"has_adult"`
	Child    *photoInfo       `json:"child,omitempty"`
	Adult    *photoInfo       `json:"adult,omitempty"`
	Result   string           `json:"result,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// HandleState 以 JSON 返回当前状态
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(r)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stateResponse{
		State:    snap.State,
		HasChild: snap.Child != nil,
		HasAdult: snap.Adult != nil,
		Child:    newPhotoInfo(snap.Child),
		Adult:    newPhotoInfo(snap.Adult),
		Result:   snap.Result,
		Error:    snap.Error,
	})
}

// HandleHealth 健康检查
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		common.WithFields(map[string]interface{}{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
		}).Info("HTTP request")
	})
}
