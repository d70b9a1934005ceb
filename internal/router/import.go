package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"confimport/internal/adapter"
	"confimport/internal/app"
	"confimport/internal/expression"
	"confimport/internal/importer"
	"confimport/internal/source"
)

// maxBodySize 与 HTTP 来源的上限一致。
const maxBodySize = 64 << 20

// ImportService 是处理器依赖的导入服务，*app.Service 实现了它。
type ImportService interface {
	Import(ctx context.Context) (*importer.Result, error)
	ImportDocument(ctx context.Context, doc source.Document, rules importer.Rules) (*importer.Result, error)
	Validate(ctx context.Context, doc source.Document, rules importer.Rules) error
	LastRun() (app.RunRecord, bool)
}

// ImportHandler 负责处理导入相关的 HTTP 请求。
type ImportHandler struct {
	svc    ImportService
	logger *zap.Logger
}

// NewImportHandler 构建一个新的 ImportHandler。
func NewImportHandler(svc ImportService, logger *zap.Logger) *ImportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportHandler{svc: svc, logger: logger}
}

// RegisterRoutes 将导入路由注册到给定的路由组。
func (h *ImportHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.handleImport)
	rg.POST("/validate", h.handleValidate)
	rg.GET("/last", h.handleLast)
}

// handleImport 请求体为空时导入配置的来源，否则导入请求中的配置包。
func (h *ImportHandler) handleImport(c *gin.Context) {
	doc, rules, err := readDocument(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var res *importer.Result
	if len(doc.Data) == 0 {
		res, err = h.svc.Import(c.Request.Context())
	} else {
		res, err = h.svc.ImportDocument(c.Request.Context(), doc, rules)
	}
	if err != nil {
		h.logger.Error("import failed", zap.String("package", doc.Name), zap.Error(err))
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ImportHandler) handleValidate(c *gin.Context) {
	doc, rules, err := readDocument(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(doc.Data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "package payload is empty"})
		return
	}
	if err := h.svc.Validate(c.Request.Context(), doc, rules); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (h *ImportHandler) handleLast(c *gin.Context) {
	rec, ok := h.svc.LastRun()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no import has run yet"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// readDocument 支持两种请求：multipart 表单（package 文件，可选 rules 字段），
// 或直接以请求体作为配置包。格式取 format 参数，缺省时按 Content-Type 与内容判断。
func readDocument(c *gin.Context) (source.Document, importer.Rules, error) {
	var (
		doc   source.Document
		rules importer.Rules
	)
	if format := c.Query("format"); format != "" {
		f, err := adapter.ParseFormat(format)
		if err != nil {
			return doc, nil, err
		}
		doc.Format = f
	}
	doc.Name = c.Query("name")

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("package")
		if err != nil {
			return doc, nil, fmt.Errorf("读取上传的配置包失败: %w", err)
		}
		f, err := header.Open()
		if err != nil {
			return doc, nil, err
		}
		defer f.Close()
		if doc.Data, err = io.ReadAll(io.LimitReader(f, maxBodySize)); err != nil {
			return doc, nil, err
		}
		if doc.Name == "" {
			doc.Name = header.Filename
		}
		if raw := c.PostForm("rules"); raw != "" {
			if rules, err = importer.ParseRules([]byte(raw)); err != nil {
				return doc, nil, err
			}
		}
	} else {
		data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize))
		if err != nil {
			return doc, nil, err
		}
		doc.Data = data
	}

	if doc.Format == "" && len(doc.Data) > 0 {
		switch c.ContentType() {
		case "application/json":
			doc.Format = adapter.FormatJSON
		case "application/yaml", "application/x-yaml", "text/yaml":
			doc.Format = adapter.FormatYAML
		default:
			doc.Format = adapter.DetectFormat(doc.Name, doc.Data)
		}
	}
	return doc, rules, nil
}

// writeError 把导入错误映射为状态码：包内容问题 422，并发冲突 409，其余 500。
func writeError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	var refErr *importer.ReferenceError
	if errors.As(err, &refErr) {
		body["reference"] = gin.H{
			"kind":     refErr.Kind,
			"name":     refErr.Name,
			"ref_kind": refErr.RefKind,
			"ref":      refErr.Ref,
			"host":     refErr.Host,
		}
	}
	switch {
	case errors.Is(err, app.ErrBusy):
		c.JSON(http.StatusConflict, body)
	case errors.Is(err, app.ErrDecode), errors.Is(err, importer.ErrInvalidRules):
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, importer.ErrUnresolvedReference),
		errors.Is(err, importer.ErrDanglingDependency),
		errors.Is(err, importer.ErrTemplateCycle),
		errors.Is(err, expression.ErrMalformed):
		c.JSON(http.StatusUnprocessableEntity, body)
	default:
		c.JSON(http.StatusInternalServerError, body)
	}
}
