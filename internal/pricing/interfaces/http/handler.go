package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/optionpricer/internal/pricing/application"
	"github.com/wyfcoding/optionpricer/internal/pricing/domain"
	"github.com/wyfcoding/optionpricer/pkg/logger"
	"github.com/wyfcoding/optionpricer/pkg/response"
)

// PricingHandler HTTP 处理器
// 负责处理与定价相关的 HTTP 请求
type PricingHandler struct {
	svc *application.PricingService
}

// NewPricingHandler 创建 HTTP 处理器实例
func NewPricingHandler(svc *application.PricingService) *PricingHandler {
	return &PricingHandler{svc: svc}
}

// RegisterRoutes 将处理器方法绑定到 Gin 路由
func (h *PricingHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.Health)

	api := router.Group("/api/v1/pricing")
	{
		api.POST("/price", h.PriceOption)
		api.POST("/price/code", h.PriceByCode)
		api.POST("/barrier/up-and-in", h.PriceUpAndInCall)
		api.POST("/batch", h.BatchPrice)
		api.POST("/convergence", h.AnalyzeConvergence)
		api.POST("/path", h.SimulatePath)
		api.GET("/results/:key", h.GetLatest)
		api.GET("/results/:key/history", h.GetHistory)
	}
}

// PriceRequest 定价请求
type PriceRequest struct {
	Kind         string                `json:"kind" binding:"required"`
	Params       domain.ContractParams `json:"params"`
	Replications int                   `json:"replications"`
	Seed         *uint64               `json:"seed"`
	Workers      int                   `json:"workers"`
}

func (r PriceRequest) command() (application.PriceOptionCommand, error) {
	kind, err := domain.ParsePayoffKind(r.Kind)
	if err != nil {
		return application.PriceOptionCommand{}, err
	}
	return application.PriceOptionCommand{
		Kind:         kind,
		Params:       r.Params,
		Replications: r.Replications,
		Seed:         r.Seed,
		Workers:      r.Workers,
	}, nil
}

// BatchRequest 批量定价请求
type BatchRequest struct {
	BatchID   string         `json:"batch_id"`
	Contracts []PriceRequest `json:"contracts" binding:"required"`
}

// ConvergenceRequest 收敛分析请求
type ConvergenceRequest struct {
	Kind              string                `json:"kind" binding:"required"`
	Params            domain.ContractParams `json:"params"`
	ReplicationCounts []int                 `json:"replication_counts"`
	Runs              int                   `json:"runs"`
	Seed              *uint64               `json:"seed"`
	Workers           int                   `json:"workers"`
}

// Health 健康检查
func (h *PricingHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// PriceOption 按收益类型定价
func (h *PricingHandler) PriceOption(c *gin.Context) {
	var req PriceRequest
	if !bind(c, &req) {
		return
	}
	cmd, err := req.command()
	if err != nil {
		h.fail(c, err)
		return
	}
	result, err := h.svc.PriceOption(c.Request.Context(), cmd)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// PriceByCode 通过平均方式/期权方向代码定价
func (h *PricingHandler) PriceByCode(c *gin.Context) {
	var cmd application.PriceByCodeCommand
	if !bind(c, &cmd) {
		return
	}
	result, err := h.svc.PriceByCode(c.Request.Context(), cmd)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// PriceUpAndInCall 向上敲入看涨期权定价
func (h *PricingHandler) PriceUpAndInCall(c *gin.Context) {
	var cmd application.UpAndInCallCommand
	if !bind(c, &cmd) {
		return
	}
	result, err := h.svc.PriceUpAndInCall(c.Request.Context(), cmd)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// BatchPrice 批量定价
func (h *PricingHandler) BatchPrice(c *gin.Context) {
	var req BatchRequest
	if !bind(c, &req) {
		return
	}
	cmd := application.BatchPriceCommand{
		BatchID:   req.BatchID,
		Contracts: make([]application.PriceOptionCommand, 0, len(req.Contracts)),
	}
	for _, r := range req.Contracts {
		pc, err := r.command()
		if err != nil {
			h.fail(c, err)
			return
		}
		cmd.Contracts = append(cmd.Contracts, pc)
	}
	result, err := h.svc.BatchPrice(c.Request.Context(), cmd)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// AnalyzeConvergence 收敛分析
func (h *PricingHandler) AnalyzeConvergence(c *gin.Context) {
	var req ConvergenceRequest
	if !bind(c, &req) {
		return
	}
	kind, err := domain.ParsePayoffKind(req.Kind)
	if err != nil {
		h.fail(c, err)
		return
	}
	report, err := h.svc.AnalyzeConvergence(c.Request.Context(), application.ConvergenceCommand{
		Kind:              kind,
		Params:            req.Params,
		ReplicationCounts: req.ReplicationCounts,
		Runs:              req.Runs,
		Seed:              req.Seed,
		Workers:           req.Workers,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, report)
}

// SimulatePath 单条路径诊断
func (h *PricingHandler) SimulatePath(c *gin.Context) {
	var cmd application.SimulatePathCommand
	if !bind(c, &cmd) {
		return
	}
	report, err := h.svc.SimulatePath(c.Request.Context(), cmd)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, report)
}

// GetLatest 查询合约最新定价结果
func (h *PricingHandler) GetLatest(c *gin.Context) {
	result, err := h.svc.GetLatest(c.Request.Context(), c.Param("key"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// GetHistory 查询合约定价历史
func (h *PricingHandler) GetHistory(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			response.ErrorWithStatus(c, http.StatusBadRequest, "invalid limit", domain.ErrorCodeInvalidParameter)
			return
		}
		limit = n
	}
	results, err := h.svc.GetHistory(c.Request.Context(), c.Param("key"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, results)
}

func bind(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), domain.ErrorCodeInvalidParameter)
		return false
	}
	return true
}

// fail 将领域错误映射为 HTTP 状态码
func (h *PricingHandler) fail(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "Pricing request failed", "path", c.FullPath(), "error", err)
	}
	response.ErrorWithStatus(c, status, err.Error(), code)
}

func statusFor(err error) (int, string) {
	code := domain.ErrorCode(err)
	switch {
	case errors.Is(err, application.ErrResultNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, application.ErrHistoryUnavailable):
		return http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE"
	case code == domain.ErrorCodeInvalidSelector, code == domain.ErrorCodeInvalidParameter:
		return http.StatusBadRequest, code
	case code == domain.ErrorCodeCancelled, errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, code
	default:
		return http.StatusInternalServerError, code
	}
}
