package handler

import (
	"context"
	"errors"
	"log/slog"

	"layaway/internal/model"
	"layaway/internal/repository"
	"layaway/internal/service"
	"layaway/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	requestService   *service.RequestService
	lifecycleService *service.LifecycleService
	trustService     *service.TrustService
	configService    *service.ConfigService
	logger           *slog.Logger
}

// NewHandler 创建处理器实例
func NewHandler(requests *service.RequestService, lifecycle *service.LifecycleService, trust *service.TrustService, configs *service.ConfigService, logger *slog.Logger) *Handler {
	return &Handler{
		requestService:   requests,
		lifecycleService: lifecycle,
		trustService:     trust,
		configService:    configs,
		logger:           logger.With("component", "http"),
	}
}

// fail 把业务错误转换成响应码
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		response.ParamError(c, err.Error())
	case errors.Is(err, repository.ErrRequestNotFound):
		response.BusinessError(c, response.CodeRequestNotFound, "分期申请不存在")
	case errors.Is(err, service.ErrInvalidTransition):
		response.BusinessError(c, response.CodeInvalidTransition, err.Error())
	case errors.Is(err, service.ErrPreconditionFailed):
		response.BusinessError(c, response.CodePreconditionFailed, err.Error())
	case errors.Is(err, service.ErrInvalidConfiguration):
		response.BusinessError(c, response.CodeInvalidConfiguration, err.Error())
	case errors.Is(err, service.ErrCategoryNotFinanced):
		response.BusinessError(c, response.CodeCategoryNotFinanced, err.Error())
	case errors.Is(err, service.ErrInvalidPayment):
		response.BusinessError(c, response.CodeInvalidPayment, err.Error())
	case errors.Is(err, repository.ErrConcurrentUpdate):
		response.BusinessError(c, response.CodeConcurrentUpdate, "申请已被其他操作修改，请刷新后重试")
	case errors.Is(err, repository.ErrStoreUnavailable):
		h.logger.Error("存储不可用", "path", c.FullPath(), "err", err)
		response.Error(c, response.CodeStoreUnavailable, "操作失败，请稍后重试")
	default:
		h.logger.Error("请求处理失败", "path", c.FullPath(), "err", err)
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 客户侧接口
// ============================================================

// CreateRequestBody 提交分期申请
type CreateRequestBody struct {
	CustomerName    string `json:"customer_name" binding:"required"`
	Email           string `json:"email" binding:"required"`
	Phone           string `json:"phone" binding:"required"`
	Address         string `json:"address" binding:"required"`
	ProductName     string `json:"product_name" binding:"required"`
	ProductCategory string `json:"product_category" binding:"required"`
	TotalAmount     int64  `json:"total_amount" binding:"required,gt=0"` // 单位：分
}

// CreateRequest 提交分期申请
// POST /api/v1/layaway/requests
func (h *Handler) CreateRequest(c *gin.Context) {
	var body CreateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	req, err := h.requestService.Create(c.Request.Context(), &service.CreateRequest{
		CustomerName:    body.CustomerName,
		Email:           body.Email,
		Phone:           body.Phone,
		Address:         body.Address,
		ProductName:     body.ProductName,
		ProductCategory: body.ProductCategory,
		TotalAmount:     body.TotalAmount,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"id":                  req.ID,
		"status":              req.Status,
		"interest_rate":       req.InterestRateAtRequest,
		"total_with_interest": req.TotalWithInterest,
	})
}

// GetRequest 查询申请详情
// GET /api/v1/layaway/requests/:id
func (h *Handler) GetRequest(c *gin.Context) {
	view, err := h.requestService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, view)
}

// ============================================================
// 管理端接口
// ============================================================

// ListActive 进行中的申请
// GET /api/v1/admin/layaway/active
func (h *Handler) ListActive(c *gin.Context) {
	h.list(c, h.requestService.ActiveRequests)
}

// ListHistory 已交付或已取消的申请
// GET /api/v1/admin/layaway/history
func (h *Handler) ListHistory(c *gin.Context) {
	h.list(c, h.requestService.HistoryRequests)
}

// ListAll 全部申请，包含已隐藏的
// GET /api/v1/admin/layaway/requests
func (h *Handler) ListAll(c *gin.Context) {
	h.list(c, h.requestService.AllRequests)
}

func (h *Handler) list(c *gin.Context, fetch func(ctx context.Context) ([]*service.RequestView, error)) {
	views, err := fetch(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":  views,
		"total": len(views),
	})
}

// transition 包装只需要申请 ID 的状态操作
// POST /api/v1/admin/layaway/requests/:id/{approve,reject,deliver,cancel,refund}
func (h *Handler) transition(action func(ctx context.Context, id string) (*model.FinancingRequest, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := action(c.Request.Context(), c.Param("id"))
		if err != nil {
			h.fail(c, err)
			return
		}
		response.Success(c, req)
	}
}

// RecordPaymentBody 登记付款
type RecordPaymentBody struct {
	Amount int64 `json:"amount" binding:"required"` // 单位：分
}

// RecordPayment 登记一笔付款
// POST /api/v1/admin/layaway/requests/:id/payment
func (h *Handler) RecordPayment(c *gin.Context) {
	var body RecordPaymentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	req, err := h.lifecycleService.RecordPayment(c.Request.Context(), c.Param("id"), body.Amount)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"id":          req.ID,
		"amount_paid": req.AmountPaid,
		"balance":     req.Balance(),
	})
}

// DeleteRequest 从管理端列表隐藏
// DELETE /api/v1/admin/layaway/requests/:id
func (h *Handler) DeleteRequest(c *gin.Context) {
	if _, err := h.lifecycleService.SoftDelete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"message": "申请已隐藏",
	})
}

// GetTrust 查询客户信任星级
// GET /api/v1/admin/layaway/trust/:email
func (h *Handler) GetTrust(c *gin.Context) {
	summary, err := h.trustService.Get(c.Request.Context(), c.Param("email"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, summary)
}

// ReconcileTrust 从已交付申请重建信任记录
// POST /api/v1/admin/layaway/trust/:email/reconcile
func (h *Handler) ReconcileTrust(c *gin.Context) {
	summary, err := h.trustService.Reconcile(c.Request.Context(), c.Param("email"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, summary)
}

// GetConfig 查询分期配置
// GET /api/v1/admin/layaway/config
func (h *Handler) GetConfig(c *gin.Context) {
	cfg, err := h.configService.Get(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, cfg)
}

// UpdateConfig 修改利率或可分期品类，未给出的字段保持不变
// PUT /api/v1/admin/layaway/config
func (h *Handler) UpdateConfig(c *gin.Context) {
	var patch service.ConfigPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	cfg, err := h.configService.Set(c.Request.Context(), patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, cfg)
}
