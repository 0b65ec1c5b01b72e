package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"layaway/internal/model"
	"layaway/internal/repository"
	"layaway/pkg/idgen"

	"gorm.io/gorm"
)

// RequestService 分期申请的创建与查询
type RequestService struct {
	requestRepo   *repository.RequestRepository
	trustRepo     *repository.TrustRepository
	configService *ConfigService
	logger        *slog.Logger
	now           func() time.Time
}

func NewRequestService(db *gorm.DB, configService *ConfigService, logger *slog.Logger) *RequestService {
	return &RequestService{
		requestRepo:   repository.NewRequestRepository(db),
		trustRepo:     repository.NewTrustRepository(db),
		configService: configService,
		logger:        logger.With("component", "layaway_request"),
		now:           time.Now,
	}
}

// CreateRequest 客户提交的分期申请；身份信息来自登录态，价格来自商品目录
type CreateRequest struct {
	CustomerName    string
	Email           string
	Phone           string
	Address         string
	ProductName     string
	ProductCategory string
	TotalAmount     int64
}

// RequestView 展示用：附带剩余金额和客户当前的信任星级
type RequestView struct {
	*model.FinancingRequest
	Balance              int64 `json:"balance"`
	CustomerSuccessCount int   `json:"customer_success_count"`
	CustomerStars        int   `json:"customer_stars"`
}

func newView(req *model.FinancingRequest, record *model.TrustRecord) *RequestView {
	view := &RequestView{
		FinancingRequest: req,
		Balance:          req.Balance(),
	}
	if record != nil {
		view.CustomerSuccessCount = record.SuccessCount
		view.CustomerStars = record.Stars()
	}
	return view
}

func (r *CreateRequest) validate() error {
	required := []struct{ name, value string }{
		{"customer_name", r.CustomerName},
		{"email", r.Email},
		{"phone", r.Phone},
		{"address", r.Address},
		{"product_name", r.ProductName},
		{"product_category", r.ProductCategory},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("%w: %s 不能为空", ErrInvalidRequest, field.name)
		}
	}
	if r.TotalAmount <= 0 {
		return fmt.Errorf("%w: total_amount 必须大于0", ErrInvalidRequest)
	}
	return nil
}

// Create 创建 pending 申请，利率在此刻快照，之后修改全局利率不影响已有申请
func (s *RequestService) Create(ctx context.Context, in *CreateRequest) (*model.FinancingRequest, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	financing, err := s.configService.Get(ctx)
	if err != nil {
		return nil, err
	}
	category := strings.TrimSpace(in.ProductCategory)
	if !financing.AllowsCategory(category) {
		return nil, fmt.Errorf("%w: %s", ErrCategoryNotFinanced, category)
	}

	rate := financing.InterestRatePercent
	req := &model.FinancingRequest{
		ID:                    idgen.GenerateRequestNo(),
		CustomerName:          strings.TrimSpace(in.CustomerName),
		Email:                 strings.TrimSpace(in.Email),
		EmailKey:              model.NormalizeEmail(in.Email),
		Phone:                 strings.TrimSpace(in.Phone),
		Address:               strings.TrimSpace(in.Address),
		ProductName:           strings.TrimSpace(in.ProductName),
		ProductCategory:       category,
		TotalAmount:           in.TotalAmount,
		InterestRateAtRequest: rate,
		TotalWithInterest:     model.TotalWithInterest(in.TotalAmount, rate),
		Status:                model.RequestStatusPending,
		CreatedAt:             s.now(),
	}

	if err := s.requestRepo.Create(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Info("分期申请已创建",
		"request_id", req.ID,
		"category", req.ProductCategory,
		"total_with_interest", req.TotalWithInterest,
	)
	return req, nil
}

// Get 按 ID 查询单个申请，软删除的也能查到
func (s *RequestService) Get(ctx context.Context, id string) (*RequestView, error) {
	req, err := s.requestRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	record, err := s.trustRepo.Get(ctx, nil, req.EmailKey)
	if err != nil {
		return nil, err
	}
	return newView(req, record), nil
}

// AllRequests 全部申请（含软删除），审计用，新的在前
func (s *RequestService) AllRequests(ctx context.Context) ([]*RequestView, error) {
	reqs, err := s.requestRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, reqs)
}

// ActiveRequests 未删除且未结束（非 delivered / cancelled）的申请，新的在前
func (s *RequestService) ActiveRequests(ctx context.Context) ([]*RequestView, error) {
	reqs, err := s.requestRepo.ListVisible(ctx, model.HistoryStatuses, false)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, reqs)
}

// HistoryRequests 未删除且已交付或已取消的申请，新的在前
func (s *RequestService) HistoryRequests(ctx context.Context) ([]*RequestView, error) {
	reqs, err := s.requestRepo.ListVisible(ctx, model.HistoryStatuses, true)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, reqs)
}

func (s *RequestService) views(ctx context.Context, reqs []*model.FinancingRequest) ([]*RequestView, error) {
	keys := make([]string, 0, len(reqs))
	seen := make(map[string]struct{}, len(reqs))
	for _, req := range reqs {
		if _, ok := seen[req.EmailKey]; ok {
			continue
		}
		seen[req.EmailKey] = struct{}{}
		keys = append(keys, req.EmailKey)
	}

	records, err := s.trustRepo.GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}

	views := make([]*RequestView, 0, len(reqs))
	for _, req := range reqs {
		views = append(views, newView(req, records[req.EmailKey]))
	}
	return views, nil
}
