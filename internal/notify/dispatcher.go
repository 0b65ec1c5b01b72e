package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode"

	"layaway/internal/infrastructure/mq"
	"layaway/internal/model"

	"github.com/IBM/sarama"
)

var ErrNoRecipient = errors.New("客户手机号为空，无法发送通知")

// Dispatcher 交付通知出口，尽力而为，调用方只记录失败
type Dispatcher interface {
	Dispatch(ctx context.Context, req *model.FinancingRequest) error
}

// Notification 投递到 Kafka 的通知内容，由下游消息通道发给客户
type Notification struct {
	RequestID string    `json:"request_id"`
	Phone     string    `json:"phone"`
	Message   string    `json:"message"`
	Link      string    `json:"link"`
	SentAt    time.Time `json:"sent_at"`
}

// NormalizePhone 只保留数字，去掉国内前缀 0，没有国家码时补上
func NormalizePhone(raw, countryCode string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, raw)
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return ""
	}
	if countryCode == "" {
		return digits
	}
	// 国际格式里仍可能带着国内前缀 0，如 +593 099...
	rest := strings.TrimPrefix(strings.TrimPrefix(digits, countryCode), "0")
	if rest == "" {
		return ""
	}
	return countryCode + rest
}

// Compose 交付通知正文：客户姓名、商品、已付总额、收货地址
func Compose(req *model.FinancingRequest) string {
	return fmt.Sprintf(
		"Hola %s, tu pedido de %s ha sido entregado. Total pagado: $%d. Dirección de entrega: %s. ¡Gracias por confiar en nosotros!",
		req.CustomerName,
		req.ProductName,
		req.AmountPaid,
		req.Address,
	)
}

// Link 生成消息跳转链接
func Link(phone, text string) string {
	return "https://wa.me/" + phone + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

// Build 组装一条通知
func Build(req *model.FinancingRequest, countryCode string, now time.Time) (*Notification, error) {
	phone := NormalizePhone(req.Phone, countryCode)
	if phone == "" {
		return nil, ErrNoRecipient
	}
	text := Compose(req)
	return &Notification{
		RequestID: req.ID,
		Phone:     phone,
		Message:   text,
		Link:      Link(phone, text),
		SentAt:    now,
	}, nil
}

// KafkaDispatcher 把通知写入 Kafka topic，生产者不重试，至多投递一次
type KafkaDispatcher struct {
	producer    sarama.SyncProducer
	topic       string
	countryCode string
	logger      *slog.Logger
}

func NewKafkaDispatcher(producer sarama.SyncProducer, topic, countryCode string, logger *slog.Logger) *KafkaDispatcher {
	return &KafkaDispatcher{
		producer:    producer,
		topic:       topic,
		countryCode: countryCode,
		logger:      logger.With("component", "notify"),
	}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, req *model.FinancingRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n, err := Build(req, d.countryCode, time.Now())
	if err != nil {
		return err
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}

	if err := mq.SendMessage(d.producer, d.topic, n.RequestID, payload); err != nil {
		return fmt.Errorf("发送交付通知失败: %w", err)
	}

	d.logger.Info("交付通知已发送", "request_id", n.RequestID, "topic", d.topic)
	return nil
}

// NopDispatcher 未配置 Kafka 时使用，只打印日志
type NopDispatcher struct {
	CountryCode string
	Logger      *slog.Logger
}

func (d NopDispatcher) Dispatch(_ context.Context, req *model.FinancingRequest) error {
	n, err := Build(req, d.CountryCode, time.Now())
	if err != nil {
		return err
	}
	if d.Logger != nil {
		d.Logger.Info("未配置消息通道，跳过交付通知", "request_id", n.RequestID, "link", n.Link)
	}
	return nil
}
