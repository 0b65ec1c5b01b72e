package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"layaway/internal/infrastructure/mq"
	"layaway/internal/logging"
	"layaway/internal/model"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"0991234567", "593991234567"},
		{"099 123 4567", "593991234567"},
		{"+593 99 123 4567", "593991234567"},
		{"593991234567", "593991234567"},
		{"00593991234567", "593991234567"},
		{"+593 0991234567", "593991234567"},
		{"593 099 123 4567", "593991234567"},
		{"", ""},
		{"n/a", ""},
	}
	for _, tc := range cases {
		if got := NormalizePhone(tc.raw, "593"); got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func deliveredRequest() *model.FinancingRequest {
	return &model.FinancingRequest{
		ID:           "LAY1",
		CustomerName: "Ana Pérez",
		Phone:        "0991234567",
		Address:      "Av. Amazonas 123 & Colón",
		ProductName:  "Phone X",
		AmountPaid:   105000,
	}
}

func TestBuildComposesMessageAndLink(t *testing.T) {
	n, err := Build(deliveredRequest(), "593", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, part := range []string{"Ana Pérez", "Phone X", "105000", "Av. Amazonas 123 & Colón"} {
		if !strings.Contains(n.Message, part) {
			t.Errorf("message %q missing %q", n.Message, part)
		}
	}
	if !strings.HasPrefix(n.Link, "https://wa.me/593991234567?text=") {
		t.Fatalf("unexpected link %q", n.Link)
	}
	if strings.Contains(n.Link, "+") || strings.Contains(n.Link, " ") {
		t.Fatalf("link text must be percent-encoded: %q", n.Link)
	}
	if strings.Contains(n.Link[len("https://wa.me/593991234567?text="):], "&") {
		t.Fatalf("ampersand in text must be escaped: %q", n.Link)
	}
}

func TestBuildRequiresPhone(t *testing.T) {
	req := deliveredRequest()
	req.Phone = ""
	if _, err := Build(req, "593", testNow); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
}

func TestKafkaDispatcherPublishesNotification(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mq.NewProducerConfig())
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var n Notification
		if err := json.Unmarshal(val, &n); err != nil {
			return err
		}
		if n.RequestID != "LAY1" || n.Phone != "593991234567" {
			return errors.New("unexpected notification payload")
		}
		return nil
	})
	t.Cleanup(func() { producer.Close() })

	d := NewKafkaDispatcher(producer, "layaway.delivery_notice", "593", logging.Discard())
	if err := d.Dispatch(context.Background(), deliveredRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestKafkaDispatcherReturnsSendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mq.NewProducerConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	t.Cleanup(func() { producer.Close() })

	d := NewKafkaDispatcher(producer, "layaway.delivery_notice", "593", logging.Discard())
	err := d.Dispatch(context.Background(), deliveredRequest())
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected ErrOutOfBrokers, got %v", err)
	}
}
