package mq

import (
	"fmt"

	"layaway/internal/config"

	"github.com/IBM/sarama"
)

// NewProducerConfig 交付通知是 at-most-once，生产者不做重试
func NewProducerConfig() *sarama.Config {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	kafkaConfig.Producer.Retry.Max = 0
	kafkaConfig.Producer.Return.Successes = true
	return kafkaConfig
}

// InitKafka 创建 Kafka 同步生产者
func InitKafka(cfg *config.KafkaConfig) (sarama.SyncProducer, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("创建 Kafka 生产者失败: %w", err)
	}
	return producer, nil
}

// SendMessage 发送消息到 Kafka
func SendMessage(producer sarama.SyncProducer, topic, key string, value []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}

	_, _, err := producer.SendMessage(msg)
	return err
}
