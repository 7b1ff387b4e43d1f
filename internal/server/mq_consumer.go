package server

import (
	"context"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/rabbitpom/rapidl-backend/internal/biz"
	"github.com/rabbitpom/rapidl-backend/internal/conf"
)

// MQConsumerServer 从 RocketMQ 消费生成任务
type MQConsumerServer struct {
	c       rocketmq.PushConsumer
	worker  *biz.WorkerUseCase
	conf    *conf.Data
	log     *log.Helper
	enabled bool
}

// NewMQConsumerServer 创建 RocketMQ 消费者
func NewMQConsumerServer(c *conf.Bootstrap, worker *biz.WorkerUseCase, logger log.Logger) *MQConsumerServer {
	if c.Data == nil || c.Data.Rocketmq == nil || !c.Data.Rocketmq.Enabled {
		return &MQConsumerServer{enabled: false, log: log.NewHelper(logger)}
	}

	r, err := rocketmq.NewPushConsumer(
		consumer.WithNsResolver(primitive.NewPassthroughResolver(c.Data.Rocketmq.NameServers)),
		consumer.WithGroupName(c.Data.Rocketmq.GroupName),
		consumer.WithRetry(int(c.Data.Rocketmq.RetryTimes)),
		// 生成耗时且有状态机兜底，一次一条
		consumer.WithConsumeMessageBatchMaxSize(1),
	)
	if err != nil {
		log.NewHelper(logger).Errorf("init consumer error: %v", err)
		return &MQConsumerServer{enabled: false, log: log.NewHelper(logger)}
	}

	return &MQConsumerServer{
		c:       r,
		worker:  worker,
		conf:    c.Data,
		log:     log.NewHelper(logger),
		enabled: true,
	}
}

// Start 启动消费者
func (s *MQConsumerServer) Start(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		s.log.Infof("MQConsumerServer is disabled, skipping startup")
		return nil
	}

	s.log.Infof("Starting MQConsumerServer, topic: %s", s.conf.Rocketmq.Topic)

	if err := s.c.Subscribe(s.conf.Rocketmq.Topic, consumer.MessageSelector{}, s.handler); err != nil {
		s.log.Errorf("Failed to subscribe to topic %s: %v", s.conf.Rocketmq.Topic, err)
		return err
	}
	if err := s.c.Start(); err != nil {
		s.log.Errorf("Failed to start RocketMQ consumer: %v", err)
		return err
	}
	return nil
}

// Stop 停止消费者
func (s *MQConsumerServer) Stop(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		return nil
	}
	s.log.Info("Stopping MQConsumerServer")
	return s.c.Shutdown()
}

func (s *MQConsumerServer) handler(ctx context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
	for _, msg := range msgs {
		if s.worker.Process(ctx, msg.Body) == biz.ProcessRetry {
			return consumer.ConsumeRetryLater, nil
		}
	}
	return consumer.ConsumeSuccess, nil
}
