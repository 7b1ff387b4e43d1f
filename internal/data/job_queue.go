package data

import (
	"context"
	"encoding/json"

	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/rabbitpom/rapidl-backend/internal/biz"
	"github.com/rabbitpom/rapidl-backend/internal/conf"
	appErrors "github.com/rabbitpom/rapidl-backend/internal/errors"
)

// jobQueue RocketMQ 任务投递
type jobQueue struct {
	data        *Data
	topic       string
	notifyTopic string
	log         *log.Helper
}

// NewJobQueue 创建任务队列（返回 biz.JobQueue 接口）
func NewJobQueue(data *Data, c *conf.Bootstrap, logger log.Logger) biz.JobQueue {
	topic, notifyTopic := "", ""
	if c.Data != nil && c.Data.Rocketmq != nil {
		topic = c.Data.Rocketmq.Topic
		notifyTopic = c.Data.Rocketmq.NotifyTopic
	}
	return &jobQueue{
		data:        data,
		topic:       topic,
		notifyTopic: notifyTopic,
		log:         log.NewHelper(logger),
	}
}

// PublishJob 同步投递生成消息。投递失败由调用方做额度补偿，
// 这里只负责把错误归类为 QUEUE_PUBLISH_FAILED。
func (q *jobQueue) PublishJob(ctx context.Context, msg *biz.JobMessage) error {
	if q.data.mq == nil {
		return appErrors.ErrQueuePublishFailed("message queue is disabled")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return appErrors.ErrQueuePublishFailed("marshal job message: %v", err)
	}
	if _, err := q.data.mq.SendSync(ctx, primitive.NewMessage(q.topic, body)); err != nil {
		q.log.Errorf("Send RocketMQ failed: jobID=%s, error=%v", msg.JobID, err)
		return appErrors.ErrQueuePublishFailed("publish job message: %v", err)
	}
	return nil
}

// PublishNotify 投递终态通知，调用方按尽力而为处理
func (q *jobQueue) PublishNotify(ctx context.Context, msg *biz.JobNotification) error {
	if q.data.mq == nil || q.notifyTopic == "" {
		return nil
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return appErrors.ErrQueuePublishFailed("marshal notification: %v", err)
	}
	if _, err := q.data.mq.SendSync(ctx, primitive.NewMessage(q.notifyTopic, body)); err != nil {
		return appErrors.ErrQueuePublishFailed("publish notification: %v", err)
	}
	return nil
}
