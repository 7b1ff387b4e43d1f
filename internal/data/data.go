package data

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	redsyncredis "github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"github.com/google/wire"
	"google.golang.org/api/option"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/rabbitpom/rapidl-backend/internal/conf"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewDB,
	NewRedis,
	NewRedsync,
	NewMQProducer,
	NewStorageClient,
	NewData,
	NewCreditRepo,
	NewJobRepo,
	NewArtifactStore,
	NewJobQueue,
)

// Data 数据层结构体
type Data struct {
	db  *gorm.DB
	rdb *redis.Client
	rs  *redsync.Redsync
	mq  rocketmq.Producer
	gcs *storage.Client
}

// NewDB 创建数据库连接
func NewDB(c *conf.Bootstrap) (*gorm.DB, error) {
	if c.Data == nil || c.Data.Database == nil {
		return nil, fmt.Errorf("database config is nil")
	}
	db, err := gorm.Open(postgres.Open(c.Data.Database.Source), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// NewRedis 创建 Redis 连接
func NewRedis(c *conf.Bootstrap) (*redis.Client, error) {
	if c.Data == nil || c.Data.Redis == nil {
		return nil, fmt.Errorf("redis config is nil")
	}

	readTimeout := conf.ParseDuration(c.Data.Redis.ReadTimeout, 3*time.Second)
	writeTimeout := conf.ParseDuration(c.Data.Redis.WriteTimeout, 3*time.Second)

	rdb := redis.NewClient(&redis.Options{
		Addr:         c.Data.Redis.Addr,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	// 测试连接
	if err := rdb.Ping(rdb.Context()).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}

// NewRedsync 创建分布式锁工厂
func NewRedsync(rdb *redis.Client) *redsync.Redsync {
	return redsync.New(redsyncredis.NewPool(rdb))
}

// NewMQProducer 创建 RocketMQ 生产者。未启用时返回 nil，
// 发布路径自行降级为投递失败。
func NewMQProducer(c *conf.Bootstrap, logger log.Logger) (rocketmq.Producer, func(), error) {
	noop := func() {}
	if c.Data == nil || c.Data.Rocketmq == nil || !c.Data.Rocketmq.Enabled {
		log.NewHelper(logger).Info("rocketmq producer is disabled")
		return nil, noop, nil
	}

	p, err := rocketmq.NewProducer(
		producer.WithNsResolver(primitive.NewPassthroughResolver(c.Data.Rocketmq.NameServers)),
		producer.WithGroupName(c.Data.Rocketmq.GroupName),
		producer.WithRetry(int(c.Data.Rocketmq.RetryTimes)),
	)
	if err != nil {
		return nil, nil, err
	}
	if err := p.Start(); err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := p.Shutdown(); err != nil {
			log.NewHelper(logger).Errorf("failed to shutdown rocketmq producer: %v", err)
		}
	}
	return p, cleanup, nil
}

// NewStorageClient 创建对象存储客户端
func NewStorageClient(c *conf.Bootstrap, logger log.Logger) (*storage.Client, func(), error) {
	var opts []option.ClientOption
	if c.Data != nil && c.Data.Storage != nil && c.Data.Storage.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(c.Data.Storage.CredentialsFile))
	}
	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			log.NewHelper(logger).Errorf("failed to close storage client: %v", err)
		}
	}
	return client, cleanup, nil
}

// NewData 创建数据层实例
func NewData(c *conf.Bootstrap, logger log.Logger, db *gorm.DB, rdb *redis.Client, rs *redsync.Redsync, mq rocketmq.Producer, gcs *storage.Client) (*Data, func(), error) {
	cleanup := func() {
		log.NewHelper(logger).Info("closing the data resources")
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
		if err := rdb.Close(); err != nil {
			log.NewHelper(logger).Errorf("failed to close redis: %v", err)
		}
	}

	return &Data{
		db:  db,
		rdb: rdb,
		rs:  rs,
		mq:  mq,
		gcs: gcs,
	}, cleanup, nil
}
