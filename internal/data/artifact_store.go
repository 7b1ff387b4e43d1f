package data

import (
	"bytes"
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/rabbitpom/rapidl-backend/internal/biz"
	"github.com/rabbitpom/rapidl-backend/internal/conf"
	"github.com/rabbitpom/rapidl-backend/internal/constants"
	appErrors "github.com/rabbitpom/rapidl-backend/internal/errors"
)

// artifactStore 生成产物对象存储访问
type artifactStore struct {
	data   *Data
	bucket string
	log    *log.Helper
}

// NewArtifactStore 创建产物存储（返回 biz.ArtifactStore 接口）
func NewArtifactStore(data *Data, c *conf.Bootstrap, logger log.Logger) biz.ArtifactStore {
	bucket := ""
	if c.Data != nil && c.Data.Storage != nil {
		bucket = c.Data.Storage.Bucket
	}
	return &artifactStore{
		data:   data,
		bucket: bucket,
		log:    log.NewHelper(logger),
	}
}

func artifactObjectName(jobID string) string {
	return jobID + constants.ArtifactSuffix
}

// Put 上传压缩后的产物，对象带 gzip 编码标记
func (s *artifactStore) Put(ctx context.Context, jobID string, compressed []byte) error {
	obj := s.data.gcs.Bucket(s.bucket).Object(artifactObjectName(jobID))
	writer := obj.NewWriter(ctx)
	writer.ContentType = constants.ArtifactContentType
	writer.ContentEncoding = constants.ArtifactContentEncoding
	if _, err := io.Copy(writer, bytes.NewReader(compressed)); err != nil {
		writer.Close()
		s.log.Errorf("upload artifact failed: jobID=%s, error=%v", jobID, err)
		return appErrors.ErrArtifactUnavailable("upload artifact: %v", err)
	}
	if err := writer.Close(); err != nil {
		s.log.Errorf("finish artifact upload failed: jobID=%s, error=%v", jobID, err)
		return appErrors.ErrArtifactUnavailable("finish artifact upload: %v", err)
	}
	return nil
}

// Get 下载产物（保持 gzip 压缩形态）
func (s *artifactStore) Get(ctx context.Context, jobID string) ([]byte, error) {
	// ReadCompressed 保留 gzip 形态，客户端自行解压
	obj := s.data.gcs.Bucket(s.bucket).Object(artifactObjectName(jobID)).ReadCompressed(true)
	reader, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, appErrors.ErrJobCorrupt("artifact for job %s is missing", jobID)
		}
		return nil, appErrors.ErrArtifactUnavailable("open artifact: %v", err)
	}
	defer reader.Close()
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, appErrors.ErrArtifactUnavailable("read artifact: %v", err)
	}
	return raw, nil
}

// Delete 删除产物，不存在视为已删除
func (s *artifactStore) Delete(ctx context.Context, jobID string) error {
	obj := s.data.gcs.Bucket(s.bucket).Object(artifactObjectName(jobID))
	if err := obj.Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		s.log.Errorf("delete artifact failed: jobID=%s, error=%v", jobID, err)
		return appErrors.ErrArtifactUnavailable("delete artifact: %v", err)
	}
	return nil
}
