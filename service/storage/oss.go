package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"math-tutor-backend/config"

	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss"
	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss/credentials"
)

const defaultPresignExpires = time.Hour

var ErrEmptyObjectName = errors.New("object name is empty")

// Presigner 生成预签名请求，由 *oss.Client 实现
type Presigner interface {
	Presign(ctx context.Context, request any, optFns ...func(*oss.PresignOptions)) (*oss.PresignResult, error)
}

// ExerciseDocuments 练习文档存放在 OSS 上，通过预签名链接提供下载
type ExerciseDocuments struct {
	client  Presigner
	bucket  string
	expires time.Duration
}

func NewExerciseDocuments(cfg config.OSSConfig) *ExerciseDocuments {
	client := oss.NewClient(&oss.Config{
		Region: oss.Ptr(cfg.Region),
		CredentialsProvider: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.AccessKeySecret,
		),
	})
	return NewExerciseDocumentsWithClient(client, cfg.BucketName, cfg.PresignExpires)
}

func NewExerciseDocumentsWithClient(client Presigner, bucket string, expires time.Duration) *ExerciseDocuments {
	if expires <= 0 {
		expires = defaultPresignExpires
	}
	return &ExerciseDocuments{
		client:  client,
		bucket:  bucket,
		expires: expires,
	}
}

// PresignedURL 生成练习文档的临时下载链接
func (d *ExerciseDocuments) PresignedURL(ctx context.Context, objectName string) (string, error) {
	if objectName == "" {
		return "", ErrEmptyObjectName
	}

	result, err := d.client.Presign(ctx, &oss.GetObjectRequest{
		Bucket: oss.Ptr(d.bucket),
		Key:    oss.Ptr(objectName),
	}, oss.PresignExpires(d.expires))
	if err != nil {
		return "", fmt.Errorf("failed to presign object %s: %w", objectName, err)
	}
	return result.URL, nil
}
