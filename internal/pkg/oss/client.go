package oss

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/reride/reride_go_server/config"
)

// Client OSS 存储客户端，实现 pipeline.Storage。
// key 即 ref：对象键自身就是产物引用，签名 URL 按需换取。
type Client struct {
	client     *oss.Client
	bucket     *oss.Bucket
	bucketName string
	cdnDomain  string
}

func NewClient(cfg *config.OSSConfig) (*Client, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &Client{
		client:     client,
		bucket:     bucket,
		bucketName: cfg.BucketName,
		cdnDomain:  cfg.CDNDomain,
	}, nil
}

// Put 上传对象，返回对象键作为引用
func (c *Client) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	err := c.bucket.PutObject(key, bytes.NewReader(data), oss.ContentType(contentType))
	if err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return key, nil
}

// Get 按引用取回对象内容
func (c *Client) Get(_ context.Context, ref string) ([]byte, error) {
	body, err := c.bucket.GetObject(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", ref, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", ref, err)
	}
	return data, nil
}

// Presign 生成带签名的临时访问 URL
func (c *Client) Presign(ref string, expireSeconds int64) (string, error) {
	if expireSeconds <= 0 {
		expireSeconds = 3600 // 默认1小时
	}

	signedURL, err := c.bucket.SignURL(ref, oss.HTTPGet, expireSeconds)
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return signedURL, nil
}

// Delete 删除单个对象
func (c *Client) Delete(_ context.Context, ref string) error {
	if err := c.bucket.DeleteObject(ref); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", ref, err)
	}
	return nil
}

// DeletePrefix 删除前缀下的所有对象，任务失败/取消时清理产物用
func (c *Client) DeletePrefix(_ context.Context, prefix string) error {
	marker := ""
	for {
		list, err := c.bucket.ListObjects(oss.Prefix(prefix), oss.Marker(marker))
		if err != nil {
			return fmt.Errorf("failed to list prefix %s: %w", prefix, err)
		}
		if len(list.Objects) == 0 {
			return nil
		}

		keys := make([]string, 0, len(list.Objects))
		for _, obj := range list.Objects {
			keys = append(keys, obj.Key)
		}
		if _, err := c.bucket.DeleteObjects(keys); err != nil {
			return fmt.Errorf("failed to delete prefix %s: %w", prefix, err)
		}

		if !list.IsTruncated {
			return nil
		}
		marker = list.NextMarker
	}
}

// GetURL 拼接公开访问 URL（配置了 CDN 时走 CDN 域名）
func (c *Client) GetURL(key string) string {
	if c.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", c.cdnDomain, key)
	}
	return fmt.Sprintf("https://%s.%s/%s", c.bucketName, c.client.Config.Endpoint, key)
}
