package queue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// 取消标志的保留时间，远长于任何任务的生命周期
const cancelFlagTTL = 24 * time.Hour

// CancelFlags 协作式取消标志。API 进程置位，worker 在阶段边界读取。
// 标志放 Redis，两类进程共享可见。
type CancelFlags struct {
	client *redis.Client
}

func NewCancelFlags(client *redis.Client) *CancelFlags {
	return &CancelFlags{client: client}
}

func cancelKey(jobID int64) string {
	return fmt.Sprintf("job_cancel:%d", jobID)
}

// Request 置位取消标志
func (c *CancelFlags) Request(ctx context.Context, jobID int64) error {
	return c.client.Set(ctx, cancelKey(jobID), 1, cancelFlagTTL).Err()
}

// Cancelled 实现 pipeline.CancelChecker。
// 读失败按未取消处理：宁可多跑一个阶段，不能让任务卡死。
func (c *CancelFlags) Cancelled(ctx context.Context, jobID int64) bool {
	n, err := c.client.Exists(ctx, cancelKey(jobID)).Result()
	if err != nil {
		log.Printf("cancel flag check failed for job %d: %v", jobID, err)
		return false
	}
	return n > 0
}
