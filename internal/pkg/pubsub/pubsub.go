package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelAnalysisProgress = "analysis_progress"
)

// ProgressMessage 进度消息
type ProgressMessage struct {
	Type     string `json:"type"`
	UserID   int64  `json:"user_id"`
	JobID    int64  `json:"job_id"`
	VideoID  int64  `json:"video_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// 各状态对应的展示消息
var StatusMessages = map[string]string{
	"queued":            "排队等待分析",
	"extracting":        "正在采样视频帧",
	"estimating_pose":   "正在识别人体姿态",
	"classifying":       "正在识别动作",
	"scoring_rendering": "正在评分并生成动画",
	"completed":         "分析完成",
	"failed":            "分析失败",
	"cancelled":         "分析已取消",
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishProgress 发布进度消息
func (p *Publisher) PublishProgress(ctx context.Context, msg *ProgressMessage) error {
	msg.Type = "job_progress"

	if msg.Message == "" {
		if m, ok := StatusMessages[msg.Status]; ok {
			msg.Message = m
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal progress message: %w", err)
	}

	return p.client.Publish(ctx, ChannelAnalysisProgress, data).Err()
}

// Notify 实现 pipeline.Notifier：完成/失败各发一次，尽力而为不重试
func (p *Publisher) Notify(ctx context.Context, userID int64, event string, payload map[string]interface{}) {
	data, err := json.Marshal(map[string]interface{}{
		"type":    event,
		"user_id": userID,
		"payload": payload,
	})
	if err != nil {
		log.Printf("notify marshal failed: %v", err)
		return
	}
	if err := p.client.Publish(ctx, ChannelAnalysisProgress, data).Err(); err != nil {
		log.Printf("notify publish failed (user %d, event %s): %v", userID, event, err)
	}
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// SubscribeProgress 订阅进度频道，返回消息通道。
// ctx 取消时通道关闭。
func (s *Subscriber) SubscribeProgress(ctx context.Context) <-chan *ProgressMessage {
	sub := s.client.Subscribe(ctx, ChannelAnalysisProgress)
	out := make(chan *ProgressMessage, 64)

	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-ch:
				if !ok {
					return
				}
				var msg ProgressMessage
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					log.Printf("drop malformed progress message: %v", err)
					continue
				}
				out <- &msg
			}
		}
	}()

	return out
}
