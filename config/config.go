package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	OSS      OSSConfig      `mapstructure:"oss"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Pose     PoseConfig     `mapstructure:"pose"`
	Upload   UploadConfig   `mapstructure:"upload"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

type QueueConfig struct {
	AnalysisQueue string `mapstructure:"analysis_queue"`
	MaxWorkers    int    `mapstructure:"max_workers"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// PipelineConfig 分析流水线参数
type PipelineConfig struct {
	SampleFPS            int     `mapstructure:"sample_fps"`            // 采样帧率
	MinSegmentFrames     int     `mapstructure:"min_segment_frames"`    // 最短动作段帧数
	StabilityWindow      int     `mapstructure:"stability_window"`      // 稳定性滑动窗口帧数
	StabilityStride      int     `mapstructure:"stability_stride"`      // 滑动窗口步长
	TieBreakEpsilon      float64 `mapstructure:"tie_break_epsilon"`     // 分类置信度平局带宽
	HighlightPadFrames   int     `mapstructure:"highlight_pad_frames"`  // 高光片段前后留白帧数
	HighlightMaxSeconds  float64 `mapstructure:"highlight_max_seconds"` // 高光片段最大时长
	ExtractTimeoutSec    int     `mapstructure:"extract_timeout_sec"`   // 各阶段墙钟预算（秒）
	PoseTimeoutSec       int     `mapstructure:"pose_timeout_sec"`
	ClassifyTimeoutSec   int     `mapstructure:"classify_timeout_sec"`
	ScoreTimeoutSec      int     `mapstructure:"score_timeout_sec"`
	RenderTimeoutSec     int     `mapstructure:"render_timeout_sec"`
	TransientMaxAttempts int     `mapstructure:"transient_max_attempts"` // 瞬时 IO 错误最大重试次数
	FFmpegPath           string  `mapstructure:"ffmpeg_path"`
	ScratchDir           string  `mapstructure:"scratch_dir"` // 中间产物临时目录
}

// PoseConfig 姿态推理服务配置
type PoseConfig struct {
	Endpoint            string  `mapstructure:"endpoint"`             // 推理 sidecar HTTP 地址
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"` // 关节平均置信度下限
	TimeoutSec          int     `mapstructure:"timeout_sec"`
}

type UploadConfig struct {
	MaxSize           int64    `mapstructure:"max_size"`           // 最大视频大小（字节）
	ExpireHours       int      `mapstructure:"expire_hours"`       // 中间产物保留时间（小时）
	AllowedExtensions []string `mapstructure:"allowed_extensions"` // 允许的视频扩展名
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults 填充未配置的流水线参数
func (c *Config) applyDefaults() {
	p := &c.Pipeline
	if p.SampleFPS <= 0 {
		p.SampleFPS = 15
	}
	if p.MinSegmentFrames <= 0 {
		p.MinSegmentFrames = 3
	}
	if p.StabilityWindow <= 0 {
		p.StabilityWindow = 10
	}
	if p.StabilityStride <= 0 {
		p.StabilityStride = 5
	}
	if p.TieBreakEpsilon <= 0 {
		p.TieBreakEpsilon = 0.05
	}
	if p.HighlightPadFrames <= 0 {
		p.HighlightPadFrames = 5
	}
	if p.HighlightMaxSeconds <= 0 {
		p.HighlightMaxSeconds = 15
	}
	if p.ExtractTimeoutSec <= 0 {
		p.ExtractTimeoutSec = 120
	}
	if p.PoseTimeoutSec <= 0 {
		p.PoseTimeoutSec = 600
	}
	if p.ClassifyTimeoutSec <= 0 {
		p.ClassifyTimeoutSec = 120
	}
	if p.ScoreTimeoutSec <= 0 {
		p.ScoreTimeoutSec = 60
	}
	if p.RenderTimeoutSec <= 0 {
		p.RenderTimeoutSec = 600
	}
	if p.TransientMaxAttempts <= 0 {
		p.TransientMaxAttempts = 3
	}
	if p.FFmpegPath == "" {
		p.FFmpegPath = "ffmpeg"
	}
	if p.ScratchDir == "" {
		p.ScratchDir = os.TempDir()
	}
	if c.Pose.ConfidenceThreshold <= 0 {
		c.Pose.ConfidenceThreshold = 0.5
	}
	if c.Pose.TimeoutSec <= 0 {
		c.Pose.TimeoutSec = 30
	}
}
