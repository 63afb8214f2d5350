package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/reride/reride_go_server/config"
	"github.com/reride/reride_go_server/internal/model"
	"github.com/reride/reride_go_server/internal/pipeline"
	"github.com/reride/reride_go_server/internal/pkg/oss"
)

var (
	dryRun        = flag.Bool("dry-run", true, "Dry run mode, don't actually delete anything")
	scratchExpire = flag.Int("scratch-expire", 24, "Hours to keep render scratch directories")
	poseExpire    = flag.Int("pose-expire", 7, "Days to keep pose series of terminal jobs")
	stuckExpire   = flag.Int("stuck-expire", 24, "Hours after which a non-terminal job is considered stuck")
	cleanScratch  = flag.Bool("clean-scratch", true, "Clean expired render scratch directories")
	cleanPoses    = flag.Bool("clean-poses", true, "Clean pose series of long-terminal jobs")
	sweepStuck    = flag.Bool("sweep-stuck", true, "Mark stuck jobs as failed")
)

var terminalStatuses = []string{
	model.JobStatusCompleted,
	model.JobStatusFailed,
	model.JobStatusCancelled,
}

func main() {
	flag.Parse()

	log.Println("Starting cleanup task...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 连接数据库
	db, err := connectDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	deletedDirs := 0
	deletedPoses := 0
	sweptJobs := 0

	// 1. 清理过期的渲染临时目录
	if *cleanScratch {
		log.Printf("Cleaning render scratch dirs (older than %d hours)...", *scratchExpire)
		deletedDirs = cleanScratchDirs(cfg.Pipeline.ScratchDir, *scratchExpire, *dryRun)
	}

	// 2. 回收终态已久任务的姿态序列
	if *cleanPoses {
		log.Printf("Cleaning pose series of jobs terminal for over %d days...", *poseExpire)
		deletedPoses = cleanPoseSeries(db, cfg, *poseExpire, *dryRun)
	}

	// 3. 卡死任务兜底落终态
	if *sweepStuck {
		log.Printf("Sweeping jobs non-terminal for over %d hours...", *stuckExpire)
		sweptJobs = sweepStuckJobs(db, *stuckExpire, *dryRun)
	}

	// 输出统计
	log.Println(strings.Repeat("=", 60))
	log.Println("Cleanup Summary")
	log.Println(strings.Repeat("=", 60))
	log.Printf("Scratch dirs removed: %d", deletedDirs)
	log.Printf("Pose series removed:  %d", deletedPoses)
	log.Printf("Stuck jobs swept:     %d", sweptJobs)
	if *dryRun {
		log.Println("DRY RUN MODE - nothing was actually deleted")
		log.Println("Run with -dry-run=false to apply")
	} else {
		log.Println("Cleanup completed")
	}
	log.Println(strings.Repeat("=", 60))
}

// cleanScratchDirs 清理渲染器遗留的 render-* 临时目录
func cleanScratchDirs(scratchDir string, expireHours int, dryRun bool) int {
	expireTime := time.Now().Add(-time.Duration(expireHours) * time.Hour)
	count := 0

	entries, err := os.ReadDir(scratchDir)
	if err != nil {
		log.Printf("Failed to read scratch dir %s: %v", scratchDir, err)
		return 0
	}

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "render-") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(expireTime) {
			dirPath := filepath.Join(scratchDir, entry.Name())
			log.Printf("  - %s (%s old)", entry.Name(), time.Since(info.ModTime()).Round(time.Hour))

			if !dryRun {
				if err := os.RemoveAll(dirPath); err != nil {
					log.Printf("    failed to delete: %v", err)
					continue
				}
			}
			count++
		}
	}

	log.Printf("Found %d expired scratch directories", count)
	return count
}

// cleanPoseSeries 删除终态超过 keepDays 的任务的 poses.json。
// 动画与高光属于结果本体，不在回收范围内。
func cleanPoseSeries(db *gorm.DB, cfg *config.Config, keepDays int, dryRun bool) int {
	ossClient, err := oss.NewClient(&cfg.OSS)
	if err != nil {
		log.Printf("Failed to init OSS client: %v", err)
		return 0
	}

	before := time.Now().Add(-time.Duration(keepDays) * 24 * time.Hour)
	var jobs []model.VideoJob
	err = db.Where("status IN ? AND completed_at < ?", terminalStatuses, before).
		Find(&jobs).Error
	if err != nil {
		log.Printf("Failed to query terminal jobs: %v", err)
		return 0
	}

	log.Printf("Found %d jobs terminal before %s", len(jobs), before.Format(time.RFC3339))

	ctx := context.Background()
	count := 0
	for _, job := range jobs {
		ref := pipeline.ArtifactPrefix(job.ID) + "poses.json"
		log.Printf("  - job %d: %s", job.ID, ref)

		if !dryRun {
			if err := ossClient.Delete(ctx, ref); err != nil {
				continue
			}
		}
		count++
	}

	log.Printf("Found %d pose series to clean", count)
	return count
}

// sweepStuckJobs 把超过期限仍未到终态的任务落失败
func sweepStuckJobs(db *gorm.DB, expireHours int, dryRun bool) int {
	before := time.Now().Add(-time.Duration(expireHours) * time.Hour)
	var jobs []model.VideoJob
	err := db.Where("status NOT IN ? AND created_at < ?", terminalStatuses, before).
		Find(&jobs).Error
	if err != nil {
		log.Printf("Failed to query stuck jobs: %v", err)
		return 0
	}

	count := 0
	for _, job := range jobs {
		log.Printf("  - job %d: status=%s, created %s", job.ID, job.Status, job.CreatedAt.Format(time.RFC3339))

		if !dryRun {
			now := time.Now()
			err := db.Model(&model.VideoJob{}).
				Where("id = ? AND status NOT IN ?", job.ID, terminalStatuses).
				Updates(map[string]interface{}{
					"status":        model.JobStatusFailed,
					"error_message": string(pipeline.KindTimeout) + ": 任务超时未完成",
					"completed_at":  &now,
				}).Error
			if err != nil {
				log.Printf("    failed to sweep: %v", err)
				continue
			}
		}
		count++
	}

	log.Printf("Found %d stuck jobs", count)
	return count
}

// connectDB 连接数据库
func connectDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return db, nil
}
