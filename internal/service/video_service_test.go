package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/reride/reride_go_server/config"
	"github.com/reride/reride_go_server/internal/repository"
	"github.com/reride/reride_go_server/internal/testutil"
)

func setupVideoService(t *testing.T) (*VideoService, *fakeStorage, *gorm.DB) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	storage := newFakeStorage()
	cfg := &config.Config{}
	cfg.Upload.MaxSize = 10 << 20

	svc := NewVideoService(repository.NewVideoRepository(db), storage, cfg)
	return svc, storage, db
}

func TestVideoService_Upload(t *testing.T) {
	svc, storage, _ := setupVideoService(t)

	resp, err := svc.Upload(context.Background(), 1, "my_run.mp4", []byte("video bytes"))
	require.NoError(t, err)

	assert.NotZero(t, resp.ID)
	assert.Equal(t, "my_run.mp4", resp.OriginalFilename)
	assert.Equal(t, int64(len("video bytes")), resp.SizeBytes)

	// 对象键在 videos/ 命名空间下且保留扩展名
	require.Len(t, storage.objects, 1)
	for key := range storage.objects {
		assert.True(t, strings.HasPrefix(key, "videos/"))
		assert.True(t, strings.HasSuffix(key, ".mp4"))
	}
}

func TestVideoService_Upload_Validation(t *testing.T) {
	svc, _, _ := setupVideoService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, 1, "empty.mp4", nil)
	assert.ErrorIs(t, err, ErrVideoEmptyUpload)

	_, err = svc.Upload(ctx, 1, "notes.txt", []byte("hello"))
	assert.ErrorIs(t, err, ErrVideoBadFormat)

	big := make([]byte, 10<<20+1)
	_, err = svc.Upload(ctx, 1, "huge.mp4", big)
	assert.ErrorIs(t, err, ErrVideoTooLarge)
}

func TestVideoService_Upload_ExtensionCaseInsensitive(t *testing.T) {
	svc, _, _ := setupVideoService(t)

	_, err := svc.Upload(context.Background(), 1, "RUN.MP4", []byte("video bytes"))
	assert.NoError(t, err)
}

func TestVideoService_GetVideo(t *testing.T) {
	svc, _, db := setupVideoService(t)

	video := testutil.TestVideo(t, db, 1)

	got, err := svc.GetVideo(1, video.ID)
	require.NoError(t, err)
	assert.Equal(t, video.OriginalFilename, got.OriginalFilename)

	_, err = svc.GetVideo(2, video.ID)
	assert.ErrorIs(t, err, ErrVideoNotFound)
}

func TestVideoService_ListVideos(t *testing.T) {
	svc, _, db := setupVideoService(t)

	for i := 0; i < 4; i++ {
		testutil.TestVideo(t, db, 1)
	}

	resp, err := svc.ListVideos(1, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), resp.Total)
	assert.Len(t, resp.Videos, 3)

	resp, err = svc.ListVideos(1, 2, 3)
	require.NoError(t, err)
	assert.Len(t, resp.Videos, 1)
}
