package job

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/bootanimation-api/internal/animation"
	"github.com/maauso/bootanimation-api/internal/bootanim"
	"github.com/maauso/bootanimation-api/internal/extract"
	"github.com/maauso/bootanimation-api/internal/media"
	"github.com/maauso/bootanimation-api/internal/progress"
	"github.com/maauso/bootanimation-api/internal/source"
	"github.com/maauso/bootanimation-api/internal/storage"
)

type MockArchiveWriter struct {
	mock.Mock
}

func (m *MockArchiveWriter) WriteArchive(ctx context.Context, cfg animation.Config, sources animation.Sources, w io.Writer, r progress.Reporter) (*bootanim.Result, error) {
	args := m.Called(ctx, cfg, sources, w, r)
	res, _ := args.Get(0).(*bootanim.Result)
	return res, args.Error(1)
}

// s3Stub publishes by reading the archive into memory.
type s3Stub struct {
	*storage.LocalStorage
	key      string
	uploaded []byte
}

func (s *s3Stub) UploadToS3(_ context.Context, key, _ string, data io.Reader) (string, error) {
	s.key = key
	b, err := io.ReadAll(data)
	s.uploaded = b
	return "https://bucket.example.com/" + key, err
}

type serviceFixture struct {
	svc    *Service
	repo   *MemoryRepository
	writer *MockArchiveWriter
	store  *storage.LocalStorage
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	store, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "work"))
	require.NoError(t, err)

	repo := NewMemoryRepository()
	writer := &MockArchiveWriter{}
	return &serviceFixture{
		svc:    NewService(repo, writer, store, nil),
		repo:   repo,
		writer: writer,
		store:  store,
	}
}

func (f *serviceFixture) saveInput(t *testing.T, name string) string {
	t.Helper()
	path, err := f.store.SaveTemp(context.Background(), name, bytes.NewReader([]byte("media")))
	require.NoError(t, err)
	return path
}

func (f *serviceFixture) tempFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.store.TempDir())
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func testRequest(inputs ...string) Request {
	cfg := animation.DefaultConfig()
	return Request{
		Config:  cfg,
		Sources: animation.Standard{Loop: []source.File{{Name: "loop.mp4", Kind: source.KindVideo}}},
		Inputs:  inputs,
	}
}

func writeArchive(data string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		w := args.Get(3).(io.Writer)
		r := args.Get(4).(progress.Reporter)
		r.Report(50, "Extracting frame 1/2")
		_, _ = w.Write([]byte(data))
	}
}

func testResult(cfg animation.Config, frames int) *bootanim.Result {
	return &bootanim.Result{
		Package:  animation.Assemble(cfg, make([]media.Frame, frames)),
		Bytes:    9,
		Duration: time.Second,
	}
}

func TestService_Run_Completes(t *testing.T) {
	f := newServiceFixture(t)
	input := f.saveInput(t, "loop.mp4")
	req := testRequest(input)

	f.writer.On("WriteArchive", mock.Anything, req.Config, req.Sources, mock.Anything, mock.Anything).
		Run(writeArchive("zip-bytes")).
		Return(testResult(req.Config, 2), nil)

	job, err := f.svc.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 100.0, job.Progress)
	assert.Equal(t, "Extracting frame 1/2", job.Message)
	assert.Equal(t, []int{2}, job.PartFrames)
	assert.Equal(t, int64(9), job.ArchiveSize)

	content, err := os.ReadFile(job.ArchivePath)
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(content))

	_, err = os.Stat(input)
	assert.True(t, os.IsNotExist(err), "input should be removed")

	stored, err := f.svc.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
	f.writer.AssertExpectations(t)
}

func TestService_Run_FailureLeavesNoFiles(t *testing.T) {
	f := newServiceFixture(t)
	req := testRequest(f.saveInput(t, "1.png"), f.saveInput(t, "3.png"))

	decodeErr := &extract.FrameDecodeError{Name: "3.png", Err: errors.New("bad data")}
	f.writer.On("WriteArchive", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(writeArchive("partial")).
		Return(nil, decodeErr)

	job, err := f.svc.Run(context.Background(), req)
	require.ErrorIs(t, err, extract.ErrFrameDecode)

	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "Failed to process image 3.png", job.Error)
	assert.Empty(t, job.ArchivePath)
	assert.Empty(t, f.tempFiles(t))
}

func TestService_Run_PushToS3(t *testing.T) {
	f := newServiceFixture(t)
	stub := &s3Stub{LocalStorage: f.store}
	f.svc = NewService(f.repo, f.writer, stub, nil)

	req := testRequest()
	req.PushToS3 = true
	f.writer.On("WriteArchive", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(writeArchive("zip-bytes")).
		Return(testResult(req.Config, 1), nil)

	job, err := f.svc.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, "bootanimations/"+job.ID+"/bootanimation.zip", stub.key)
	assert.Equal(t, "zip-bytes", string(stub.uploaded))
	assert.Equal(t, "https://bucket.example.com/"+stub.key, job.ArchiveURL)
}

func TestService_Run_PushToS3NotConfigured(t *testing.T) {
	f := newServiceFixture(t)
	req := testRequest()
	req.PushToS3 = true
	f.writer.On("WriteArchive", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(writeArchive("zip-bytes")).
		Return(testResult(req.Config, 1), nil)

	job, err := f.svc.Run(context.Background(), req)
	require.ErrorIs(t, err, storage.ErrS3NotConfigured)

	assert.Equal(t, StatusFailed, job.Status)
	assert.Contains(t, job.Error, "S3 storage is not configured")
	assert.Empty(t, f.tempFiles(t))
}

// blockUntilCancelled makes WriteArchive wait for its context.
func blockUntilCancelled(started chan<- struct{}) func(mock.Arguments) {
	return func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		close(started)
		<-ctx.Done()
	}
}

func TestService_Start_GateAndCancel(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	started := make(chan struct{})
	f.writer.On("WriteArchive", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(blockUntilCancelled(started)).
		Return(nil, context.Canceled).Once()

	job, err := f.svc.Start(ctx, testRequest(f.saveInput(t, "loop.mp4")))
	require.NoError(t, err)
	assert.Equal(t, StatusInQueue, job.Status)
	<-started

	assert.True(t, f.svc.Busy())

	rejected := f.saveInput(t, "other.mp4")
	_, err = f.svc.Run(ctx, testRequest(rejected))
	require.ErrorIs(t, err, ErrGenerationInProgress)
	_, statErr := os.Stat(rejected)
	assert.True(t, os.IsNotExist(statErr), "rejected input should be removed")

	_, err = f.svc.Start(ctx, testRequest())
	require.ErrorIs(t, err, ErrGenerationInProgress)

	require.ErrorIs(t, f.svc.Delete(ctx, job.ID), ErrJobActive)
	require.NoError(t, f.svc.Cancel(ctx, job.ID))

	require.Eventually(t, func() bool {
		j, err := f.svc.GetJob(ctx, job.ID)
		return err == nil && j.Status == StatusCancelled
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.svc.Shutdown(ctx))
	assert.False(t, f.svc.Busy())
	assert.Empty(t, f.tempFiles(t))
	require.ErrorIs(t, f.svc.Cancel(ctx, job.ID), ErrNotRunning)
}

func TestService_Cancel_NotFound(t *testing.T) {
	f := newServiceFixture(t)
	require.ErrorIs(t, f.svc.Cancel(context.Background(), "anim-missing"), ErrJobNotFound)
}

func TestService_Shutdown_CancelsRuns(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	started := make(chan struct{})
	f.writer.On("WriteArchive", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(blockUntilCancelled(started)).
		Return(nil, context.Canceled)

	job, err := f.svc.Start(ctx, testRequest())
	require.NoError(t, err)
	<-started

	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Shutdown(shutdownCtx))

	stored, err := f.svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.Status)
}

func TestService_ArchiveAndDelete(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	req := testRequest()

	f.writer.On("WriteArchive", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(writeArchive("zip-bytes")).
		Return(testResult(req.Config, 1), nil)

	job, err := f.svc.Run(ctx, req)
	require.NoError(t, err)

	rc, got, err := f.svc.OpenArchive(ctx, job.ID)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "zip-bytes", string(data))
	assert.Equal(t, job.ID, got.ID)

	require.NoError(t, f.svc.Delete(ctx, job.ID))
	_, err = os.Stat(job.ArchivePath)
	assert.True(t, os.IsNotExist(err))

	_, err = f.svc.GetJob(ctx, job.ID)
	require.ErrorIs(t, err, ErrJobNotFound)
	_, _, err = f.svc.OpenArchive(ctx, job.ID)
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestService_OpenArchive_Unavailable(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	failed := New(animation.DefaultConfig())
	_ = failed.Fail("boom")
	require.NoError(t, f.repo.Save(ctx, failed))

	_, job, err := f.svc.OpenArchive(ctx, failed.ID)
	require.ErrorIs(t, err, ErrArchiveUnavailable)
	assert.Equal(t, StatusFailed, job.Status)
}

func TestService_ListJobs(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	require.NoError(t, f.repo.Save(ctx, New(animation.DefaultConfig())))
	require.NoError(t, f.repo.Save(ctx, New(animation.DefaultConfig())))

	jobs, err := f.svc.ListJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}
