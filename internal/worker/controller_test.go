package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"spool/internal/config"
	"spool/internal/controlplane"
	"spool/internal/logging"
	"spool/internal/media/ffprobe"
	"spool/internal/subtitles"
	"spool/internal/transcode"
)

type fakeAPI struct {
	mu        sync.Mutex
	claims    []*controlplane.Job
	claimErrs []error
	stages    []string
	completed map[string]controlplane.CompletionReport
	failed    map[string]string
	onDrained func()
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		completed: make(map[string]controlplane.CompletionReport),
		failed:    make(map[string]string),
	}
}

func (a *fakeAPI) Claim(_ context.Context) (*controlplane.Job, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.claimErrs) > 0 {
		err := a.claimErrs[0]
		a.claimErrs = a.claimErrs[1:]
		return nil, err
	}
	if len(a.claims) == 0 {
		if a.onDrained != nil {
			a.onDrained()
		}
		return nil, nil
	}
	job := a.claims[0]
	a.claims = a.claims[1:]
	return job, nil
}

func (a *fakeAPI) Progress(_ context.Context, _, stage, _ string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stages = append(a.stages, stage)
}

func (a *fakeAPI) Complete(_ context.Context, jobID string, report controlplane.CompletionReport) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.completed[jobID] = report
	return nil
}

func (a *fakeAPI) Fail(_ context.Context, jobID, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failed[jobID] = message
	return nil
}

type fakeSource struct {
	bucket string
	key    string
	err    error
}

func (s *fakeSource) Download(_ context.Context, bucket, key, destPath string) error {
	s.bucket = bucket
	s.key = key
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(destPath, []byte("media"), 0o644)
}

type fakeUploader struct {
	dir        string
	prefix     string
	masterText string
	err        error
}

func (u *fakeUploader) UploadDir(_ context.Context, localDir, keyPrefix string) (int, error) {
	u.dir = localDir
	u.prefix = keyPrefix
	if data, err := os.ReadFile(filepath.Join(localDir, "master.m3u8")); err == nil {
		u.masterText = string(data)
	}
	if u.err != nil {
		return 0, u.err
	}
	return 1, nil
}

type fakeTranscoder struct {
	plan   *transcode.Plan
	called bool
	err    error
}

func (f *fakeTranscoder) Transcode(_ context.Context, plan transcode.Plan) error {
	f.called = true
	f.plan = &plan
	return f.err
}

type fakeSubtitleService struct {
	manual    []subtitles.PreparedTrack
	auto      []subtitles.PreparedTrack
	manualErr error
	autoErr   error
}

func (f *fakeSubtitleService) PrepareManual(_ context.Context, _ string, _ []subtitles.Track) ([]subtitles.PreparedTrack, error) {
	return f.manual, f.manualErr
}

func (f *fakeSubtitleService) GenerateAuto(_ context.Context, _, _ string, _ bool) ([]subtitles.PreparedTrack, error) {
	return f.auto, f.autoErr
}

func stubProbe(t *testing.T, result ffprobe.Result, err error) {
	t.Helper()
	original := inspectSource
	inspectSource = func(_ context.Context, _, _ string) (ffprobe.Result, error) {
		return result, err
	}
	t.Cleanup(func() { inspectSource = original })
}

func probe720p() ffprobe.Result {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{
			{CodecType: "video", Width: 1280, Height: 720, RFrameRate: "30/1"},
			{CodecType: "audio", Channels: 2},
		},
		Format: ffprobe.Format{Duration: "120.5"},
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.WorkDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Storage.RawBucket = "raw"
	cfg.Storage.OutputBucket = "output"
	cfg.Upload.CDNBaseURL = "https://cdn.example"
	cfg.Workflow.PollInterval = 0
	cfg.Workflow.ErrorRetryInterval = 0
	return &cfg
}

func sourceServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("media"))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestProcessFullJob(t *testing.T) {
	stubProbe(t, probe720p(), nil)
	cfg := testConfig(t)
	api := newFakeAPI()
	uploader := &fakeUploader{}
	transcoder := &fakeTranscoder{}
	subs := &fakeSubtitleService{
		manual: []subtitles.PreparedTrack{{
			Track:   subtitles.Track{Language: "en", Label: "EN", Kind: subtitles.KindSubtitles},
			RelPath: "subtitles/en-subtitles.vtt",
		}},
	}
	controller := NewController(cfg, api, &fakeSource{}, uploader, transcoder, subs, nil, logging.NewNop())

	job := &controlplane.Job{ID: "job-1", ContentItemID: "item-9", SourceURL: sourceServer(t).URL + "/source.mp4"}
	if err := controller.Process(context.Background(), job); err != nil {
		t.Fatalf("process: %v", err)
	}

	wantStages := []string{
		StagePreparingSource,
		StageTranscodingHLS,
		StageProcessingManualSubtitles,
		StageGeneratingAutoSubtitles,
		StageFinalizing,
	}
	if len(api.stages) != len(wantStages) {
		t.Fatalf("unexpected stages %v", api.stages)
	}
	for i, stage := range wantStages {
		if api.stages[i] != stage {
			t.Fatalf("stage %d: expected %s, got %v", i, stage, api.stages)
		}
	}

	if !transcoder.called {
		t.Fatal("expected transcoder invocation")
	}
	names := make([]string, 0, len(transcoder.plan.Renditions))
	for _, r := range transcoder.plan.Renditions {
		names = append(names, r.Name)
	}
	if strings.Join(names, ",") != "360p,540p,720p" {
		t.Fatalf("unexpected rendition selection %v", names)
	}

	if uploader.prefix != "vod/item-9" {
		t.Fatalf("unexpected upload prefix %q", uploader.prefix)
	}
	if !strings.Contains(uploader.masterText, "#EXTM3U") {
		t.Fatalf("expected master playlist written before upload, got %q", uploader.masterText)
	}

	report, ok := api.completed["job-1"]
	if !ok {
		t.Fatalf("expected completion, got failures %v", api.failed)
	}
	if report.ManifestURL != "https://cdn.example/vod/item-9/master.m3u8" {
		t.Fatalf("unexpected manifest url %q", report.ManifestURL)
	}
	if report.RenditionURLs["720p"] != "https://cdn.example/vod/item-9/720p/playlist.m3u8" {
		t.Fatalf("unexpected rendition urls %v", report.RenditionURLs)
	}
	if report.DurationSeconds != 120.5 {
		t.Fatalf("unexpected duration %v", report.DurationSeconds)
	}
	if len(report.SubtitleTracks) != 1 {
		t.Fatalf("unexpected subtitle tracks %+v", report.SubtitleTracks)
	}
	track := report.SubtitleTracks[0]
	if track.URL != "https://cdn.example/vod/item-9/subtitles/en-subtitles.vtt" {
		t.Fatalf("unexpected track url %q", track.URL)
	}
	if !track.Default {
		t.Fatal("expected sole track promoted to default")
	}

	if _, err := os.Stat(filepath.Join(cfg.Paths.WorkDir, "job-job-1")); !os.IsNotExist(err) {
		t.Fatalf("expected working directory removed, stat err %v", err)
	}
}

func TestProcessNoDownloadableSource(t *testing.T) {
	stubProbe(t, probe720p(), nil)
	cfg := testConfig(t)
	api := newFakeAPI()
	controller := NewController(cfg, api, &fakeSource{}, &fakeUploader{}, &fakeTranscoder{}, &fakeSubtitleService{}, nil, logging.NewNop())

	job := &controlplane.Job{ID: "job-1", ContentItemID: "item-9"}
	if err := controller.Process(context.Background(), job); err == nil {
		t.Fatal("expected error")
	}
	message, ok := api.failed["job-1"]
	if !ok {
		t.Fatal("expected failure report")
	}
	if !strings.Contains(message, "no downloadable source") {
		t.Fatalf("unexpected failure message %q", message)
	}
	if len(api.completed) != 0 {
		t.Fatalf("did not expect completion, got %v", api.completed)
	}
}

func TestProcessFallsBackToStoragePath(t *testing.T) {
	stubProbe(t, probe720p(), nil)
	cfg := testConfig(t)
	api := newFakeAPI()
	source := &fakeSource{}
	controller := NewController(cfg, api, source, &fakeUploader{}, &fakeTranscoder{}, &fakeSubtitleService{}, nil, logging.NewNop())

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(broken.Close)

	job := &controlplane.Job{
		ID:            "job-1",
		ContentItemID: "item-9",
		SourceURL:     broken.URL + "/source.mp4",
		StoragePath:   "uploads/item-9/source.mp4",
	}
	if err := controller.Process(context.Background(), job); err != nil {
		t.Fatalf("process: %v", err)
	}
	if source.bucket != "raw" || source.key != "uploads/item-9/source.mp4" {
		t.Fatalf("unexpected storage fetch %q %q", source.bucket, source.key)
	}
	if _, ok := api.completed["job-1"]; !ok {
		t.Fatalf("expected completion, failures %v", api.failed)
	}
}

func TestProcessSubtitleOnlyReusesRecordedOutput(t *testing.T) {
	stubProbe(t, probe720p(), nil)
	cfg := testConfig(t)
	api := newFakeAPI()
	uploader := &fakeUploader{}
	transcoder := &fakeTranscoder{}
	subs := &fakeSubtitleService{
		auto: []subtitles.PreparedTrack{{
			Track:   subtitles.Track{Language: "ms", Kind: subtitles.KindSubtitles},
			RelPath: "subtitles/ms-auto.vtt",
		}},
	}
	controller := NewController(cfg, api, &fakeSource{}, uploader, transcoder, subs, nil, logging.NewNop())

	job := &controlplane.Job{
		ID:                 "job-2",
		ContentItemID:      "item-9",
		SourceURL:          sourceServer(t).URL + "/source.mp4",
		RequestedQualities: []string{"subtitles-only"},
		Metadata: controlplane.Metadata{
			ManifestURL: "https://cdn.example/vod/item-9/master.m3u8",
			QualityURLs: map[string]string{"720p": "https://cdn.example/vod/item-9/720p/playlist.m3u8"},
		},
	}
	if err := controller.Process(context.Background(), job); err != nil {
		t.Fatalf("process: %v", err)
	}
	if transcoder.called {
		t.Fatal("did not expect transcoder for subtitle-only job")
	}
	if uploader.prefix != "vod/item-9" {
		t.Fatalf("expected prefix derived from recorded manifest, got %q", uploader.prefix)
	}
	report := api.completed["job-2"]
	if report.ManifestURL != "https://cdn.example/vod/item-9/master.m3u8" {
		t.Fatalf("unexpected manifest url %q", report.ManifestURL)
	}
	if report.RenditionURLs["720p"] != "https://cdn.example/vod/item-9/720p/playlist.m3u8" {
		t.Fatalf("expected recorded rendition urls, got %v", report.RenditionURLs)
	}
	if len(report.SubtitleTracks) != 1 || report.SubtitleTracks[0].URL != "https://cdn.example/vod/item-9/subtitles/ms-auto.vtt" {
		t.Fatalf("unexpected subtitle tracks %+v", report.SubtitleTracks)
	}
	for _, stage := range api.stages {
		if stage == StageTranscodingHLS {
			t.Fatalf("unexpected transcoding stage in %v", api.stages)
		}
	}
}

func TestProcessTranscoderFailureFailsJob(t *testing.T) {
	stubProbe(t, probe720p(), nil)
	cfg := testConfig(t)
	api := newFakeAPI()
	transcoder := &fakeTranscoder{err: errors.New("Conversion failed!")}
	controller := NewController(cfg, api, &fakeSource{}, &fakeUploader{}, transcoder, &fakeSubtitleService{}, nil, logging.NewNop())

	job := &controlplane.Job{ID: "job-3", ContentItemID: "item-9", SourceURL: sourceServer(t).URL + "/s.mp4"}
	if err := controller.Process(context.Background(), job); err == nil {
		t.Fatal("expected error")
	}
	if message := api.failed["job-3"]; !strings.Contains(message, "Conversion failed!") {
		t.Fatalf("unexpected failure message %q", message)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.WorkDir, "job-job-3")); !os.IsNotExist(err) {
		t.Fatalf("expected working directory removed, stat err %v", err)
	}
}

func TestProcessRequiredSubtitleFailureFailsJob(t *testing.T) {
	stubProbe(t, probe720p(), nil)
	cfg := testConfig(t)
	api := newFakeAPI()
	subs := &fakeSubtitleService{autoErr: errors.New("generation failed")}
	controller := NewController(cfg, api, &fakeSource{}, &fakeUploader{}, &fakeTranscoder{}, subs, nil, logging.NewNop())

	job := &controlplane.Job{ID: "job-4", ContentItemID: "item-9", SourceURL: sourceServer(t).URL + "/s.mp4"}
	if err := controller.Process(context.Background(), job); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := api.failed["job-4"]; !ok {
		t.Fatal("expected failure report")
	}
}

func TestRemotePrefixDerivedFromRecordedManifest(t *testing.T) {
	cfg := testConfig(t)
	controller := NewController(cfg, newFakeAPI(), &fakeSource{}, &fakeUploader{}, &fakeTranscoder{}, &fakeSubtitleService{}, nil, logging.NewNop())

	job := &controlplane.Job{
		ID:                 "job-7",
		ContentItemID:      "item-7",
		RequestedQualities: []string{"subtitles-only"},
		Metadata: controlplane.Metadata{
			ManifestURL: "https://cdn.example/hls/abc/master.m3u8",
		},
	}
	keyPrefix, urlPrefix := controller.remotePrefix(job)
	if keyPrefix != "hls/abc" {
		t.Fatalf("unexpected key prefix %q", keyPrefix)
	}
	if urlPrefix != "https://cdn.example/hls/abc" {
		t.Fatalf("unexpected url prefix %q", urlPrefix)
	}

	// A manifest URL outside the configured CDN base cannot be mapped to a
	// bucket key, so both prefixes fall back together. Uploads and reported
	// track URLs must never point at different locations.
	job.Metadata.ManifestURL = "https://other.example/hls/abc/master.m3u8"
	keyPrefix, urlPrefix = controller.remotePrefix(job)
	if keyPrefix != "vod/item-7" {
		t.Fatalf("unexpected key prefix %q", keyPrefix)
	}
	if urlPrefix != "https://cdn.example/vod/item-7" {
		t.Fatalf("unexpected url prefix %q", urlPrefix)
	}
}

func TestSourceExt(t *testing.T) {
	cases := []struct {
		job  controlplane.Job
		want string
	}{
		{controlplane.Job{SourceURL: "https://cdn/x/source.mov?sig=abc"}, ".mov"},
		{controlplane.Job{StoragePath: "uploads/a/video.mkv"}, ".mkv"},
		{controlplane.Job{SourceURL: "https://cdn/stream"}, ".mp4"},
		{controlplane.Job{}, ".mp4"},
	}
	for _, tc := range cases {
		if got := sourceExt(&tc.job); got != tc.want {
			t.Fatalf("sourceExt(%+v) = %q, want %q", tc.job, got, tc.want)
		}
	}
}
