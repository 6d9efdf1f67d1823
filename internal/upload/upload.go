// Package upload pushes a finished HLS output tree to object storage with
// bounded parallelism.
package upload

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"log/slog"

	"golang.org/x/sync/errgroup"

	"spool/internal/logging"
	"spool/internal/storage"
)

// Store is the subset of the object store client the pipeline needs.
type Store interface {
	Put(ctx context.Context, in storage.PutInput) error
}

// Upload priorities. Manifests go first so a player can start fetching while
// segments are still arriving; ordering is advisory for delivery speed, not a
// correctness gate.
const (
	priorityMaster = iota
	priorityManifest
	priorityMedia
)

const progressInterval = 25

// Item is one file scheduled for upload.
type Item struct {
	LocalPath    string
	Key          string
	ContentType  string
	CacheControl string
	priority     int
}

const (
	manifestCacheControl = "public, max-age=60, must-revalidate"
	mediaCacheControl    = "public, max-age=31536000, immutable"
)

var contentTypes = map[string]string{
	".m3u8": "application/vnd.apple.mpegurl",
	".ts":   "video/mp2t",
	".m4s":  "video/iso.segment",
	".mp4":  "video/mp4",
	".vtt":  "text/vtt",
	".srt":  "application/x-subrip",
	".json": "application/json",
}

// Pipeline uploads directory trees to a fixed bucket.
type Pipeline struct {
	store       Store
	bucket      string
	concurrency int
	logger      *slog.Logger
	progress    func(completed, total int)
}

// NewPipeline returns a pipeline writing to bucket with at most concurrency
// simultaneous uploads. Concurrency below 1 is clamped to 1.
func NewPipeline(store Store, bucket string, concurrency int, logger *slog.Logger) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		store:       store,
		bucket:      bucket,
		concurrency: concurrency,
		logger:      logging.NewComponentLogger(logger, "upload"),
	}
}

// WithProgress installs a completion callback invoked at the progress cadence.
func (p *Pipeline) WithProgress(fn func(completed, total int)) *Pipeline {
	p.progress = fn
	return p
}

// UploadDir walks localDir, schedules every regular file under keyPrefix, and
// returns once all items uploaded or the first failure aborted the run.
// Workers pull from a shared queue so a slow object never blocks an idle
// worker; the first error cancels dispatch while in-flight uploads finish.
func (p *Pipeline) UploadDir(ctx context.Context, localDir, keyPrefix string) (int, error) {
	items, err := collectItems(localDir, keyPrefix)
	if err != nil {
		return 0, err
	}
	total := len(items)
	if total == 0 {
		p.logger.Warn("nothing to upload", logging.String("dir", localDir))
		return 0, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	queue := make(chan Item)
	group.Go(func() error {
		defer close(queue)
		for _, item := range items {
			select {
			case queue <- item:
			case <-groupCtx.Done():
				return groupCtx.Err()
			}
		}
		return nil
	})

	var completed atomic.Int64
	for i := 0; i < p.concurrency; i++ {
		group.Go(func() error {
			for item := range queue {
				if err := p.uploadOne(groupCtx, item); err != nil {
					return err
				}
				done := int(completed.Add(1))
				if done%progressInterval == 0 || done == total {
					p.logger.Info("upload progress",
						logging.Int("completed", done),
						logging.Int("total", total),
					)
					if p.progress != nil {
						p.progress(done, total)
					}
				}
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return int(completed.Load()), err
	}
	return total, nil
}

func (p *Pipeline) uploadOne(ctx context.Context, item Item) error {
	file, err := os.Open(item.LocalPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", item.LocalPath, err)
	}
	defer file.Close()
	return p.store.Put(ctx, storage.PutInput{
		Bucket:       p.bucket,
		Key:          item.Key,
		ContentType:  item.ContentType,
		CacheControl: item.CacheControl,
		Body:         file,
	})
}

// collectItems enumerates every regular file under localDir and orders the
// result by (priority, key) so scheduling is deterministic regardless of
// filesystem iteration order.
func collectItems(localDir, keyPrefix string) ([]Item, error) {
	var items []Item
	err := filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		key := path.Join(keyPrefix, filepath.ToSlash(rel))
		items = append(items, classify(p, key))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", localDir, err)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].priority != items[j].priority {
			return items[i].priority < items[j].priority
		}
		return items[i].Key < items[j].Key
	})
	return items, nil
}

func classify(localPath, key string) Item {
	ext := strings.ToLower(filepath.Ext(key))
	contentType, ok := contentTypes[ext]
	if !ok {
		contentType = "application/octet-stream"
	}
	item := Item{
		LocalPath:   localPath,
		Key:         key,
		ContentType: contentType,
	}
	if ext == ".m3u8" {
		item.CacheControl = manifestCacheControl
		if path.Base(key) == "master.m3u8" {
			item.priority = priorityMaster
		} else {
			item.priority = priorityManifest
		}
	} else {
		item.CacheControl = mediaCacheControl
		item.priority = priorityMedia
	}
	return item
}
