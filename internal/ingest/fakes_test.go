package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"wavelift/internal/media/ytdlp"
	"wavelift/internal/objectstore"
	"wavelift/internal/services"
	"wavelift/internal/upload"
)

type fakeResolver struct {
	failures    map[string]error
	block       bool
	hadDeadline atomic.Bool
}

func (f *fakeResolver) Resolve(ctx context.Context, locator string) (ytdlp.Metadata, error) {
	if _, ok := ctx.Deadline(); ok {
		f.hadDeadline.Store(true)
	}
	if f.block {
		<-ctx.Done()
		return ytdlp.Metadata{}, ctx.Err()
	}
	if err, ok := f.failures[locator]; ok {
		return ytdlp.Metadata{}, err
	}
	id := locator[strings.LastIndex(locator, "/")+1:]
	return ytdlp.Metadata{ID: id, Title: "Title " + id, Owner: "uploader"}, nil
}

type fakeProber struct {
	mu       sync.Mutex
	existing map[string]bool
	err      error
	calls    int
	keys     []string
}

func (f *fakeProber) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.keys = append(f.keys, key)
	if f.err != nil {
		return false, f.err
	}
	for id := range f.existing {
		if strings.HasSuffix(key, "_"+id+".wav") {
			return true, nil
		}
	}
	return false, nil
}

type fakeFetcher struct {
	mu      sync.Mutex
	calls   map[string]int
	errs    map[string][]error
	dirs    []string
	onFetch func()
}

func (f *fakeFetcher) FetchAndConvert(ctx context.Context, locator, destDir, baseName string) (string, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[locator]++
	f.dirs = append(f.dirs, destDir)
	var err error
	if queued := f.errs[locator]; len(queued) > 0 {
		err = queued[0]
		f.errs[locator] = queued[1:]
	}
	hook := f.onFetch
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		return "", err
	}
	if mkErr := os.MkdirAll(destDir, 0o755); mkErr != nil {
		return "", mkErr
	}
	path := filepath.Join(destDir, baseName+".wav")
	if wErr := os.WriteFile(path, []byte("RIFF....WAVE"), 0o644); wErr != nil {
		return "", wErr
	}
	return path, nil
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeFetcher) count(locator string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[locator]
}

type fakeUploader struct {
	mu     sync.Mutex
	stored []string
	fail   map[string]bool
	calls  atomic.Int32
}

func (f *fakeUploader) Upload(_ context.Context, localPath, key string) (upload.Strategy, error) {
	f.calls.Add(1)
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for marker := range f.fail {
		if strings.Contains(key, marker) {
			return "", services.Wrap(services.ErrStorage, "upload", "put", key, errors.New("access denied"))
		}
	}
	f.stored = append(f.stored, key)
	return upload.StrategySingle, nil
}

// recordingBackend is an upload.Backend that honours its context like a real
// transport and records the call sequence.
type recordingBackend struct {
	mu     sync.Mutex
	calls  []string
	onPart func()
}

func (b *recordingBackend) record(call string) {
	b.mu.Lock()
	b.calls = append(b.calls, call)
	b.mu.Unlock()
}

func (b *recordingBackend) Put(ctx context.Context, _ string, _ io.Reader, _ int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.record("put")
	return nil
}

func (b *recordingBackend) CreateMultipart(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.record("create")
	return "upload-1", nil
}

func (b *recordingBackend) UploadPart(ctx context.Context, _ string, _ string, number int, r io.Reader, _ int64) (objectstore.Part, error) {
	if hook := b.onPart; hook != nil {
		b.onPart = nil
		hook()
	}
	if err := ctx.Err(); err != nil {
		return objectstore.Part{}, err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return objectstore.Part{}, err
	}
	b.record(fmt.Sprintf("part-%d", number))
	return objectstore.Part{Number: number, ETag: fmt.Sprintf("etag-%d", number)}, nil
}

func (b *recordingBackend) CompleteMultipart(ctx context.Context, _ string, _ string, _ []objectstore.Part) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.record("complete")
	return nil
}

func (b *recordingBackend) AbortMultipart(_ context.Context, _ string, _ string) error {
	b.record("abort")
	return nil
}
