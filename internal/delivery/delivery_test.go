package delivery

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"

	"github.com/c0ld-w4ter/you-fm/internal/audio"
	"github.com/c0ld-w4ter/you-fm/internal/briefing"
	"github.com/c0ld-w4ter/you-fm/internal/resilience"
)

var fixedNow = time.Date(2026, 10, 16, 7, 30, 5, 0, time.UTC)

func testArtifact() *briefing.AudioArtifact {
	samples := make([]int16, 2400)
	for i := range samples {
		samples[i] = int16((i % 100) * 100)
	}
	return &briefing.AudioArtifact{
		Data:            audio.EncodePCM16(samples),
		Format:          briefing.BriefingFormat,
		DurationSeconds: 0.1,
	}
}

func testScript() briefing.Script {
	return briefing.Script{Text: "Hello Seamus. That is all for today.", Words: 7, Origin: briefing.OriginAI}
}

type fakeStore struct {
	mu    sync.Mutex
	puts  []string
	calls int
	err   func(call int) error
}

func (f *fakeStore) Put(ctx context.Context, key, path, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		if err := f.err(f.calls); err != nil {
			return "", err
		}
	}
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	f.puts = append(f.puts, key)
	return ObjectURL("https", "s3.example.com", "briefings", key), nil
}

func (f *fakeStore) Check(ctx context.Context) (bool, error) {
	return true, nil
}

func testOptions() Options {
	return Options{
		Timeout: time.Second,
		Retry:   &resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1},
	}
}

func TestNewName(t *testing.T) {
	name := NewName(fixedNow)
	re := regexp.MustCompile(`^briefing_20261016_073005_[0-9a-f]{8}$`)
	if !re.MatchString(string(name)) {
		t.Errorf("Unexpected name %q", name)
	}
	if name.Audio() != string(name)+".wav" || name.Script() != string(name)+".txt" {
		t.Errorf("Unexpected file names %q %q", name.Audio(), name.Script())
	}
	if NewName(fixedNow) == name {
		t.Error("Expected names from the same second to differ")
	}
}

func TestLocalStore_WriteAndVerify(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	store := NewLocalStore(dir)

	files, err := store.Write(NameWithSuffix(fixedNow, "abcdef01"), testArtifact(), "Hello.")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if files.Audio != filepath.Join(dir, "briefing_20261016_073005_abcdef01.wav") {
		t.Errorf("Unexpected audio path %s", files.Audio)
	}

	info, err := audio.ReadWAVInfo(files.Audio)
	if err != nil {
		t.Fatalf("Written file is not a valid wav: %v", err)
	}
	if info.SampleRate != 24000 || info.Channels != 1 || info.BitDepth != 16 {
		t.Errorf("Unexpected wav header %+v", info)
	}

	script, err := os.ReadFile(files.Script)
	if err != nil || strings.TrimSpace(string(script)) != "Hello." {
		t.Errorf("Unexpected script file %q (%v)", script, err)
	}
}

func TestLocalStore_NoAudio(t *testing.T) {
	_, err := NewLocalStore(t.TempDir()).Write(NewName(fixedNow), &briefing.AudioArtifact{}, "x")
	if briefing.KindOf(err, "") != briefing.KindStorageWrite {
		t.Errorf("Expected storage_write_error, got %v", err)
	}
}

func TestLocalStore_Check(t *testing.T) {
	ok, err := NewLocalStore(t.TempDir()).Check(context.Background())
	if !ok || err != nil {
		t.Errorf("Expected writable dir, got %v %v", ok, err)
	}

	file := filepath.Join(t.TempDir(), "file")
	os.WriteFile(file, []byte("x"), 0o644)
	if ok, _ := NewLocalStore(filepath.Join(file, "sub")).Check(context.Background()); ok {
		t.Error("Expected check to fail below a regular file")
	}
}

func TestService_DeliverLocal(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(NewLocalStore(dir), nil, testOptions(), zerolog.Nop()).WithClock(func() time.Time { return fixedNow })

	out := svc.Deliver(context.Background(), testArtifact(), testScript(), briefing.DestinationLocal)
	if out.Status != briefing.StatusOK || len(out.Errors) != 0 {
		t.Fatalf("Expected ok, got %s %+v", out.Status, out.Errors)
	}
	if out.Reference.Destination != briefing.DestinationLocal || filepath.Dir(out.Reference.Location) != dir {
		t.Errorf("Unexpected reference %+v", out.Reference)
	}
	if _, err := os.Stat(out.Reference.ScriptLocation); err != nil {
		t.Errorf("Expected script file: %v", err)
	}
}

func TestService_DeliverObjectStore(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStore{}
	svc := NewService(NewLocalStore(dir), store, testOptions(), zerolog.Nop())

	out := svc.Deliver(context.Background(), testArtifact(), testScript(), briefing.DestinationObjectStore)
	if out.Status != briefing.StatusOK {
		t.Fatalf("Expected ok, got %s %+v", out.Status, out.Errors)
	}
	if !strings.HasPrefix(out.Reference.Location, "https://s3.example.com/briefings/briefing_") ||
		!strings.HasSuffix(out.Reference.Location, ".wav") {
		t.Errorf("Unexpected location %s", out.Reference.Location)
	}
	if len(store.puts) != 2 {
		t.Errorf("Expected audio and script uploads, got %v", store.puts)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Expected no local copy, found %d files", len(entries))
	}
}

func TestService_KeepLocalCopy(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions()
	opts.KeepLocalCopy = true
	svc := NewService(NewLocalStore(dir), &fakeStore{}, opts, zerolog.Nop())

	out := svc.Deliver(context.Background(), testArtifact(), testScript(), briefing.DestinationObjectStore)
	if out.Status != briefing.StatusOK {
		t.Fatalf("Expected ok, got %s", out.Status)
	}
	if _, err := os.Stat(filepath.Join(dir, out.Reference.Filename)); err != nil {
		t.Errorf("Expected local copy: %v", err)
	}
}

func TestService_RetriesTransientUpload(t *testing.T) {
	store := &fakeStore{err: func(call int) error {
		if call == 1 {
			return briefing.NewTemporaryError(briefing.KindStorageWrite, "test", errors.New("503"))
		}
		return nil
	}}
	svc := NewService(NewLocalStore(t.TempDir()), store, testOptions(), zerolog.Nop())

	out := svc.Deliver(context.Background(), testArtifact(), testScript(), briefing.DestinationObjectStore)
	if out.Status != briefing.StatusOK || out.Reference.Destination != briefing.DestinationObjectStore {
		t.Errorf("Expected upload to succeed on retry, got %s %+v", out.Status, out.Errors)
	}
}

func TestService_ObjectStoreFailureFallsBackToLocal(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStore{err: func(int) error {
		return briefing.NewTemporaryError(briefing.KindStorageWrite, "test", errors.New("bucket unavailable"))
	}}
	svc := NewService(NewLocalStore(dir), store, testOptions(), zerolog.Nop())

	out := svc.Deliver(context.Background(), testArtifact(), testScript(), briefing.DestinationObjectStore)
	if out.Status != briefing.StatusDegraded {
		t.Errorf("Expected degraded, got %s", out.Status)
	}
	if out.Reference == nil || out.Reference.Destination != briefing.DestinationLocal || filepath.Dir(out.Reference.Location) != dir {
		t.Fatalf("Expected local reference, got %+v", out.Reference)
	}
	if len(out.Errors) != 1 || out.Errors[0].Kind != briefing.KindStorageWrite || out.Errors[0].Stage != briefing.StageDelivery {
		t.Errorf("Expected one storage_write_error, got %+v", out.Errors)
	}
	if store.calls != 2 {
		t.Errorf("Expected one retry, got %d calls", store.calls)
	}
}

func TestService_ObjectStoreNotConfigured(t *testing.T) {
	svc := NewService(NewLocalStore(t.TempDir()), nil, testOptions(), zerolog.Nop())

	out := svc.Deliver(context.Background(), testArtifact(), testScript(), briefing.DestinationObjectStore)
	if out.Status != briefing.StatusDegraded || len(out.Errors) != 1 {
		t.Errorf("Expected degraded with one error, got %s %+v", out.Status, out.Errors)
	}
}

func TestService_BothWritesFail(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	os.WriteFile(file, []byte("x"), 0o644)

	store := &fakeStore{err: func(int) error {
		return briefing.NewError(briefing.KindStorageWrite, "test", errors.New("denied"))
	}}
	svc := NewService(NewLocalStore(filepath.Join(file, "out")), store, testOptions(), zerolog.Nop())

	out := svc.Deliver(context.Background(), testArtifact(), testScript(), briefing.DestinationObjectStore)
	if out.Status != briefing.StatusFailed || out.Reference != nil {
		t.Errorf("Expected failed without reference, got %s %+v", out.Status, out.Reference)
	}
	if len(out.Errors) != 2 {
		t.Errorf("Expected two errors, got %+v", out.Errors)
	}
}

func TestService_Checks(t *testing.T) {
	svc := NewService(NewLocalStore(t.TempDir()), &fakeStore{}, testOptions(), zerolog.Nop())
	checks := svc.Checks()
	if _, ok := checks["output_dir"]; !ok {
		t.Error("Expected output_dir check")
	}
	if _, ok := checks["object_store"]; !ok {
		t.Error("Expected object_store check")
	}
}

// fakeS3 answers the path-style requests minio-go sends for one bucket
type fakeS3 struct {
	mu        sync.Mutex
	objects   map[string]int64
	sizeSkew  int64
	putStatus int
	methods   []string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]int64)}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.methods = append(f.methods, r.Method)

	path := strings.TrimSuffix(r.URL.Path, "/")
	if path == "/briefings" {
		w.WriteHeader(http.StatusOK)
		return
	}
	key, ok := strings.CutPrefix(path, "/briefings/")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodPut:
		n, _ := io.Copy(io.Discard, r.Body)
		if decoded := r.Header.Get("X-Amz-Decoded-Content-Length"); decoded != "" {
			n, _ = strconv.ParseInt(decoded, 10, 64)
		}
		if f.putStatus != 0 {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(f.putStatus)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>SlowDown</Code><Message>Please reduce your request rate.</Message></Error>`)
			return
		}
		f.objects[key] = n
		w.Header().Set("ETag", `"0123456789abcdef0123456789abcdef"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		size, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", strconv.FormatInt(size+f.sizeSkew, 10))
		w.Header().Set("ETag", `"0123456789abcdef0123456789abcdef"`)
		w.Header().Set("Last-Modified", fixedNow.Format(http.TimeFormat))
		w.Header().Set("Content-Type", "audio/wav")
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestMinioStore(t *testing.T, handler http.Handler) (*MinioStore, string) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	endpoint := strings.TrimPrefix(server.URL, "http://")
	store, err := NewMinioStore(MinioConfig{
		Endpoint:  endpoint,
		Bucket:    "briefings",
		Region:    "us-east-1",
		AccessKey: "key",
		SecretKey: "secret",
	})
	if err != nil {
		t.Fatalf("NewMinioStore failed: %v", err)
	}
	return store, endpoint
}

func writeUpload(t *testing.T) (string, int64) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "briefing.wav")
	data := []byte(strings.Repeat("RIFF", 256))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path, int64(len(data))
}

func TestMinioStore_Check(t *testing.T) {
	store, _ := newTestMinioStore(t, newFakeS3())

	ok, err := store.Check(context.Background())
	if !ok || err != nil {
		t.Errorf("Expected bucket to exist, got %v %v", ok, err)
	}
}

func TestMinioStore_Put(t *testing.T) {
	s3 := newFakeS3()
	store, endpoint := newTestMinioStore(t, s3)
	path, size := writeUpload(t)

	url, err := store.Put(context.Background(), "briefing_1.wav", path, "audio/wav")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if want := "http://" + endpoint + "/briefings/briefing_1.wav"; url != want {
		t.Errorf("Expected %s, got %s", want, url)
	}
	if s3.objects["briefing_1.wav"] != size {
		t.Errorf("Expected %d bytes stored, got %d", size, s3.objects["briefing_1.wav"])
	}
	if len(s3.methods) != 2 || s3.methods[0] != http.MethodPut || s3.methods[1] != http.MethodHead {
		t.Errorf("Expected upload then verify, got %v", s3.methods)
	}
}

func TestMinioStore_PutSizeMismatch(t *testing.T) {
	s3 := newFakeS3()
	s3.sizeSkew = 1
	store, _ := newTestMinioStore(t, s3)
	path, _ := writeUpload(t)

	_, err := store.Put(context.Background(), "briefing_1.wav", path, "audio/wav")
	if err == nil {
		t.Fatal("Expected verification error")
	}
	if kind := briefing.KindOf(err, ""); kind != briefing.KindStorageWrite {
		t.Errorf("Expected storage_write_error, got %s", kind)
	}
	if briefing.IsTransient(err) {
		t.Error("Expected size mismatch to be permanent")
	}
}

func TestMinioStore_PutServerError(t *testing.T) {
	retries := minio.MaxRetry
	minio.MaxRetry = 1
	t.Cleanup(func() { minio.MaxRetry = retries })

	s3 := newFakeS3()
	s3.putStatus = http.StatusServiceUnavailable
	store, _ := newTestMinioStore(t, s3)
	path, _ := writeUpload(t)

	_, err := store.Put(context.Background(), "briefing_1.wav", path, "audio/wav")
	if err == nil {
		t.Fatal("Expected upload error")
	}
	if kind := briefing.KindOf(err, ""); kind != briefing.KindStorageWrite {
		t.Errorf("Expected storage_write_error, got %s", kind)
	}
	if !briefing.IsTransient(err) {
		t.Errorf("Expected 503 to be temporary, got %v", err)
	}
}

func TestClassifyStoreError(t *testing.T) {
	tests := []struct {
		status    int
		temporary bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusForbidden, false},
		{http.StatusNotFound, false},
	}
	for _, tt := range tests {
		err := classifyStoreError("delivery.object_store", "upload", minio.ErrorResponse{StatusCode: tt.status, Code: "Err"})
		if briefing.KindOf(err, "") != briefing.KindStorageWrite || briefing.IsTransient(err) != tt.temporary {
			t.Errorf("Status %d: got kind %s temporary %v", tt.status, briefing.KindOf(err, ""), briefing.IsTransient(err))
		}
	}
}

func TestNewMinioStore_RequiresBucket(t *testing.T) {
	if _, err := NewMinioStore(MinioConfig{Endpoint: "localhost:9000"}); err == nil {
		t.Error("Expected error without bucket")
	}
}

func TestObjectURL(t *testing.T) {
	got := ObjectURL("https", "s3.amazonaws.com", "briefings", "briefing_1.wav")
	if got != "https://s3.amazonaws.com/briefings/briefing_1.wav" {
		t.Errorf("Unexpected URL %s", got)
	}
}
