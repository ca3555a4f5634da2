package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/bigkaa/poc-admin/internal/domain/model"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type countingRefresher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingRefresher) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func (r *countingRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeTokens struct {
	cleared int
}

func (f *fakeTokens) Clear(ctx context.Context) error {
	f.cleared++
	return nil
}

type memRecorder struct {
	records []model.ImportRecord
}

func (m *memRecorder) RecordImport(ctx context.Context, rec model.ImportRecord) error {
	m.records = append(m.records, rec)
	return nil
}

// uploadReturning возвращает UploadFunc с фиксированным ответом и журналом загруженных файлов.
func uploadReturning(resp Response, err error, uploaded *[]string) UploadFunc {
	return func(ctx context.Context, name string, r io.Reader) (Response, error) {
		data, _ := io.ReadAll(r)
		if uploaded != nil {
			*uploaded = append(*uploaded, name+":"+string(data))
		}
		return resp, err
	}
}

// TestCoordinator_DoubleStageUploadsOne — повторный выбор заменяет файл, загружается один.
func TestCoordinator_DoubleStageUploadsOne(t *testing.T) {
	var uploaded []string
	ref := &countingRefresher{}
	c := New(uploadReturning(Response{Code: 200}, nil, &uploaded), ref, nil, Options{}, testLogger())

	if err := c.StageFile(File{Name: "a.zip", Data: []byte("A")}); err != nil {
		t.Fatal(err)
	}
	if err := c.StageFile(File{Name: "b.zip", Data: []byte("B")}); err != nil {
		t.Fatal(err)
	}
	if name, ok := c.StagedFile(); !ok || name != "b.zip" {
		t.Errorf("StagedFile = %q, %v", name, ok)
	}

	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(uploaded) != 1 || uploaded[0] != "b.zip:B" {
		t.Errorf("uploaded = %v", uploaded)
	}
}

// TestCoordinator_SuccessRefreshesOnce — успех: Idle и ровно одно обновление.
func TestCoordinator_SuccessRefreshesOnce(t *testing.T) {
	ref := &countingRefresher{}
	rec := &memRecorder{}
	c := New(uploadReturning(Response{Code: 200, Message: "ok"}, nil, nil), ref, nil, Options{Username: "admin"}, testLogger())
	c.SetRecorder(rec)

	if err := c.StageFile(File{Name: "p.zip", Data: []byte("x")}); err != nil {
		t.Fatal(err)
	}
	res, err := c.Submit(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !res.Success() || !res.Refreshed {
		t.Errorf("Result = %+v", res)
	}
	if ref.count() != 1 {
		t.Errorf("refresh вызван %d раз, ожидается 1", ref.count())
	}
	if c.State() != Idle {
		t.Errorf("State = %s, ожидается idle", c.State())
	}
	if _, ok := c.StagedFile(); ok {
		t.Error("файл не сброшен")
	}
	if len(rec.records) != 1 || rec.records[0].Username != "admin" || rec.records[0].Outcome != model.ImportOutcomeSuccess {
		t.Errorf("журнал = %+v", rec.records)
	}
}

// TestCoordinator_AuthExpired — токен сброшен, список обновлён, состояние Idle.
func TestCoordinator_AuthExpired(t *testing.T) {
	ref := &countingRefresher{}
	tokens := &fakeTokens{}
	c := New(uploadReturning(Response{Code: 505, Message: "expired"}, nil, nil), ref, tokens, Options{}, testLogger())

	c.StageFile(File{Name: "p.zip", Data: []byte("x")})
	res, err := c.Submit(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if res.Outcome != model.ImportOutcomeAuthExpired || res.Message != "expired" {
		t.Errorf("Result = %+v", res)
	}
	if tokens.cleared != 1 {
		t.Errorf("токен сброшен %d раз", tokens.cleared)
	}
	if ref.count() != 1 {
		t.Errorf("refresh вызван %d раз, ожидается 1", ref.count())
	}
	if c.State() != Idle {
		t.Errorf("State = %s", c.State())
	}
}

// TestCoordinator_RejectedNoRefresh — отказ PoC API: сообщение сервера, без обновления.
func TestCoordinator_RejectedNoRefresh(t *testing.T) {
	ref := &countingRefresher{}
	tokens := &fakeTokens{}
	c := New(uploadReturning(Response{Code: 400, Message: "bad archive"}, nil, nil), ref, tokens, Options{}, testLogger())

	c.StageFile(File{Name: "p.zip", Data: []byte("x")})
	res, err := c.Submit(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if res.Outcome != model.ImportOutcomeRejected || res.Message != "bad archive" || res.Code != 400 {
		t.Errorf("Result = %+v", res)
	}
	if ref.count() != 0 || tokens.cleared != 0 {
		t.Errorf("refresh=%d, cleared=%d", ref.count(), tokens.cleared)
	}
	if c.State() != Idle {
		t.Errorf("State = %s", c.State())
	}
}

func TestCoordinator_TransportError(t *testing.T) {
	ref := &countingRefresher{}
	c := New(uploadReturning(Response{}, errors.New("connection refused"), nil), ref, nil, Options{}, testLogger())

	c.StageFile(File{Name: "p.zip", Data: []byte("x")})
	res, err := c.Submit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != model.ImportOutcomeError || ref.count() != 0 {
		t.Errorf("Result = %+v, refresh=%d", res, ref.count())
	}
	if c.State() != Idle {
		t.Errorf("State = %s", c.State())
	}
}

// TestCoordinator_StageWhileUploading — выбор файла во время загрузки отклоняется.
func TestCoordinator_StageWhileUploading(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	upload := func(ctx context.Context, name string, r io.Reader) (Response, error) {
		close(entered)
		<-release
		return Response{Code: 200}, nil
	}
	c := New(upload, nil, nil, Options{}, testLogger())

	c.StageFile(File{Name: "p.zip", Data: []byte("x")})

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Submit(context.Background())
	}()

	<-entered
	if c.State() != Uploading {
		t.Errorf("State = %s, ожидается uploading", c.State())
	}
	if err := c.StageFile(File{Name: "q.zip", Data: []byte("y")}); !errors.Is(err, ErrUploadInProgress) {
		t.Errorf("StageFile: ожидалась ErrUploadInProgress, получено %v", err)
	}
	if _, err := c.Submit(context.Background()); !errors.Is(err, ErrUploadInProgress) {
		t.Errorf("Submit: ожидалась ErrUploadInProgress, получено %v", err)
	}

	close(release)
	<-done
	if c.State() != Idle {
		t.Errorf("State = %s", c.State())
	}
}

func TestCoordinator_Preconditions(t *testing.T) {
	c := New(uploadReturning(Response{Code: 200}, nil, nil), nil, nil, Options{MaxFileSize: 4}, testLogger())

	if _, err := c.Submit(context.Background()); !errors.Is(err, ErrNoFileStaged) {
		t.Errorf("Submit без файла: %v", err)
	}

	c.StageFile(File{Name: "ok.zip", Data: []byte("ab")})
	if err := c.StageFile(File{Name: "big.zip", Data: []byte("abcdef")}); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("большой файл: %v", err)
	}
	if c.State() != Idle {
		t.Errorf("после отказа State = %s, ожидается idle", c.State())
	}

	if err := c.StageFile(File{Data: []byte("a")}); !errors.Is(err, ErrEmptyFileName) {
		t.Errorf("пустое имя: %v", err)
	}

	c.StageFile(File{Name: "ok.zip", Data: []byte("ab")})
	c.Reset()
	if c.State() != Idle {
		t.Errorf("после Reset State = %s", c.State())
	}
}

// TestCoordinator_UploadKeepsOwnFile — пока идёт загрузка файла одной вкладки,
// импорт из другой вкладки отклоняется и не подменяет загружаемый файл.
func TestCoordinator_UploadKeepsOwnFile(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var uploaded []string
	upload := func(ctx context.Context, name string, r io.Reader) (Response, error) {
		data, _ := io.ReadAll(r)
		uploaded = append(uploaded, name+":"+string(data))
		close(entered)
		<-release
		return Response{Code: 200}, nil
	}
	c := New(upload, nil, nil, Options{}, testLogger())

	var res *Result
	done := make(chan struct{})
	go func() {
		defer close(done)
		res, _ = c.Upload(context.Background(), File{Name: "a.zip", Data: []byte("a")})
	}()

	<-entered
	if _, err := c.Upload(context.Background(), File{Name: "b.zip", Data: []byte("b")}); !errors.Is(err, ErrUploadInProgress) {
		t.Errorf("второй Upload: ожидалась ErrUploadInProgress, получено %v", err)
	}

	close(release)
	<-done
	if res == nil || res.FileName != "a.zip" {
		t.Fatalf("Result = %+v, ожидается a.zip", res)
	}
	if len(uploaded) != 1 || uploaded[0] != "a.zip:a" {
		t.Errorf("загружено %v, ожидается [a.zip:a]", uploaded)
	}
	if c.State() != Idle {
		t.Errorf("State = %s", c.State())
	}
}

// TestCoordinator_UploadConcurrent — при конкурентных импортах каждый
// результат соответствует файлу, который был отправлен этим вызовом.
func TestCoordinator_UploadConcurrent(t *testing.T) {
	var mu sync.Mutex
	sent := make(map[string]string)
	upload := func(ctx context.Context, name string, r io.Reader) (Response, error) {
		data, _ := io.ReadAll(r)
		mu.Lock()
		sent[name] = string(data)
		mu.Unlock()
		return Response{Code: 200}, nil
	}
	c := New(upload, nil, nil, Options{}, testLogger())

	var wg sync.WaitGroup
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				res, err := c.Upload(context.Background(), File{Name: name + ".zip", Data: []byte(name)})
				if errors.Is(err, ErrUploadInProgress) {
					continue
				}
				if err != nil {
					t.Errorf("Upload(%s): %v", name, err)
					return
				}
				if res.FileName != name+".zip" || res.FileSize != 1 {
					t.Errorf("Upload(%s) вернул %+v", name, res)
				}
			}
		}()
	}
	wg.Wait()

	for name, data := range sent {
		if name != data+".zip" {
			t.Errorf("файл %s отправлен с содержимым %q", name, data)
		}
	}
	if c.State() != Idle {
		t.Errorf("State = %s", c.State())
	}
}
