package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/docbox-nz/docbox/internal/model"
)

type fakeFileRepo struct {
	files       map[string]*model.File
	createErr   error
	clearParent []string
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{files: make(map[string]*model.File)}
}

func (f *fakeFileRepo) Create(ctx context.Context, file *model.File) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.files[file.ID] = file
	return nil
}
func (f *fakeFileRepo) Get(ctx context.Context, documentBox, id string) (*model.File, error) {
	return f.files[id], nil
}
func (f *fakeFileRepo) ListByDocumentBox(ctx context.Context, documentBox string) ([]model.File, error) {
	out := make([]model.File, 0, len(f.files))
	for _, file := range f.files {
		out = append(out, *file)
	}
	return out, nil
}
func (f *fakeFileRepo) ListByFolder(ctx context.Context, documentBox, folderID string) ([]model.File, error) {
	return nil, nil
}
func (f *fakeFileRepo) Rename(ctx context.Context, documentBox, id, name string) error { return nil }
func (f *fakeFileRepo) Move(ctx context.Context, documentBox, id, newFolder string) error {
	return nil
}
func (f *fakeFileRepo) SetPinned(ctx context.Context, documentBox, id string, pinned bool) error {
	return nil
}
func (f *fakeFileRepo) ClearParent(ctx context.Context, documentBox, id string) error {
	f.clearParent = append(f.clearParent, id)
	return nil
}
func (f *fakeFileRepo) Delete(ctx context.Context, documentBox, id string) error {
	delete(f.files, id)
	return nil
}

type fakeEditHistoryRepo struct {
	entries []*model.EditHistoryEntry
}

func (e *fakeEditHistoryRepo) Append(ctx context.Context, entry *model.EditHistoryEntry) error {
	e.entries = append(e.entries, entry)
	return nil
}
func (e *fakeEditHistoryRepo) LatestForSubject(ctx context.Context, kind, id string) (*model.EditHistoryEntry, error) {
	for i := len(e.entries) - 1; i >= 0; i-- {
		k, subjectID := e.entries[i].Subject()
		if k == kind && subjectID == id {
			return e.entries[i], nil
		}
	}
	return nil, nil
}

type fakePresignRepo struct {
	tasks     map[string]*model.PresignedUploadTask
	byFileKey map[string]string
}

func newFakePresignRepo() *fakePresignRepo {
	return &fakePresignRepo{tasks: make(map[string]*model.PresignedUploadTask), byFileKey: make(map[string]string)}
}
func (p *fakePresignRepo) Create(ctx context.Context, t *model.PresignedUploadTask) error {
	p.tasks[t.ID] = t
	p.byFileKey[t.FileKey] = t.ID
	return nil
}
func (p *fakePresignRepo) Get(ctx context.Context, id string) (*model.PresignedUploadTask, error) {
	return p.tasks[id], nil
}
func (p *fakePresignRepo) GetByFileKey(ctx context.Context, fileKey string) (*model.PresignedUploadTask, error) {
	return p.tasks[p.byFileKey[fileKey]], nil
}
func (p *fakePresignRepo) UpdateStatus(ctx context.Context, id string, status model.PresignStatus) error {
	p.tasks[id].Status = status
	return nil
}
func (p *fakePresignRepo) ListExpiredPending(ctx context.Context, now time.Time) ([]model.PresignedUploadTask, error) {
	var out []model.PresignedUploadTask
	for _, t := range p.tasks {
		if t.Status.Tag == model.PresignPending && t.Expired(now) {
			out = append(out, *t)
		}
	}
	return out, nil
}

type fakeStore struct {
	objects map[string][]byte
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}
func (s *fakeStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = data
	return nil
}
func (s *fakeStore) Get(ctx context.Context, key string) ([]byte, error) { return s.objects[key], nil }
func (s *fakeStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := s.objects[key]
	return ok, nil
}
func (s *fakeStore) Delete(ctx context.Context, key string) error {
	delete(s.objects, key)
	return nil
}
func (s *fakeStore) PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	return "https://upload.example/" + key, nil
}

type fakePipeline struct {
	processed chan string
}

func (p *fakePipeline) Process(ctx context.Context, documentBox, fileID string) error {
	if p.processed != nil {
		p.processed <- fileID
	}
	return nil
}

func TestUploadDirect_PersistsFileAndEditHistory(t *testing.T) {
	files := newFakeFileRepo()
	edits := &fakeEditHistoryRepo{}
	store := newFakeStore()
	pipeline := &fakePipeline{processed: make(chan string, 1)}

	ing := &Ingestion{Files: files, EditHistory: edits, Store: store, Pipeline: pipeline}

	creator := "user-1"
	f, err := ing.UploadDirect(context.Background(), DirectUploadInput{
		DocumentBox: "box1",
		FolderID:    "folder-1",
		Name:        "hello.pdf",
		Mime:        "application/pdf",
		CreatedBy:   &creator,
	}, bytes.NewReader([]byte("pdf bytes")))
	if err != nil {
		t.Fatalf("UploadDirect returned error: %v", err)
	}

	if _, ok := files.files[f.ID]; !ok {
		t.Error("expected File row to be persisted")
	}
	if len(store.objects) != 1 {
		t.Errorf("expected exactly one stored object, got %d", len(store.objects))
	}
	if len(edits.entries) != 1 || edits.entries[0].Type != model.EditCreate {
		t.Errorf("expected one Create edit-history entry, got %+v", edits.entries)
	}

	select {
	case gotID := <-pipeline.processed:
		if gotID != f.ID {
			t.Errorf("pipeline processed file %q, want %q", gotID, f.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("pipeline was never triggered")
	}
}

func TestUploadDirect_CleansUpObjectOnFileCreateFailure(t *testing.T) {
	files := newFakeFileRepo()
	files.createErr = context.DeadlineExceeded
	store := newFakeStore()
	edits := &fakeEditHistoryRepo{}

	ing := &Ingestion{Files: files, EditHistory: edits, Store: store, Pipeline: &fakePipeline{}}

	_, err := ing.UploadDirect(context.Background(), DirectUploadInput{
		DocumentBox: "box1",
		FolderID:    "folder-1",
		Name:        "x.txt",
		Mime:        "text/plain",
	}, bytes.NewReader([]byte("data")))
	if err == nil {
		t.Fatal("expected UploadDirect to return an error when the File insert fails")
	}
	if len(store.objects) != 0 {
		t.Errorf("expected the orphaned object to be deleted, found %d objects", len(store.objects))
	}
}

func TestFinalizePresigned_CompletesOnObjectPresent(t *testing.T) {
	files := newFakeFileRepo()
	edits := &fakeEditHistoryRepo{}
	presign := newFakePresignRepo()
	store := newFakeStore()
	pipeline := &fakePipeline{processed: make(chan string, 1)}

	ing := &Ingestion{Files: files, EditHistory: edits, Presign: presign, Store: store, Pipeline: pipeline}

	res, err := ing.BeginPresigned(context.Background(), PresignInput{
		DocumentBox: "box1",
		Name:        "report.docx",
		Mime:        "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Size:        1024,
	}, 10*time.Minute)
	if err != nil {
		t.Fatalf("BeginPresigned returned error: %v", err)
	}

	// Simulate the client PUTting bytes directly to the object store.
	store.objects[res.Task.FileKey] = []byte("docx bytes")

	if err := ing.FinalizePresigned(context.Background(), res.Task.FileKey); err != nil {
		t.Fatalf("FinalizePresigned returned error: %v", err)
	}

	task, _ := presign.Get(context.Background(), res.Task.ID)
	if task.Status.Tag != model.PresignCompleted {
		t.Errorf("expected task status Completed, got %q", task.Status.Tag)
	}
	if task.Status.FileID == nil {
		t.Fatal("expected Completed status to carry a file id")
	}
	if _, ok := files.files[*task.Status.FileID]; !ok {
		t.Error("expected a File row to exist for the completed task")
	}
}

func TestFinalizePresigned_FailsWhenObjectMissing(t *testing.T) {
	files := newFakeFileRepo()
	edits := &fakeEditHistoryRepo{}
	presign := newFakePresignRepo()
	store := newFakeStore()

	ing := &Ingestion{Files: files, EditHistory: edits, Presign: presign, Store: store, Pipeline: &fakePipeline{}}

	res, err := ing.BeginPresigned(context.Background(), PresignInput{
		DocumentBox: "box1",
		Name:        "report.docx",
		Mime:        "application/pdf",
		Size:        10,
	}, 10*time.Minute)
	if err != nil {
		t.Fatalf("BeginPresigned returned error: %v", err)
	}

	// No bytes ever written to store.objects for this key.
	if err := ing.FinalizePresigned(context.Background(), res.Task.FileKey); err != nil {
		t.Fatalf("FinalizePresigned returned error: %v", err)
	}

	task, _ := presign.Get(context.Background(), res.Task.ID)
	if task.Status.Tag != model.PresignFailed {
		t.Errorf("expected task status Failed, got %q", task.Status.Tag)
	}
	if len(files.files) != 0 {
		t.Error("expected no File row to be created for a missing object")
	}
}

func TestSweepExpired_MarksPastDeadlineTasksFailed(t *testing.T) {
	files := newFakeFileRepo()
	presign := newFakePresignRepo()
	store := newFakeStore()

	ing := &Ingestion{Files: files, Presign: presign, Store: store}

	expired := &model.PresignedUploadTask{
		ID:        "task-1",
		Status:    model.PresignStatus{Tag: model.PresignPending},
		FileKey:   "raw/box1/expired-key",
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	presign.tasks[expired.ID] = expired
	presign.byFileKey[expired.FileKey] = expired.ID
	store.objects[expired.FileKey] = []byte("leftover bytes")

	n, err := ing.SweepExpired(context.Background())
	if err != nil {
		t.Fatalf("SweepExpired returned error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 swept task, got %d", n)
	}
	if expired.Status.Tag != model.PresignFailed {
		t.Errorf("expected swept task status Failed, got %q", expired.Status.Tag)
	}
	if _, ok := store.objects[expired.FileKey]; ok {
		t.Error("expected the expired task's object to be deleted")
	}
}
