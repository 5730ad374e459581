package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kursadbilgin/push-relay/internal/domain"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testPath = "/var/lib/push-relay/notifications.json"

func TestOpenInitializesMissingFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	l, err := Open(fs, testPath, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	data, err := afero.ReadFile(fs, testPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("initial content = %q, want []", data)
	}
	if l.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", l.Count())
	}
}

func TestOpenDirectoryAtPathIsConfigurationError(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll(testPath, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	_, err := Open(fs, testPath, nil)
	if !errors.Is(err, domain.ErrStorageConfiguration) {
		t.Fatalf("Open() error = %v, want ErrStorageConfiguration", err)
	}
}

func TestOpenEmptyPathIsConfigurationError(t *testing.T) {
	t.Parallel()

	_, err := Open(afero.NewMemMapFs(), "  ", nil)
	if !errors.Is(err, domain.ErrStorageConfiguration) {
		t.Fatalf("Open() error = %v, want ErrStorageConfiguration", err)
	}
}

func TestOpenUnparseableContentStartsEmpty(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		content string
	}{
		{name: "garbage", content: "{not json"},
		{name: "object instead of list", content: `{"id":"x"}`},
		{name: "null", content: "null"},
		{name: "empty file", content: ""},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fs := afero.NewMemMapFs()
			if err := afero.WriteFile(fs, testPath, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}

			l, err := Open(fs, testPath, nil)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if l.Count() != 0 {
				t.Fatalf("Count() = %d, want 0", l.Count())
			}
		})
	}
}

func TestAppendPersistsAndReloads(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	l := openTestLedger(t, fs)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	receipt := "r-42"
	want := []domain.Notification{
		{ID: "a", Title: "t1", Message: "m1", Recipient: "ops", CreatedAt: base},
		{ID: "b", Title: "t2", Message: "m2", Recipient: "ops", CreatedAt: base.Add(time.Minute), PushoverSent: true, PushoverReceipt: &receipt},
		{ID: "c", Title: "t3", Message: "m3", Recipient: "dev", CreatedAt: base.Add(2 * time.Minute), Read: true},
	}
	for _, n := range want {
		if _, err := l.Append(n); err != nil {
			t.Fatalf("Append(%s) error = %v", n.ID, err)
		}
	}

	reloaded := openTestLedger(t, fs)
	if reloaded.Count() != len(want) {
		t.Fatalf("reloaded Count() = %d, want %d", reloaded.Count(), len(want))
	}

	for _, n := range want {
		got, err := reloaded.GetByID(n.ID)
		if err != nil {
			t.Fatalf("GetByID(%s) error = %v", n.ID, err)
		}
		assertSameRecord(t, got, n)
	}

	ops := reloaded.List("ops")
	if len(ops) != 2 || ops[0].ID != "b" || ops[1].ID != "a" {
		t.Fatalf("List(ops) = %v, want [b a]", ids(ops))
	}
}

func TestPersistWritesJSONArray(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	l := openTestLedger(t, fs)

	if _, err := l.Append(domain.Notification{ID: "a", Title: "t", Message: "m", Recipient: "ops"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	data, err := afero.ReadFile(fs, testPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("ledger file is not a JSON array: %v", err)
	}
	if len(raw) != 1 || raw[0]["recipient"] != "ops" || raw[0]["pushoverReceipt"] != nil {
		t.Fatalf("unexpected file content: %s", data)
	}
}

func TestListFiltersAndSortsDescending(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t, afero.NewMemMapFs())

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	offsets := []int{3, 1, 4, 2, 5}
	for i, off := range offsets {
		recipient := "ops"
		if i%2 == 1 {
			recipient = "dev"
		}
		_, err := l.Append(domain.Notification{
			ID:        fmt.Sprintf("n-%d", off),
			Recipient: recipient,
			CreatedAt: base.Add(time.Duration(off) * time.Hour),
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got := l.List("ops")
	if len(got) != 3 {
		t.Fatalf("List(ops) len = %d, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i-1].CreatedAt.After(got[i].CreatedAt) {
			t.Fatalf("List(ops) not strictly descending: %v", ids(got))
		}
	}
	for _, n := range got {
		if n.Recipient != "ops" {
			t.Fatalf("List(ops) returned recipient %q", n.Recipient)
		}
	}

	if got := l.List("nobody"); len(got) != 0 {
		t.Fatalf("List(nobody) = %v, want empty", ids(got))
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t, afero.NewMemMapFs())
	if _, err := l.Append(domain.Notification{ID: "a", Recipient: "ops"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	first, err := l.MarkRead("a")
	if err != nil {
		t.Fatalf("first MarkRead() error = %v", err)
	}
	second, err := l.MarkRead("a")
	if err != nil {
		t.Fatalf("second MarkRead() error = %v", err)
	}
	if !first.Read || !second.Read {
		t.Fatalf("read flags = %v/%v, want true/true", first.Read, second.Read)
	}

	if _, err := l.MarkRead("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("MarkRead(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteThenGetByID(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t, afero.NewMemMapFs())
	for _, id := range []string{"a", "b"} {
		if _, err := l.Append(domain.Notification{ID: id, Recipient: "ops"}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	deleted, err := l.Delete("a")
	if err != nil || !deleted {
		t.Fatalf("Delete(a) = %v, %v, want true, nil", deleted, err)
	}
	if _, err := l.GetByID("a"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByID(a) error = %v, want ErrNotFound", err)
	}

	deleted, err = l.Delete("missing")
	if err != nil || deleted {
		t.Fatalf("Delete(missing) = %v, %v, want false, nil", deleted, err)
	}
	if l.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", l.Count())
	}
}

func TestClearEmptiesFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	l := openTestLedger(t, fs)
	if _, err := l.Append(domain.Notification{ID: "a", Recipient: "ops"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if err := l.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if reloaded := openTestLedger(t, fs); reloaded.Count() != 0 {
		t.Fatalf("reloaded Count() = %d, want 0", reloaded.Count())
	}
}

func TestPersistFailureKeepsInMemoryState(t *testing.T) {
	t.Parallel()

	mem := afero.NewMemMapFs()
	l := openTestLedger(t, mem)
	l.fs = afero.NewReadOnlyFs(mem)

	created, err := l.Append(domain.Notification{ID: "a", Recipient: "ops"})
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("Append() error = %v, want ErrStorage", err)
	}
	if created.ID != "a" {
		t.Fatalf("Append() record id = %q, want a", created.ID)
	}
	if _, err := l.GetByID("a"); err != nil {
		t.Fatalf("in-memory GetByID(a) error = %v", err)
	}

	onDisk := openTestLedger(t, mem)
	if onDisk.Count() != 0 {
		t.Fatalf("on-disk Count() = %d, want 0 (diverged)", onDisk.Count())
	}

	// The next successful write carries the whole collection, including "a".
	l.fs = mem
	if _, err := l.MarkRead("a"); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	reconciled := openTestLedger(t, mem)
	if reconciled.Count() != 1 {
		t.Fatalf("on-disk Count() after successful write = %d, want 1", reconciled.Count())
	}
}

func TestLedgerConcurrentMutations(t *testing.T) {
	t.Parallel()

	const workers = 50

	fs := afero.NewMemMapFs()
	l := openTestLedger(t, fs)
	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	errs := make(chan error, workers*3)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			id := fmt.Sprintf("n-%02d", i)
			if _, err := l.Append(domain.Notification{
				ID:        id,
				Recipient: "ops",
				CreatedAt: base.Add(time.Duration(i) * time.Second),
			}); err != nil {
				errs <- fmt.Errorf("Append(%s): %w", id, err)
				return
			}
			if _, err := l.MarkRead(id); err != nil {
				errs <- fmt.Errorf("MarkRead(%s): %w", id, err)
				return
			}
			if i%5 == 0 {
				if deleted, err := l.Delete(id); err != nil || !deleted {
					errs <- fmt.Errorf("Delete(%s) = %v, %v", id, deleted, err)
				}
			}
			_ = l.List("ops")
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatal(err)
	}

	wantCount := workers - workers/5
	if l.Count() != wantCount {
		t.Fatalf("Count() = %d, want %d", l.Count(), wantCount)
	}

	listed := l.List("ops")
	seen := make(map[string]struct{}, len(listed))
	for _, n := range listed {
		if _, dup := seen[n.ID]; dup {
			t.Fatalf("duplicate id %s in %v", n.ID, ids(listed))
		}
		seen[n.ID] = struct{}{}
		if !n.Read {
			t.Fatalf("record %s not marked read", n.ID)
		}
	}

	reloaded := openTestLedger(t, fs)
	if reloaded.Count() != wantCount {
		t.Fatalf("reloaded Count() = %d, want %d", reloaded.Count(), wantCount)
	}
	for _, n := range reloaded.List("ops") {
		if _, ok := seen[n.ID]; !ok || !n.Read {
			t.Fatalf("reloaded record %+v does not match memory", n)
		}
	}
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t, afero.NewMemMapFs())
	receipt := "r-1"
	if _, err := l.Append(domain.Notification{ID: "a", Recipient: "ops", PushoverSent: true, PushoverReceipt: &receipt}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, _ := l.GetByID("a")
	got.Read = true
	*got.PushoverReceipt = "tampered"

	again, _ := l.GetByID("a")
	if again.Read || *again.PushoverReceipt != "r-1" {
		t.Fatalf("ledger state mutated through returned record: %+v", again)
	}
}

func TestLoadFailureIsLogged(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.WarnLevel)
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, testPath, []byte("{oops"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Open(fs, testPath, zap.New(core)); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if recorded.Len() != 1 {
		t.Fatalf("log entries = %d, want 1", recorded.Len())
	}
}

func openTestLedger(t *testing.T, fs afero.Fs) *Ledger {
	t.Helper()

	l, err := Open(fs, testPath, zap.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return l
}

func assertSameRecord(t *testing.T, got, want domain.Notification) {
	t.Helper()

	if got.ID != want.ID || got.Title != want.Title || got.Message != want.Message ||
		got.Recipient != want.Recipient || got.Read != want.Read || got.PushoverSent != want.PushoverSent ||
		!got.CreatedAt.Equal(want.CreatedAt) {
		t.Fatalf("record = %+v, want %+v", got, want)
	}
	switch {
	case got.PushoverReceipt == nil && want.PushoverReceipt == nil:
	case got.PushoverReceipt == nil || want.PushoverReceipt == nil || *got.PushoverReceipt != *want.PushoverReceipt:
		t.Fatalf("receipt = %v, want %v", got.PushoverReceipt, want.PushoverReceipt)
	}
}

func ids(records []domain.Notification) []string {
	out := make([]string, 0, len(records))
	for _, n := range records {
		out = append(out, n.ID)
	}
	return out
}
