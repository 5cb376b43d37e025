package store

import (
	"path/filepath"
	"testing"

	"github.com/jhartz/gradefast/internal/events"
	"github.com/jhartz/gradefast/internal/gfpath"
	"github.com/jhartz/gradefast/internal/grades"
	"github.com/jhartz/gradefast/internal/submissions"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "save.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestPutGetDelete(t *testing.T) {
	s, _ := openTestStore(t)

	if _, ok, err := s.Get("missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v, err=%v", ok, err)
	}

	if err := s.Put("k", []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put("k", []byte("v2")); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}

	value, ok, err := s.Get("k")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v, err=%v", ok, err)
	}
	if string(value) != "v2" {
		t.Errorf("value = %q, want v2", value)
	}

	if err := s.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get("k"); ok {
		t.Error("key still present after delete")
	}
}

func TestKeysPrefix(t *testing.T) {
	s, _ := openTestStore(t)

	for _, k := range []string{"submission/00000002", "submission/00000001", "meta/project"} {
		if err := s.Put(k, []byte("x")); err != nil {
			t.Fatalf("Put %q: %v", k, err)
		}
	}

	keys, err := s.Keys("submission/")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "submission/00000001" || keys[1] != "submission/00000002" {
		t.Errorf("keys = %v", keys)
	}
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "save.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Put("k", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopening runs migrations again; they must be idempotent.
	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	value, ok, err := s.Get("k")
	if err != nil || !ok || string(value) != "v" {
		t.Fatalf("Get after reopen = %q, ok=%v, err=%v", value, ok, err)
	}
}

func testDefs() []grades.Def {
	return []grades.Def{
		&grades.ScoreDef{Name: "A", Points: 10, DefaultScore: 10, Hints: grades.NewHintList(nil), DefaultEnabled: true},
		&grades.ScoreDef{Name: "B", Points: 5, DefaultScore: 5, Hints: grades.NewHintList(nil), DefaultEnabled: true},
	}
}

func TestSaveAndLoadSubmissions(t *testing.T) {
	s, _ := openTestStore(t)

	defs := testDefs()
	subs := submissions.NewManager(events.NewBus())
	alice := subs.Add("alice", "Alice A", gfpath.New("~/grading/alice"), grades.Build(defs), true)
	bob := subs.Add("bob", "Bob B", gfpath.New("~/grading/bob"), grades.Build(defs), true)

	aliceA, err := alice.Grade.GetByPath([]int{0})
	if err != nil {
		t.Fatal(err)
	}
	aliceA.(*grades.ScoreItem).SetEffectiveScore(7)
	alice.Grade.SetLate(true)
	bob.Grade.SetOverallComments("resubmit")

	tc, err := subs.StartTimer(alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	subs.StopTimer(tc)

	if err := s.SaveAll(subs); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	restored := submissions.NewManager(events.NewBus())
	n, err := s.LoadSubmissions(restored, testDefs())
	if err != nil {
		t.Fatalf("LoadSubmissions: %v", err)
	}
	if n != 2 || restored.Len() != 2 {
		t.Fatalf("restored %d submissions", n)
	}

	got := restored.Get(alice.ID)
	if got == nil || got.Name != "alice" || got.FullName != "Alice A" {
		t.Fatalf("alice = %+v", got)
	}
	if !got.Grade.IsLate() {
		t.Error("alice's late flag lost")
	}
	earned, _, _ := got.Grade.GetScore()
	if earned != 12 {
		t.Errorf("alice's earned = %v, want 12", earned)
	}
	if len(got.Intervals) != 1 || got.Intervals[0].End == nil {
		t.Errorf("alice's intervals = %+v", got.Intervals)
	}

	if restored.Get(bob.ID).Grade.OverallComments() != "resubmit" {
		t.Error("bob's comments lost")
	}

	// New submissions continue past the restored ids.
	carol := restored.Add("carol", "Carol C", gfpath.New("~/grading/carol"), grades.Build(defs), true)
	if carol.ID != 3 {
		t.Errorf("carol's id = %d, want 3", carol.ID)
	}
}

func TestRestoreAtDuplicate(t *testing.T) {
	subs := submissions.NewManager(events.NewBus())
	if _, err := subs.RestoreAt(1, "a", "a", gfpath.New("~/a"), grades.Build(testDefs())); err != nil {
		t.Fatal(err)
	}
	if _, err := subs.RestoreAt(1, "b", "b", gfpath.New("~/b"), grades.Build(testDefs())); err == nil {
		t.Error("expected error for duplicate id")
	}
}
