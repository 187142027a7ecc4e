package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/finobytes/maxreward/pkg/referral"
)

func sampleSnapshot(memberID string) *Snapshot {
	one := 1
	root, rep := referral.Build(&referral.Response{Data: &referral.TreeData{
		RootMember: &referral.RawMember{ID: memberID, Name: "Root"},
		TreeStructure: []referral.LevelEntry{{
			Level: &one,
			Nodes: []referral.NodeEntry{{
				Parent:     &referral.RawMember{ID: memberID},
				LeftChild:  &referral.RawMember{ID: memberID + "-L", Name: "Left"},
				RightChild: &referral.RawMember{ID: memberID + "-R", Name: "Right"},
			}},
		}},
	}})
	return NewSnapshot(memberID, "hash-"+memberID, root, rep)
}

func openTestBolt(t *testing.T) *BoltStore {
	t.Helper()
	s, err := OpenBolt(filepath.Join(t.TempDir(), "nested", "snapshots.db"))
	if err != nil {
		t.Fatalf("OpenBolt: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSnapshot(t *testing.T) {
	snap := sampleSnapshot("34")
	if snap.ID == "" {
		t.Error("NewSnapshot should assign an id")
	}
	if snap.Summary.Nodes != 3 {
		t.Errorf("Summary.Nodes = %d, want 3", snap.Summary.Nodes)
	}
	if snap.Rejected != 0 || snap.Unreachable != 0 {
		t.Errorf("Rejected/Unreachable = %d/%d", snap.Rejected, snap.Unreachable)
	}
}

func TestBoltSaveGet(t *testing.T) {
	s := openTestBolt(t)
	ctx := context.Background()

	snap := sampleSnapshot("34")
	if err := s.Save(ctx, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Get(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(got.Tree, snap.Tree) {
		t.Error("Get() tree differs from saved tree")
	}
	if !got.CreatedAt.Equal(snap.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, snap.CreatedAt)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrSnapshotNotFound", err)
	}
}

func TestBoltSaveAssignsID(t *testing.T) {
	s := openTestBolt(t)
	snap := &Snapshot{MemberID: "7"}
	if err := s.Save(context.Background(), snap); err != nil {
		t.Fatal(err)
	}
	if snap.ID == "" || snap.CreatedAt.IsZero() {
		t.Errorf("Save should fill id and timestamp: %+v", snap)
	}
}

func TestBoltList(t *testing.T) {
	s := openTestBolt(t)
	ctx := context.Background()

	var ids []string
	for _, m := range []string{"34", "35", "34", "34"} {
		snap := sampleSnapshot(m)
		if err := s.Save(ctx, snap); err != nil {
			t.Fatal(err)
		}
		if m == "34" {
			ids = append(ids, snap.ID)
		}
		time.Sleep(2 * time.Millisecond)
	}

	got, err := s.List(ctx, "34", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len(List(34)) = %d, want 3", len(got))
	}
	for i, snap := range got {
		if want := ids[len(ids)-1-i]; snap.ID != want {
			t.Errorf("List(34)[%d] = %s, want %s (newest first)", i, snap.ID, want)
		}
		if snap.Tree != nil {
			t.Error("List should omit trees")
		}
	}

	if got, _ := s.List(ctx, "34", 2); len(got) != 2 {
		t.Errorf("List(34, 2) returned %d, want 2", len(got))
	}
	if got, _ := s.List(ctx, "", 0); len(got) != 4 {
		t.Errorf("List(all) returned %d, want 4", len(got))
	}
	if got, _ := s.List(ctx, "nobody", 0); len(got) != 0 {
		t.Errorf("List(nobody) returned %d, want 0", len(got))
	}

	members, err := s.Members(ctx)
	if err != nil || !reflect.DeepEqual(members, []string{"34", "35"}) {
		t.Errorf("Members() = %v, %v", members, err)
	}
}

func TestBoltDelete(t *testing.T) {
	s := openTestBolt(t)
	ctx := context.Background()

	snap := sampleSnapshot("34")
	_ = s.Save(ctx, snap)
	if err := s.Delete(ctx, snap.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := s.List(ctx, "34", 0); len(got) != 0 {
		t.Errorf("List after Delete returned %d", len(got))
	}
	if err := s.Delete(ctx, snap.ID); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("second Delete error = %v", err)
	}
}

func TestBoltReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.db")
	s, err := OpenBolt(path)
	if err != nil {
		t.Fatal(err)
	}
	snap := sampleSnapshot("34")
	_ = s.Save(context.Background(), snap)
	s.Close()

	s, err = OpenBolt(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.Get(context.Background(), snap.ID); err != nil {
		t.Errorf("Get after reopen: %v", err)
	}
}

func TestOpenBoltMissingPath(t *testing.T) {
	if _, err := OpenBolt(""); err == nil {
		t.Error("OpenBolt(\"\") should fail")
	}
}

func TestNullStore(t *testing.T) {
	var s Store = NullStore{}
	ctx := context.Background()
	if err := s.Save(ctx, sampleSnapshot("1")); err != nil {
		t.Error(err)
	}
	if _, err := s.Get(ctx, "x"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("Get() error = %v", err)
	}
}
