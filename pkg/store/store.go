// Package store keeps a history of normalized trees ("snapshots") so that
// the shape of a member's downline can be compared over time.
//
// Two backends exist: [BoltStore], a single local file used by the CLI, and
// [MongoStore], shared by server replicas.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/finobytes/maxreward/pkg/referral"
)

// ErrSnapshotNotFound is returned by Get for an unknown id.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot is one normalized tree as it looked at CreatedAt.
type Snapshot struct {
	ID          string             `json:"id"`
	MemberID    string             `json:"member_id"`
	CreatedAt   time.Time          `json:"created_at"`
	PayloadHash string             `json:"payload_hash"`
	Summary     referral.Summary   `json:"summary"`
	Rejected    int                `json:"rejected"`
	Unreachable int                `json:"unreachable"`
	Tree        *referral.TreeNode `json:"tree,omitempty"`
}

// Store persists snapshots.
//
// List returns the newest snapshots first, without their trees; an empty
// memberID lists every member. A limit of zero or less means no limit.
type Store interface {
	Save(ctx context.Context, s *Snapshot) error
	Get(ctx context.Context, id string) (*Snapshot, error)
	List(ctx context.Context, memberID string, limit int) ([]*Snapshot, error)
	Close() error
}

// NewSnapshot builds a snapshot for a normalized tree and its report.
// The id is a UUIDv7, so ids sort by creation time.
func NewSnapshot(memberID, payloadHash string, tree *referral.TreeNode, rep referral.Report) *Snapshot {
	return &Snapshot{
		ID:          newID(),
		MemberID:    memberID,
		CreatedAt:   time.Now().UTC(),
		PayloadHash: payloadHash,
		Summary:     referral.Summarize(tree),
		Rejected:    rep.Rejected(),
		Unreachable: rep.Unreachable(),
		Tree:        tree,
	}
}

// prepare fills in the id and timestamp of a snapshot that lacks them.
func prepare(s *Snapshot) {
	if s.ID == "" {
		s.ID = newID()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NullStore discards snapshots. It backs the "none" backend.
type NullStore struct{}

func (NullStore) Save(context.Context, *Snapshot) error { return nil }

func (NullStore) Get(context.Context, string) (*Snapshot, error) {
	return nil, ErrSnapshotNotFound
}

func (NullStore) List(context.Context, string, int) ([]*Snapshot, error) { return nil, nil }

func (NullStore) Close() error { return nil }

var _ Store = NullStore{}
