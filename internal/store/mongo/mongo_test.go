package mongo

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/bluedotiya/web-crawler/internal/model"
	"github.com/bluedotiya/web-crawler/internal/store"
)

// test that MatchPending decodes a document whose job_status is stored as
// the string name into model.Pending, and its string _id into Node.ID. The
// mock client answers regardless of the query filter, so this pins the
// string wire form of job_status, not the filter's server-side matching.
func TestMatchPendingDecodesStoredStatus(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("finds a pending node", func(mt *mtest.T) {
		s := &Store{client: mt.Client, db: mt.Client.Database("test")}

		doc := bson.D{
			{Key: "_id", Value: "n1"},
			{Key: "label", Value: "URL"},
			{Key: "name", Value: "FOO.BAR"},
			{Key: "http_type", Value: "HTTP://"},
			{Key: "requested_depth", Value: int32(2)},
			{Key: "current_depth", Value: int32(1)},
			{Key: "job_status", Value: model.Pending.String()},
			{Key: "attempts", Value: int32(0)},
			{Key: "search_mode", Value: "normal"},
		}
		first := mtest.CreateCursorResponse(1, "test.nodes", mtest.FirstBatch, doc)
		second := mtest.CreateCursorResponse(0, "test.nodes", mtest.NextBatch)
		mt.AddMockResponses(first, second)

		n, err := s.MatchPending(context.Background())
		if err != nil {
			t.Fatalf("MatchPending: %v", err)
		}
		if n == nil {
			t.Fatalf("expected a node, got nil")
		}
		if n.JobStatus != model.Pending {
			t.Fatalf("expected PENDING, got %v (%d)", n.JobStatus, n.JobStatus)
		}
		if n.ID != "n1" {
			t.Fatalf("expected string id %q, got %q", "n1", n.ID)
		}
	})
}

// test that CreateNode assigns a plain string _id before insert, instead of
// relying on the driver's auto-generated ObjectID.
func TestCreateNodeAssignsStringID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("assigns an id without touching InsertedID", func(mt *mtest.T) {
		s := &Store{client: mt.Client, db: mt.Client.Database("test")}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		n := &model.Node{
			Label:          model.LabelRoot,
			Name:           "FOO.BAR",
			RequestedDepth: 1,
			SearchMode:     model.ModeNormal,
		}
		if err := s.CreateNode(context.Background(), n); err != nil {
			t.Fatalf("CreateNode: %v", err)
		}
		if n.ID == "" {
			t.Fatalf("expected an assigned id")
		}
		if strings.Contains(n.ID, "ObjectID") {
			t.Fatalf("id looks like a stringified ObjectID, not a plain string: %q", n.ID)
		}
	})
}

// test that a duplicate-key write error surfaces as store.ErrDuplicateKey.
func TestCreateNodeDuplicateKey(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("surfaces ErrDuplicateKey", func(mt *mtest.T) {
		s := &Store{client: mt.Client, db: mt.Client.Database("test")}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: test.nodes",
		}))

		n := &model.Node{
			Label:          model.LabelRoot,
			Name:           "FOO.BAR",
			RequestedDepth: 1,
			SearchMode:     model.ModeNormal,
		}
		err := s.CreateNode(context.Background(), n)
		if !errors.Is(err, store.ErrDuplicateKey) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}
	})
}
