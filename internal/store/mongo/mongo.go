// Package mongo implements store.Graph on top of MongoDB. It is the only
// package in the core that imports the mongo-driver: every algorithm above
// this layer talks to store.Graph, never to *mongo.Client directly (spec §9,
// "Graph store as implicit shared mutable state" mapping note).
package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bluedotiya/web-crawler/internal/model"
	"github.com/bluedotiya/web-crawler/internal/store"
)

const (
	nodesCollection = "nodes"
	edgesCollection = "edges"
)

// Store is a store.Graph backed by a MongoDB database. Construct once per
// process and share the *Store across goroutines; the driver's Client is
// safe for concurrent use.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Config describes how to reach the backing MongoDB deployment. Fields map
// directly to the STORE_HOST / STORE_USER / STORE_PASSWORD environment
// variables from spec §6.
type Config struct {
	Host     string
	User     string
	Password string
	Database string
}

// URI assembles a mongodb:// connection string from the config.
func (c Config) URI() string {
	if c.User == "" {
		return fmt.Sprintf("mongodb://%s", c.Host)
	}
	return fmt.Sprintf("mongodb://%s:%s@%s", c.User, c.Password, c.Host)
}

// Open connects to MongoDB and ensures the unique index backing invariant 4
// is present on the nodes collection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI()))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	dbName := cfg.Database
	if dbName == "" {
		dbName = "crawler"
	}
	db := client.Database(dbName)

	_, err = db.Collection(nodesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "name", Value: 1},
			{Key: "requested_depth", Value: 1},
			{Key: "search_mode", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("mongo: ensure unique index: %w", err)
	}

	return &Store{client: client, db: db}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// MatchPending implements store.Graph.
func (s *Store) MatchPending(ctx context.Context) (*model.Node, error) {
	coll := s.db.Collection(nodesCollection)

	filter := bson.M{
		"job_status": model.Pending.String(),
		"$expr":      bson.M{"$ne": bson.A{"$current_depth", "$requested_depth"}},
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "label", Value: -1}}) // "URL" sorts after "ROOT"
	var n model.Node
	err := coll.FindOne(ctx, filter, opts).Decode(&n)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: match_pending: %w", err)
	}
	return &n, nil
}

func keyFilter(key model.Key) bson.M {
	return bson.M{
		"name":            key.Name,
		"requested_depth": key.RequestedDepth,
		"search_mode":     string(key.SearchMode),
	}
}

// MatchByKey implements store.Graph.
func (s *Store) MatchByKey(ctx context.Context, key model.Key) (*model.Node, error) {
	var n model.Node
	err := s.db.Collection(nodesCollection).FindOne(ctx, keyFilter(key)).Decode(&n)
	if err == mongo.ErrNoDocuments {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: match_by_key: %w", err)
	}
	return &n, nil
}

// ExistingNames implements store.Graph.
func (s *Store) ExistingNames(ctx context.Context) (map[string]struct{}, error) {
	cur, err := s.db.Collection(nodesCollection).Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"name": 1}))
	if err != nil {
		return nil, fmt.Errorf("mongo: existing_names: %w", err)
	}
	defer cur.Close(ctx)

	names := make(map[string]struct{})
	for cur.Next(ctx) {
		var doc struct {
			Name string `bson:"name"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: existing_names decode: %w", err)
		}
		names[doc.Name] = struct{}{}
	}
	return names, cur.Err()
}

// CreateNode implements store.Graph. The node's _id is a plain string we
// assign ourselves (rather than leaving Mongo to generate an ObjectID),
// since every reader decodes _id straight into model.Node.ID as a string.
func (s *Store) CreateNode(ctx context.Context, n *model.Node) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	_, err := s.db.Collection(nodesCollection).InsertOne(ctx, n)
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("mongo: create_node: %w", err)
	}
	return nil
}

// CreateBatch implements store.Graph. It runs the child inserts and edge
// inserts inside a single session transaction so partial commit is
// impossible (spec invariant 5); a child whose key collides with an
// existing node is skipped within the same transaction rather than failing
// the whole batch, matching the claim-race tolerance in spec §5.
func (s *Store) CreateBatch(ctx context.Context, parent *model.Node, children []*model.Node) ([]string, error) {
	var skipped []string

	session, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("mongo: create_batch start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		skipped = nil
		nodes := s.db.Collection(nodesCollection)
		edges := s.db.Collection(edgesCollection)

		for _, child := range children {
			if existing, ferr := nodes.CountDocuments(sc, keyFilter(child.KeyOf())); ferr != nil {
				return nil, ferr
			} else if existing > 0 {
				skipped = append(skipped, child.Name)
				continue
			}

			if child.ID == "" {
				child.ID = uuid.NewString()
			}
			if _, ierr := nodes.InsertOne(sc, child); ierr != nil {
				if mongo.IsDuplicateKeyError(ierr) {
					skipped = append(skipped, child.Name)
					continue
				}
				return nil, ierr
			}

			if _, ierr := edges.InsertOne(sc, model.Edge{
				ParentID: parent.ID,
				ChildID:  child.ID,
				Label:    model.LeadLabel,
			}); ierr != nil {
				return nil, ierr
			}
		}
		return nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("mongo: create_batch: %w", err)
	}
	return skipped, nil
}

// Push implements store.Graph.
func (s *Store) Push(ctx context.Context, n *model.Node) error {
	_, err := s.db.Collection(nodesCollection).ReplaceOne(ctx, bson.M{"_id": n.ID}, n)
	if err != nil {
		return fmt.Errorf("mongo: push: %w", err)
	}
	return nil
}

// HealthCheck implements store.Graph.
func (s *Store) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.client.Ping(ctx, nil)
}

// Snapshot implements store.Graph.
func (s *Store) Snapshot(ctx context.Context) ([]*model.Node, []model.Edge, error) {
	nodeCur, err := s.db.Collection(nodesCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, nil, fmt.Errorf("mongo: snapshot nodes: %w", err)
	}
	defer nodeCur.Close(ctx)

	var nodes []*model.Node
	for nodeCur.Next(ctx) {
		var n model.Node
		if err := nodeCur.Decode(&n); err != nil {
			return nil, nil, fmt.Errorf("mongo: snapshot decode node: %w", err)
		}
		nodes = append(nodes, &n)
	}
	if err := nodeCur.Err(); err != nil {
		return nil, nil, err
	}

	edgeCur, err := s.db.Collection(edgesCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, nil, fmt.Errorf("mongo: snapshot edges: %w", err)
	}
	defer edgeCur.Close(ctx)

	var edges []model.Edge
	for edgeCur.Next(ctx) {
		var e model.Edge
		if err := edgeCur.Decode(&e); err != nil {
			return nil, nil, fmt.Errorf("mongo: snapshot decode edge: %w", err)
		}
		edges = append(edges, e)
	}
	return nodes, edges, edgeCur.Err()
}
