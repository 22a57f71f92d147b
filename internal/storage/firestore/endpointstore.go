// Package firestore persists resolved push endpoints in Cloud Firestore.
package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
)

const defaultCollection = "push-endpoints"

// EndpointStore implements dispatch.EndpointStore.
// Layout: {collection}/{sha256(device_type, token)}.
type EndpointStore struct {
	client     *firestore.Client
	collection string
}

func NewEndpointStore(client *firestore.Client, collection string) *EndpointStore {
	if collection == "" {
		collection = defaultCollection
	}
	return &EndpointStore{client: client, collection: collection}
}

func (s *EndpointStore) Get(ctx context.Context, key dispatch.EndpointKey) (*dispatch.EndpointRecord, error) {
	snap, err := s.ref(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, dispatch.ErrEndpointNotFound
		}
		return nil, fmt.Errorf("firestore get failed: %w", err)
	}

	var rec dispatch.EndpointRecord
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("corrupt endpoint record %s: %w", snap.Ref.ID, err)
	}
	return &rec, nil
}

func (s *EndpointStore) Put(ctx context.Context, record dispatch.EndpointRecord) error {
	key := record.Key()
	if _, err := s.ref(key).Set(ctx, record); err != nil {
		return fmt.Errorf("firestore set failed: %w", err)
	}
	return nil
}

func (s *EndpointStore) Delete(ctx context.Context, key dispatch.EndpointKey) error {
	if _, err := s.ref(key).Delete(ctx); err != nil {
		return fmt.Errorf("firestore delete failed: %w", err)
	}
	return nil
}

func (s *EndpointStore) ref(key dispatch.EndpointKey) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(docID(key))
}

// docID hashes the key so tokens can hold characters Firestore forbids in
// document ids.
func docID(key dispatch.EndpointKey) string {
	sum := sha256.Sum256([]byte(key.DeviceType + "\x00" + key.Token))
	return hex.EncodeToString(sum[:])
}
