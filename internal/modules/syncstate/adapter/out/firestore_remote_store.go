package out

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	syncout "studydesk/internal/modules/syncstate/port/out"
)

// FirestoreRemoteStore keeps one document per user. Each field holds the JSON
// text of its value, tagged with jsonTextTag, so nested arrays survive
// Firestore's value model.
type FirestoreRemoteStore struct {
	client     *firestore.Client
	collection string
}

var _ syncout.RemoteStore = (*FirestoreRemoteStore)(nil)

// jsonTextTag marks a string field as JSON text rather than a plain string
// written by another client.
const jsonTextTag = "json:"

func NewFirestoreRemoteStore(ctx context.Context, projectID, collection, credentialsFile string) (*FirestoreRemoteStore, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("open firestore: %w", err)
	}
	return &FirestoreRemoteStore{client: client, collection: collection}, nil
}

func (s *FirestoreRemoteStore) Load(ctx context.Context, userID string) (syncout.Fields, error) {
	snap, err := s.client.Collection(s.collection).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return syncout.Fields{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", userID, err)
	}
	return decodeFirestoreDocument(snap.Data())
}

func (s *FirestoreRemoteStore) Save(ctx context.Context, userID string, fields syncout.Fields) error {
	if len(fields) == 0 {
		return nil
	}
	data := make(map[string]any, len(fields))
	for name, value := range fields {
		data[name] = jsonTextTag + string(value)
	}
	if _, err := s.client.Collection(s.collection).Doc(userID).Set(ctx, data, firestore.MergeAll); err != nil {
		return fmt.Errorf("save document %s: %w", userID, err)
	}
	return nil
}

func (s *FirestoreRemoteStore) Close() error {
	return s.client.Close()
}

// decodeFirestoreDocument accepts tagged JSON-text fields and native values
// written by other clients. A native string stays a string even when it
// parses as JSON; untagged arrays and objects are read as JSON text from
// documents written before tagging.
func decodeFirestoreDocument(data map[string]any) (syncout.Fields, error) {
	fields := make(syncout.Fields, len(data))
	for name, value := range data {
		if text, ok := value.(string); ok {
			if raw, isJSON := firestoreJSONText(text); isJSON {
				fields[name] = raw
				continue
			}
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", name, err)
		}
		fields[name] = encoded
	}
	return fields, nil
}

func firestoreJSONText(text string) (json.RawMessage, bool) {
	if body, tagged := strings.CutPrefix(text, jsonTextTag); tagged && json.Valid([]byte(body)) {
		return json.RawMessage(body), true
	}
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		if json.Valid([]byte(trimmed)) {
			return json.RawMessage(trimmed), true
		}
	}
	return nil, false
}
