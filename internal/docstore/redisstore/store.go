// Package redisstore implements the document store contract on Redis.
// Documents live in hashes with JSON-encoded field values, ordered queries
// walk sorted-set indexes declared per collection, and change notifications
// ride pub/sub channels so subscriptions can re-run their queries.
package redisstore

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/swiglabs/swigboard/internal/docstore"
)

// Collection declares the indexing schema of one collection.
type Collection struct {
	// Name is the collection path pattern. Nested collections use "*" for
	// parent id segments, e.g. "events/*/comments".
	Name string
	// OrderFields lists the numeric fields that carry an ordering index.
	// Documents missing an order field are invisible to queries ordered on it.
	OrderFields []string
	// PartitionField optionally names one field whose values get their own
	// per-value ordering indexes, serving equality-filtered queries. The
	// field is treated as write-once.
	PartitionField string
}

// Store implements docstore.Store on a single Redis instance.
type Store struct {
	client   rueidis.Client
	logger   *zap.Logger
	schema   map[string]Collection
	setUnion *rueidis.Lua
	setDiff  *rueidis.Lua
	batch    *rueidis.Lua
}

var _ docstore.Store = (*Store)(nil)

// New creates a store over the given client with the declared collections.
func New(client rueidis.Client, logger *zap.Logger, collections ...Collection) *Store {
	schema := make(map[string]Collection, len(collections))
	for _, c := range collections {
		schema[c.Name] = c
	}

	return &Store{
		client:   client,
		logger:   logger.Named("docstore"),
		schema:   schema,
		setUnion: rueidis.NewLuaScript(setUnionScript),
		setDiff:  rueidis.NewLuaScript(setDifferenceScript),
		batch:    rueidis.NewLuaScript(batchScript),
	}
}

// Get implements docstore.Store.
func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	doc, err := s.fetch(ctx, collection, id)
	if err != nil {
		return docstore.Document{}, err
	}

	return doc, nil
}

// Add implements docstore.Store.
func (s *Store) Add(ctx context.Context, collection, id string, fields docstore.Fields) (string, error) {
	col, err := s.collectionFor(collection)
	if err != nil {
		return "", err
	}

	if id == "" {
		id = uuid.NewString()
	}

	enc, err := encodeFields(fields)
	if err != nil {
		return "", err
	}

	if err := s.writeHash(ctx, docKey(collection, id), enc); err != nil {
		return "", docstore.NewTransportError("add", err)
	}

	partValue := stringValue(fields[col.PartitionField])
	for _, field := range col.OrderFields {
		value, ok := fields[field]
		if !ok {
			continue
		}

		score, ok := toScore(value)
		if !ok {
			continue
		}

		if err := s.indexAdd(ctx, collection, col, partValue, field, score, id); err != nil {
			return "", err
		}
	}

	s.publish(ctx, collection)

	return id, nil
}

// Update implements docstore.Store.
func (s *Store) Update(
	ctx context.Context, collection, id string, fields docstore.Fields, ops ...docstore.Op,
) error {
	col, err := s.collectionFor(collection)
	if err != nil {
		return err
	}

	key := docKey(collection, id)

	exists, err := s.client.Do(ctx, s.client.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return docstore.NewTransportError("update", err)
	}

	if exists == 0 {
		return docstore.ErrNotFound
	}

	partValue, err := s.partitionValue(ctx, key, col, fields)
	if err != nil {
		return err
	}

	if len(fields) > 0 {
		enc, err := encodeFields(fields)
		if err != nil {
			return err
		}

		if err := s.writeHash(ctx, key, enc); err != nil {
			return docstore.NewTransportError("update", err)
		}

		for _, field := range col.OrderFields {
			value, ok := fields[field]
			if !ok {
				continue
			}

			score, ok := toScore(value)
			if !ok {
				continue
			}

			if err := s.indexAdd(ctx, collection, col, partValue, field, score, id); err != nil {
				return err
			}
		}
	}

	for _, op := range ops {
		if err := s.applyOp(ctx, collection, col, key, id, partValue, op); err != nil {
			return err
		}
	}

	s.publish(ctx, collection)

	return nil
}

// applyOp executes one atomic field operation against a document hash.
func (s *Store) applyOp(
	ctx context.Context, collection string, col Collection, key, id, partValue string, op docstore.Op,
) error {
	switch op.Kind {
	case docstore.OpIncrement:
		updated, err := s.client.Do(ctx,
			s.client.B().Hincrby().Key(key).Field(op.Field).Increment(op.Delta).Build(),
		).AsInt64()
		if err != nil {
			return docstore.NewTransportError("update", err)
		}

		if slices.Contains(col.OrderFields, op.Field) {
			return s.indexAdd(ctx, collection, col, partValue, op.Field, float64(updated), id)
		}

	case docstore.OpSetUnion:
		args := append([]string{op.Field}, op.Values...)
		if err := s.setUnion.Exec(ctx, s.client, []string{key}, args).Error(); err != nil {
			return docstore.NewTransportError("update", err)
		}

	case docstore.OpSetDifference:
		args := append([]string{op.Field}, op.Values...)
		if err := s.setDiff.Exec(ctx, s.client, []string{key}, args).Error(); err != nil {
			return docstore.NewTransportError("update", err)
		}

	case docstore.OpDeleteField:
		if err := s.client.Do(ctx, s.client.B().Hdel().Key(key).Field(op.Field).Build()).Error(); err != nil {
			return docstore.NewTransportError("update", err)
		}

		if slices.Contains(col.OrderFields, op.Field) {
			return s.indexRemove(ctx, collection, col, partValue, op.Field, id)
		}
	}

	return nil
}

// Delete implements docstore.Store.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	col, err := s.collectionFor(collection)
	if err != nil {
		return err
	}

	key := docKey(collection, id)

	exists, err := s.client.Do(ctx, s.client.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return docstore.NewTransportError("delete", err)
	}

	if exists == 0 {
		return docstore.ErrNotFound
	}

	partValue, err := s.partitionValue(ctx, key, col, nil)
	if err != nil {
		return err
	}

	if err := s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error(); err != nil {
		return docstore.NewTransportError("delete", err)
	}

	for _, field := range col.OrderFields {
		if err := s.indexRemove(ctx, collection, col, partValue, field, id); err != nil {
			return err
		}
	}

	s.publish(ctx, collection)

	return nil
}

// ApplyBatch implements docstore.Store. All writes are committed inside a
// single Lua script so readers never observe a partially applied batch.
func (s *Store) ApplyBatch(ctx context.Context, writes []docstore.Write) error {
	if len(writes) == 0 {
		return docstore.ErrEmptyBatch
	}

	payload := make([]batchWrite, 0, len(writes))
	touched := make(map[string]struct{})

	for _, w := range writes {
		col, err := s.collectionFor(w.Collection)
		if err != nil {
			return err
		}

		enc, err := encodeFields(w.Fields)
		if err != nil {
			return err
		}

		entry := batchWrite{Key: docKey(w.Collection, w.ID), Fields: enc}

		partValue, err := s.partitionValue(ctx, entry.Key, col, w.Fields)
		if err != nil {
			return err
		}

		for _, field := range col.OrderFields {
			value, ok := w.Fields[field]
			if !ok {
				continue
			}

			score, ok := toScore(value)
			if !ok {
				continue
			}

			entry.Index = append(entry.Index, batchIndex{
				Key:    indexKey(w.Collection, field),
				Score:  score,
				Member: w.ID,
			})
			if partValue != "" {
				entry.Index = append(entry.Index, batchIndex{
					Key:    partitionIndexKey(w.Collection, col.PartitionField, partValue, field),
					Score:  score,
					Member: w.ID,
				})
			}
		}

		payload = append(payload, entry)
		touched[w.Collection] = struct{}{}
	}

	raw, err := sonic.MarshalString(payload)
	if err != nil {
		return fmt.Errorf("failed to encode batch payload: %w", err)
	}

	if err := s.batch.Exec(ctx, s.client, []string{}, []string{raw}).Error(); err != nil {
		return docstore.NewTransportError("batch", err)
	}

	for collection := range touched {
		s.publish(ctx, collection)
	}

	return nil
}

// Close implements docstore.Store.
func (s *Store) Close() {
	s.client.Close()
}

// batchWrite is one entry of the batch script payload.
type batchWrite struct {
	Key    string            `json:"key"`
	Fields map[string]string `json:"fields"`
	Index  []batchIndex      `json:"index,omitempty"`
}

// batchIndex is one ordering-index entry maintained by the batch script.
type batchIndex struct {
	Key    string  `json:"key"`
	Score  float64 `json:"score"`
	Member string  `json:"member"`
}

// fetch loads and decodes one document hash.
func (s *Store) fetch(ctx context.Context, collection, id string) (docstore.Document, error) {
	raw, err := s.client.Do(ctx, s.client.B().Hgetall().Key(docKey(collection, id)).Build()).AsStrMap()
	if err != nil {
		return docstore.Document{}, docstore.NewTransportError("get", err)
	}

	if len(raw) == 0 {
		return docstore.Document{}, docstore.ErrNotFound
	}

	return decodeDocument(id, raw), nil
}

// writeHash applies an encoded field patch to a document hash.
func (s *Store) writeHash(ctx context.Context, key string, enc map[string]string) error {
	cmd := s.client.B().Hset().Key(key).FieldValue()
	for field, value := range enc {
		cmd = cmd.FieldValue(field, value)
	}

	return s.client.Do(ctx, cmd.Build()).Error()
}

// partitionValue resolves the partition field value of a document, preferring
// the value in the pending patch over the stored one.
func (s *Store) partitionValue(
	ctx context.Context, key string, col Collection, fields docstore.Fields,
) (string, error) {
	if col.PartitionField == "" {
		return "", nil
	}

	if v, ok := fields[col.PartitionField]; ok {
		return stringValue(v), nil
	}

	resp := s.client.Do(ctx, s.client.B().Hget().Key(key).Field(col.PartitionField).Build())
	raw, err := resp.ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return "", nil
		}

		return "", docstore.NewTransportError("update", err)
	}

	var value string
	if err := sonic.UnmarshalString(raw, &value); err != nil {
		return "", fmt.Errorf("failed to decode partition field %s: %w", col.PartitionField, err)
	}

	return value, nil
}

// indexAdd upserts a document into the ordering indexes of one field.
func (s *Store) indexAdd(
	ctx context.Context, collection string, col Collection, partValue, field string, score float64, id string,
) error {
	keys := []string{indexKey(collection, field)}
	if partValue != "" {
		keys = append(keys, partitionIndexKey(collection, col.PartitionField, partValue, field))
	}

	for _, key := range keys {
		err := s.client.Do(ctx,
			s.client.B().Zadd().Key(key).ScoreMember().ScoreMember(score, id).Build(),
		).Error()
		if err != nil {
			return docstore.NewTransportError("index", err)
		}
	}

	return nil
}

// indexRemove drops a document from the ordering indexes of one field.
func (s *Store) indexRemove(
	ctx context.Context, collection string, col Collection, partValue, field, id string,
) error {
	keys := []string{indexKey(collection, field)}
	if partValue != "" {
		keys = append(keys, partitionIndexKey(collection, col.PartitionField, partValue, field))
	}

	for _, key := range keys {
		err := s.client.Do(ctx, s.client.B().Zrem().Key(key).Member(id).Build()).Error()
		if err != nil {
			return docstore.NewTransportError("index", err)
		}
	}

	return nil
}

// publish notifies subscribers that a collection changed. Notification
// failures are logged and swallowed since the write itself succeeded.
func (s *Store) publish(ctx context.Context, collection string) {
	err := s.client.Do(ctx,
		s.client.B().Publish().Channel(channelFor(collection)).Message(collection).Build(),
	).Error()
	if err != nil {
		s.logger.Warn("Failed to publish change notification",
			zap.String("collection", collection),
			zap.Error(err))
	}
}

// collectionFor resolves the schema entry of a collection path.
func (s *Store) collectionFor(path string) (Collection, error) {
	col, ok := s.schema[patternFor(path)]
	if !ok {
		return Collection{}, fmt.Errorf("unknown collection %q", path)
	}

	return col, nil
}

// patternFor normalizes a collection path by wildcarding parent id segments,
// so "events/abc123/comments" maps to the "events/*/comments" schema.
func patternFor(path string) string {
	segments := strings.Split(path, "/")
	for i := 1; i < len(segments); i += 2 {
		segments[i] = "*"
	}

	return strings.Join(segments, "/")
}

func docKey(collection, id string) string {
	return "doc:" + collection + ":" + id
}

func indexKey(collection, field string) string {
	return "idx:" + collection + ":" + field
}

func partitionIndexKey(collection, partField, value, field string) string {
	return "idx:" + collection + ":" + partField + "=" + value + ":" + field
}

func channelFor(collection string) string {
	return "chg:" + patternFor(collection)
}

// encodeFields JSON-encodes every field value for hash storage. Integer
// fields written by the services stay plain decimals so increments remain
// native HINCRBY operations.
func encodeFields(fields docstore.Fields) (map[string]string, error) {
	enc := make(map[string]string, len(fields))

	for field, value := range fields {
		raw, err := sonic.MarshalString(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode field %s: %w", field, err)
		}

		enc[field] = raw
	}

	return enc, nil
}

// decodeDocument rebuilds a document from its hash representation. Dotted
// hash fields fold back into nested maps, so "reactions.🍻" lands under the
// "reactions" field.
func decodeDocument(id string, raw map[string]string) docstore.Document {
	fields := make(map[string]any, len(raw))

	for name, value := range raw {
		if strings.Contains(name, ".") {
			continue
		}

		fields[name] = decodeValue(value)
	}

	for name, value := range raw {
		parent, child, ok := strings.Cut(name, ".")
		if !ok {
			continue
		}

		nested, _ := fields[parent].(map[string]any)
		if nested == nil {
			nested = make(map[string]any)
			fields[parent] = nested
		}

		nested[child] = decodeValue(value)
	}

	return docstore.Document{ID: id, Fields: fields}
}

// decodeValue decodes one JSON-encoded hash value, tolerating stray plain
// strings from manual edits.
func decodeValue(raw string) any {
	var value any
	if err := sonic.UnmarshalString(raw, &value); err != nil {
		return raw
	}

	return value
}

// toScore converts a numeric field value to an index score.
func toScore(value any) (float64, bool) {
	switch n := value.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// stringValue extracts a string field value, returning "" for anything else.
func stringValue(value any) string {
	s, _ := value.(string)
	return s
}
