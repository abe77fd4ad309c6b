package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"docrag/internal/domain"
)

var (
	bucketDocs      = []byte("docs")
	bucketDocPaths  = []byte("doc_paths")
	bucketChunks    = []byte("chunks")
	bucketVectors   = []byte("vectors")
	bucketDocChunks = []byte("doc_chunks")
	bucketMeta      = []byte("meta")

	dataBuckets = [][]byte{bucketDocs, bucketDocPaths, bucketChunks, bucketVectors, bucketDocChunks}
)

// BoltStore persists the corpus in a single bbolt file. Document and chunk
// IDs come from bucket sequences and are stored as big-endian keys, so
// iteration follows insertion order.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range append(dataBuckets, bucketMeta) {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

type docMeta struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	ModTime   int64  `json:"mod_time"`
	CreatedAt int64  `json:"created_at"`
}

type chunkMeta struct {
	DocID       int64  `json:"doc_id"`
	Index       int    `json:"index"`
	Text        string `json:"text"`
	StartOffset int    `json:"start"`
	EndOffset   int    `json:"end"`
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func btoi(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

// SaveDocument registers doc and returns its new ID. A document already
// stored under the same path is removed first, chunks included, in the same
// transaction.
func (s *BoltStore) SaveDocument(ctx context.Context, doc domain.Document) (int64, error) {
	var id int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		paths := tx.Bucket(bucketDocPaths)
		if old := paths.Get([]byte(doc.Path)); old != nil {
			if err := deleteDocument(tx, btoi(old)); err != nil {
				return err
			}
		}

		docs := tx.Bucket(bucketDocs)
		seq, err := docs.NextSequence()
		if err != nil {
			return err
		}
		id = int64(seq)

		createdAt := doc.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		data, err := json.Marshal(docMeta{
			Path:      doc.Path,
			Name:      doc.Name,
			ModTime:   doc.ModTime.Unix(),
			CreatedAt: createdAt.Unix(),
		})
		if err != nil {
			return err
		}
		if err := docs.Put(itob(id), data); err != nil {
			return err
		}
		return paths.Put([]byte(doc.Path), itob(id))
	})
	if err != nil {
		return 0, fmt.Errorf("save document %s: %w", doc.Path, err)
	}
	return id, nil
}

func deleteDocument(tx *bbolt.Tx, docID int64) error {
	docs := tx.Bucket(bucketDocs)
	chunks := tx.Bucket(bucketChunks)
	vectors := tx.Bucket(bucketVectors)
	docChunks := tx.Bucket(bucketDocChunks)

	prefix := itob(docID)
	var keys [][]byte
	c := docChunks.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		chunkKey := k[8:]
		if err := chunks.Delete(chunkKey); err != nil {
			return err
		}
		if err := vectors.Delete(chunkKey); err != nil {
			return err
		}
		if err := docChunks.Delete(k); err != nil {
			return err
		}
	}

	if data := docs.Get(prefix); data != nil {
		var meta docMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return fmt.Errorf("decode document %d: %w", docID, err)
		}
		if err := tx.Bucket(bucketDocPaths).Delete([]byte(meta.Path)); err != nil {
			return err
		}
	}
	return docs.Delete(prefix)
}

// SaveChunk stores a chunk and its encoded vector under documentID.
func (s *BoltStore) SaveChunk(ctx context.Context, documentID int64, chunk domain.Chunk, vector []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketDocs).Get(itob(documentID)) == nil {
			return fmt.Errorf("document not found: %d", documentID)
		}

		chunks := tx.Bucket(bucketChunks)
		seq, err := chunks.NextSequence()
		if err != nil {
			return err
		}
		key := itob(int64(seq))

		data, err := json.Marshal(chunkMeta{
			DocID:       documentID,
			Index:       chunk.Index,
			Text:        chunk.Text,
			StartOffset: chunk.StartOffset,
			EndOffset:   chunk.EndOffset,
		})
		if err != nil {
			return err
		}
		if err := chunks.Put(key, data); err != nil {
			return err
		}
		if err := tx.Bucket(bucketVectors).Put(key, vector); err != nil {
			return err
		}
		return tx.Bucket(bucketDocChunks).Put(append(itob(documentID), key...), nil)
	})
	if err != nil {
		return fmt.Errorf("save chunk %d of document %d: %w", chunk.Index, documentID, err)
	}
	return nil
}

// AllChunks returns every committed chunk with its document and vector, in
// insertion order.
func (s *BoltStore) AllChunks(ctx context.Context) ([]domain.StoredChunk, error) {
	var out []domain.StoredChunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		docs := tx.Bucket(bucketDocs)
		vectors := tx.Bucket(bucketVectors)
		docCache := make(map[int64]docMeta)

		c := tx.Bucket(bucketChunks).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var meta chunkMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return fmt.Errorf("corrupt chunk %d: %w", btoi(k), err)
			}

			doc, ok := docCache[meta.DocID]
			if !ok {
				if data := docs.Get(itob(meta.DocID)); data != nil {
					if err := json.Unmarshal(data, &doc); err != nil {
						return fmt.Errorf("corrupt document %d: %w", meta.DocID, err)
					}
				}
				docCache[meta.DocID] = doc
			}

			// bbolt memory is only valid inside the transaction.
			vec := append([]byte(nil), vectors.Get(k)...)

			out = append(out, domain.StoredChunk{
				ChunkID:    btoi(k),
				DocumentID: meta.DocID,
				FileName:   doc.Name,
				FilePath:   doc.Path,
				Chunk: domain.Chunk{
					Index:       meta.Index,
					Text:        meta.Text,
					StartOffset: meta.StartOffset,
					EndOffset:   meta.EndOffset,
				},
				Vector: vec,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Documents lists stored documents in insertion order.
func (s *BoltStore) Documents(ctx context.Context) ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			var meta docMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return err
			}
			docs = append(docs, domain.Document{
				ID:        btoi(k),
				Path:      meta.Path,
				Name:      meta.Name,
				ModTime:   time.Unix(meta.ModTime, 0),
				CreatedAt: time.Unix(meta.CreatedAt, 0),
			})
			return nil
		})
	})
	return docs, err
}

func (s *BoltStore) DocumentCount(ctx context.Context) (int, error) {
	return s.count(bucketDocs)
}

func (s *BoltStore) ChunkCount(ctx context.Context) (int, error) {
	return s.count(bucketChunks)
}

func (s *BoltStore) count(bucket []byte) (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucket).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
