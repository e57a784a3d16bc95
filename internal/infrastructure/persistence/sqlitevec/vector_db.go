// Package sqlitevec implements the vector database on SQLite. Embeddings are
// packed as little-endian float32 blobs; similarity is computed in process,
// which is plenty for the corpus sizes a single tenant carries.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"sort"

	_ "modernc.org/sqlite"

	"antbox-backend/internal/infrastructure/persistence/memory"
	"antbox-backend/internal/repository"
	apperrors "antbox-backend/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS node_vectors (
	tenant    TEXT NOT NULL,
	node_uuid TEXT NOT NULL,
	vector    BLOB NOT NULL,
	PRIMARY KEY (tenant, node_uuid)
);`

// VectorDB stores one embedding per node in a SQLite database.
type VectorDB struct {
	db *sql.DB
}

// Open opens (and if needed creates) the database at path. The special
// ":memory:" path keeps everything in process for tests.
func Open(path string) (*VectorDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.Wrap(err, "opening vector database")
	}
	// The driver is not safe for concurrent writers on one connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, "creating vector schema")
	}
	return &VectorDB{db: db}, nil
}

// Close releases the underlying database.
func (v *VectorDB) Close() error {
	return v.db.Close()
}

var _ repository.VectorDB = (*VectorDB)(nil)

// Upsert writes the node's embedding, replacing any previous one.
func (v *VectorDB) Upsert(ctx context.Context, tenant string, entry repository.VectorEntry) error {
	_, err := v.db.ExecContext(ctx,
		`INSERT INTO node_vectors (tenant, node_uuid, vector) VALUES (?, ?, ?)
		 ON CONFLICT (tenant, node_uuid) DO UPDATE SET vector = excluded.vector`,
		tenant, entry.NodeUUID, packVector(entry.Vector))
	if err != nil {
		return apperrors.Wrap(err, "storing vector")
	}
	return nil
}

// DeleteByNodeUUID removes the node's embedding; deleting an absent uuid is
// a no-op because deletion races with indexing on the event bus.
func (v *VectorDB) DeleteByNodeUUID(ctx context.Context, tenant, uuid string) error {
	_, err := v.db.ExecContext(ctx,
		`DELETE FROM node_vectors WHERE tenant = ? AND node_uuid = ?`,
		tenant, uuid)
	if err != nil {
		return apperrors.Wrap(err, "deleting vector")
	}
	return nil
}

// Search scans the tenant's vectors and returns the topK nearest by cosine
// similarity, score descending with uuid as the tie break.
func (v *VectorDB) Search(ctx context.Context, tenant string, vector []float32, topK int) ([]repository.VectorMatch, error) {
	rows, err := v.db.QueryContext(ctx,
		`SELECT node_uuid, vector FROM node_vectors WHERE tenant = ?`, tenant)
	if err != nil {
		return nil, apperrors.Wrap(err, "scanning vectors")
	}
	defer rows.Close()

	matches := make([]repository.VectorMatch, 0)
	for rows.Next() {
		var uuid string
		var blob []byte
		if err := rows.Scan(&uuid, &blob); err != nil {
			return nil, apperrors.Wrap(err, "reading vector row")
		}
		matches = append(matches, repository.VectorMatch{
			NodeUUID: uuid,
			Score:    memory.CosineScore(vector, unpackVector(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "scanning vectors")
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].NodeUUID < matches[j].NodeUUID
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func packVector(vector []float32) []byte {
	blob := make([]byte, 4*len(vector))
	for i, f := range vector {
		binary.LittleEndian.PutUint32(blob[4*i:], math.Float32bits(f))
	}
	return blob
}

func unpackVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[4*i:]))
	}
	return vector
}
