// Package memory implements episodic memory: a SQLite-backed chunk
// store with a full-text index and a brute-force vector index, hybrid
// BM25+vector search with temporal decay and MMR re-ranking, a
// memory-flush hook handler that chunks and scores conversation
// history, and the memory_search/memory_get tools exposed to agents.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/agentplane/core/pkg/models"
)

// Store persists memory chunks in SQLite: a primary table with
// secondary indexes on agent/session/created/importance/source, an
// FTS5 shadow table kept in sync by triggers, and embeddings stored as
// IEEE-754 float32 blobs scanned brute-force at query time.
type Store struct {
	db        *sql.DB
	dimension int
}

// StoreConfig configures the chunk store.
type StoreConfig struct {
	Path      string // "" or ":memory:" for an in-memory database
	Dimension int    // expected embedding width; 0 disables the check
}

// NewStore opens (creating if absent) the chunk store at cfg.Path.
func NewStore(cfg StoreConfig) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}
	s := &Store{db: db, dimension: cfg.Dimension}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	stmts := []string{
		// WAL mode lets readers (search) proceed while a flush writes;
		// busy_timeout backs off instead of failing fast under contention.
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			content TEXT NOT NULL,
			importance REAL NOT NULL,
			token_count INTEGER NOT NULL,
			source_type TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			metadata TEXT,
			embedding BLOB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_agent ON chunks(agent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_session ON chunks(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_created ON chunks(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_importance ON chunks(importance)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source_type)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
			content, content='chunks', content_rowid='rowid'
		)`,
		`CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
			INSERT INTO chunks_fts(rowid, content) VALUES (new.rowid, new.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
			INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS chunks_au AFTER UPDATE ON chunks BEGIN
			INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
			INSERT INTO chunks_fts(rowid, content) VALUES (new.rowid, new.content);
		END`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init memory store: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Upsert writes chunks, minting IDs and timestamps where absent and
// clamping importance to [0,1].
func (s *Store) Upsert(ctx context.Context, chunks []models.MemoryChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks
			(id, agent_id, session_id, content, importance, token_count, source_type, chunk_index, created_at, metadata, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		c := &chunks[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now()
		}
		c.Importance = models.ClampImportance(c.Importance)
		if s.dimension > 0 && len(c.Embedding) > 0 && len(c.Embedding) != s.dimension {
			return fmt.Errorf("upsert chunk %s: embedding has %d dimensions, store expects %d", c.ID, len(c.Embedding), s.dimension)
		}

		metadata, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.AgentID, c.SessionID, c.Content, c.Importance, c.TokenCount,
			c.SourceType, c.ChunkIndex, c.CreatedAt, string(metadata), encodeEmbedding(c.Embedding),
		); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Get returns a single chunk by ID.
func (s *Store) Get(ctx context.Context, id string) (*models.MemoryChunk, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, agent_id, session_id, content, importance, token_count, source_type, chunk_index, created_at, metadata, embedding
		FROM chunks WHERE id = ?`, id)
	return scanChunk(row)
}

// candidateFilter scopes candidate retrieval for both BM25 and vector
// passes; every filter is applied in SQL before fusion.
type candidateFilter struct {
	AgentID       string
	SessionID     string
	MinImportance float64
	DateFrom      time.Time
	DateTo        time.Time
}

func (f candidateFilter) where() (string, []any) {
	clause := "WHERE 1=1"
	var args []any
	if f.AgentID != "" {
		clause += " AND agent_id = ?"
		args = append(args, f.AgentID)
	}
	if f.SessionID != "" {
		clause += " AND session_id = ?"
		args = append(args, f.SessionID)
	}
	if f.MinImportance > 0 {
		clause += " AND importance >= ?"
		args = append(args, f.MinImportance)
	}
	if !f.DateFrom.IsZero() {
		clause += " AND created_at >= ?"
		args = append(args, f.DateFrom)
	}
	if !f.DateTo.IsZero() {
		clause += " AND created_at <= ?"
		args = append(args, f.DateTo)
	}
	return clause, args
}

// bm25Candidates runs the FTS5 match and returns chunks scored by their
// negated bm25() rank (bm25() is lower for more relevant rows, so the
// negation makes higher better; the caller normalizes).
func (s *Store) bm25Candidates(ctx context.Context, query string, filter candidateFilter, limit int) ([]scoredChunk, error) {
	if query == "" {
		return nil, nil
	}
	where, args := filter.where()
	sqlQuery := fmt.Sprintf(`
		SELECT c.id, c.agent_id, c.session_id, c.content, c.importance, c.token_count,
			c.source_type, c.chunk_index, c.created_at, c.metadata, c.embedding,
			bm25(chunks_fts) AS rank
		FROM chunks_fts
		JOIN chunks c ON c.rowid = chunks_fts.rowid
		%s AND chunks_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, where)
	args = append(args, query, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("bm25 search: %w", err)
	}
	defer rows.Close()

	var out []scoredChunk
	for rows.Next() {
		chunk, rank, err := scanRankedChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, scoredChunk{Chunk: *chunk, Score: -rank})
	}
	return out, rows.Err()
}

// allCandidates returns every chunk matching filter, used as the
// vector-search candidate pool (brute-force cosine similarity scan).
func (s *Store) allCandidates(ctx context.Context, filter candidateFilter) ([]models.MemoryChunk, error) {
	where, args := filter.where()
	sqlQuery := fmt.Sprintf(`
		SELECT id, agent_id, session_id, content, importance, token_count, source_type, chunk_index, created_at, metadata, embedding
		FROM chunks %s`, where)
	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("scan candidates: %w", err)
	}
	defer rows.Close()

	var out []models.MemoryChunk
	for rows.Next() {
		chunk, err := scanChunkRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *chunk)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row *sql.Row) (*models.MemoryChunk, error) {
	return scanChunkGeneric(row)
}

func scanChunkRow(row rowScanner) (*models.MemoryChunk, error) {
	return scanChunkGeneric(row)
}

func scanChunkGeneric(row rowScanner) (*models.MemoryChunk, error) {
	var c models.MemoryChunk
	var metadataJSON sql.NullString
	var embeddingBlob []byte
	err := row.Scan(
		&c.ID, &c.AgentID, &c.SessionID, &c.Content, &c.Importance, &c.TokenCount,
		&c.SourceType, &c.ChunkIndex, &c.CreatedAt, &metadataJSON, &embeddingBlob,
	)
	if err != nil {
		return nil, fmt.Errorf("scan chunk: %w", err)
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &c.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	c.Embedding = decodeEmbedding(embeddingBlob)
	return &c, nil
}

func scanRankedChunk(row rowScanner) (*models.MemoryChunk, float64, error) {
	var c models.MemoryChunk
	var metadataJSON sql.NullString
	var embeddingBlob []byte
	var rank float64
	err := row.Scan(
		&c.ID, &c.AgentID, &c.SessionID, &c.Content, &c.Importance, &c.TokenCount,
		&c.SourceType, &c.ChunkIndex, &c.CreatedAt, &metadataJSON, &embeddingBlob, &rank,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("scan ranked chunk: %w", err)
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &c.Metadata); err != nil {
			return nil, 0, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	c.Embedding = decodeEmbedding(embeddingBlob)
	return &c, rank, nil
}

// scoredChunk pairs a chunk with a relevance score from a single
// candidate source (BM25 or vector), before fusion.
type scoredChunk struct {
	Chunk models.MemoryChunk
	Score float64
}

func encodeEmbedding(embedding []float32) []byte {
	if len(embedding) == 0 {
		return nil
	}
	data := make([]byte, len(embedding)*4)
	for i, f := range embedding {
		bits := math.Float32bits(f)
		data[i*4] = byte(bits)
		data[i*4+1] = byte(bits >> 8)
		data[i*4+2] = byte(bits >> 16)
		data[i*4+3] = byte(bits >> 24)
	}
	return data
}

func decodeEmbedding(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		bits := uint32(data[i*4]) |
			uint32(data[i*4+1])<<8 |
			uint32(data[i*4+2])<<16 |
			uint32(data[i*4+3])<<24
		embedding[i] = math.Float32frombits(bits)
	}
	return embedding
}
