package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema — DDL таблиц граф-хранилища.
//
// Узлы и рёбра адресуются парой (tag, key); свойства лежат в JSONB
// и фильтруются оператором @>.
const Schema = `
CREATE TABLE IF NOT EXISTS graph_nodes (
	tag   TEXT NOT NULL,
	key   TEXT NOT NULL,
	label TEXT NOT NULL,
	props JSONB NOT NULL DEFAULT '{}',
	PRIMARY KEY (tag, key)
);
CREATE INDEX IF NOT EXISTS graph_nodes_label_idx ON graph_nodes (tag, label);

CREATE TABLE IF NOT EXISTS graph_edges (
	tag        TEXT NOT NULL,
	key        TEXT NOT NULL,
	source_key TEXT NOT NULL,
	target_key TEXT NOT NULL,
	rel        TEXT NOT NULL,
	props      JSONB NOT NULL DEFAULT '{}',
	PRIMARY KEY (tag, key)
);
CREATE INDEX IF NOT EXISTS graph_edges_source_idx ON graph_edges (tag, source_key);
`

// PG — граф-хранилище поверх PostgreSQL.
type PG struct {
	pool *pgxpool.Pool
}

// NewPG создаёт PG-хранилище.
func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

// Migrate применяет DDL хранилища.
func (s *PG) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate graph schema: %w", err)
	}
	return nil
}

// UpsertNode создаёт или заменяет узел.
func (s *PG) UpsertNode(ctx context.Context, node Node) error {
	props, err := marshalProps(node.Props)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO graph_nodes (tag, key, label, props)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tag, key) DO UPDATE SET label = $3, props = $4
	`
	if _, err := s.pool.Exec(ctx, query, node.Tag, node.Key, node.Label, props); err != nil {
		return fmt.Errorf("upsert node: %w", err)
	}
	return nil
}

// UpsertEdge создаёт или заменяет ребро.
func (s *PG) UpsertEdge(ctx context.Context, edge Edge) error {
	props, err := marshalProps(edge.Props)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO graph_edges (tag, key, source_key, target_key, rel, props)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tag, key) DO UPDATE
		SET source_key = $3, target_key = $4, rel = $5, props = $6
	`
	_, err = s.pool.Exec(ctx, query,
		edge.Tag, edge.Key, edge.SourceKey, edge.TargetKey, edge.Rel, props)
	if err != nil {
		return fmt.Errorf("upsert edge: %w", err)
	}
	return nil
}

// QueryNodes возвращает узлы по фильтру.
func (s *PG) QueryNodes(ctx context.Context, filter NodeFilter) ([]Node, error) {
	query := `
		SELECT tag, key, label, props
		FROM graph_nodes
		WHERE ($1 = '' OR tag = $1)
		  AND ($2 = '' OR label = $2)
		  AND ($3::jsonb IS NULL OR props @> $3)
	`
	var propsFilter []byte
	if len(filter.Props) > 0 {
		var err error
		propsFilter, err = json.Marshal(filter.Props)
		if err != nil {
			return nil, fmt.Errorf("marshal props filter: %w", err)
		}
	}

	rows, err := s.pool.Query(ctx, query, filter.Tag, filter.Label, propsFilter)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var out []Node
	for rows.Next() {
		var node Node
		var props []byte
		if err := rows.Scan(&node.Tag, &node.Key, &node.Label, &props); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		if err := json.Unmarshal(props, &node.Props); err != nil {
			return nil, fmt.Errorf("unmarshal node props: %w", err)
		}
		out = append(out, node)
	}
	return out, rows.Err()
}

// QueryEdges возвращает рёбра по фильтру.
func (s *PG) QueryEdges(ctx context.Context, filter EdgeFilter) ([]Edge, error) {
	query := `
		SELECT tag, key, source_key, target_key, rel, props
		FROM graph_edges
		WHERE ($1 = '' OR tag = $1)
		  AND ($2 = '' OR rel = $2)
		  AND ($3 = '' OR source_key = $3)
		  AND ($4 = '' OR target_key = $4)
	`
	rows, err := s.pool.Query(ctx, query,
		filter.Tag, filter.Rel, filter.SourceKey, filter.TargetKey)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		var edge Edge
		var props []byte
		if err := rows.Scan(&edge.Tag, &edge.Key, &edge.SourceKey,
			&edge.TargetKey, &edge.Rel, &props); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		if err := json.Unmarshal(props, &edge.Props); err != nil {
			return nil, fmt.Errorf("unmarshal edge props: %w", err)
		}
		out = append(out, edge)
	}
	return out, rows.Err()
}

// UpdateNodeProps сливает props в JSONB существующего узла.
func (s *PG) UpdateNodeProps(ctx context.Context, tag, key string, props map[string]any) error {
	patch, err := marshalProps(props)
	if err != nil {
		return err
	}
	query := `
		UPDATE graph_nodes
		SET props = props || $3
		WHERE tag = $1 AND key = $2
	`
	result, err := s.pool.Exec(ctx, query, tag, key, patch)
	if err != nil {
		return fmt.Errorf("update node props: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNodeNotFound
	}
	return nil
}

// DeleteByTag удаляет все узлы и рёбра пространства tag
// одной транзакцией.
func (s *PG) DeleteByTag(ctx context.Context, tag string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM graph_edges WHERE tag = $1`, tag); err != nil {
		return fmt.Errorf("delete edges by tag: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM graph_nodes WHERE tag = $1`, tag); err != nil {
		return fmt.Errorf("delete nodes by tag: %w", err)
	}
	return tx.Commit(ctx)
}

func marshalProps(props map[string]any) ([]byte, error) {
	if props == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("marshal props: %w", err)
	}
	return data, nil
}
