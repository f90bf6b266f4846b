package graph

import "context"

// RelFlowsTo — связь порядка выполнения между узлами workflow.
const RelFlowsTo = "FLOWS_TO"

// Node — узел графа.
//
// Tag — пространство имён владельца (id workflow или id выполнения):
// несколько workflow делят одно хранилище без коллизий ключей.
type Node struct {
	// Key — ключ узла, уникальный в пределах tag.
	Key string `json:"key"`

	// Label — метка узла (тип: START, TASK, GATEWAY, ...).
	Label string `json:"label"`

	// Tag — пространство имён владельца.
	Tag string `json:"tag"`

	// Props — произвольные свойства.
	Props map[string]any `json:"props,omitempty"`
}

// Edge — направленное ребро графа.
type Edge struct {
	// Key — ключ ребра, уникальный в пределах tag.
	Key string `json:"key"`

	// SourceKey, TargetKey — ключи узлов в том же tag.
	SourceKey string `json:"source_key"`
	TargetKey string `json:"target_key"`

	// Rel — тип связи (RelFlowsTo).
	Rel string `json:"rel"`

	// Tag — пространство имён владельца.
	Tag string `json:"tag"`

	// Props — произвольные свойства (условие перехода и т.п.).
	Props map[string]any `json:"props,omitempty"`
}

// NodeFilter — фильтр запроса узлов. Пустые поля не фильтруют.
type NodeFilter struct {
	Tag   string
	Label string
	Props map[string]any
}

// EdgeFilter — фильтр запроса рёбер. Пустые поля не фильтруют.
type EdgeFilter struct {
	Tag       string
	Rel       string
	SourceKey string
	TargetKey string
}

// Store — граф-хранилище узлов и рёбер.
//
// Реализации: Memory (по умолчанию, тесты) и PG (pgx, JSONB).
type Store interface {
	// UpsertNode создаёт или заменяет узел (tag, key).
	UpsertNode(ctx context.Context, node Node) error

	// UpsertEdge создаёт или заменяет ребро (tag, key).
	UpsertEdge(ctx context.Context, edge Edge) error

	// QueryNodes возвращает узлы, удовлетворяющие фильтру.
	QueryNodes(ctx context.Context, filter NodeFilter) ([]Node, error)

	// QueryEdges возвращает рёбра, удовлетворяющие фильтру.
	QueryEdges(ctx context.Context, filter EdgeFilter) ([]Edge, error)

	// UpdateNodeProps сливает props в существующий узел.
	// Возвращает ErrNodeNotFound, если узла нет.
	UpdateNodeProps(ctx context.Context, tag, key string, props map[string]any) error

	// DeleteByTag удаляет все узлы и рёбра пространства tag.
	DeleteByTag(ctx context.Context, tag string) error
}
