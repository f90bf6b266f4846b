package graph

import (
	"context"
	"reflect"
	"sync"
)

type nodeKey struct{ tag, key string }

// Memory — граф-хранилище в памяти процесса.
type Memory struct {
	mu    sync.RWMutex
	nodes map[nodeKey]Node
	edges map[nodeKey]Edge
}

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{
		nodes: make(map[nodeKey]Node),
		edges: make(map[nodeKey]Edge),
	}
}

// UpsertNode создаёт или заменяет узел.
func (m *Memory) UpsertNode(_ context.Context, node Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	node.Props = copyProps(node.Props)
	m.nodes[nodeKey{node.Tag, node.Key}] = node
	return nil
}

// UpsertEdge создаёт или заменяет ребро.
func (m *Memory) UpsertEdge(_ context.Context, edge Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	edge.Props = copyProps(edge.Props)
	m.edges[nodeKey{edge.Tag, edge.Key}] = edge
	return nil
}

// QueryNodes возвращает узлы по фильтру.
func (m *Memory) QueryNodes(_ context.Context, filter NodeFilter) ([]Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Node
	for _, node := range m.nodes {
		if filter.Tag != "" && node.Tag != filter.Tag {
			continue
		}
		if filter.Label != "" && node.Label != filter.Label {
			continue
		}
		if !propsMatch(node.Props, filter.Props) {
			continue
		}
		node.Props = copyProps(node.Props)
		out = append(out, node)
	}
	return out, nil
}

// QueryEdges возвращает рёбра по фильтру.
func (m *Memory) QueryEdges(_ context.Context, filter EdgeFilter) ([]Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Edge
	for _, edge := range m.edges {
		if filter.Tag != "" && edge.Tag != filter.Tag {
			continue
		}
		if filter.Rel != "" && edge.Rel != filter.Rel {
			continue
		}
		if filter.SourceKey != "" && edge.SourceKey != filter.SourceKey {
			continue
		}
		if filter.TargetKey != "" && edge.TargetKey != filter.TargetKey {
			continue
		}
		edge.Props = copyProps(edge.Props)
		out = append(out, edge)
	}
	return out, nil
}

// UpdateNodeProps сливает props в существующий узел.
func (m *Memory) UpdateNodeProps(_ context.Context, tag, key string, props map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := nodeKey{tag, key}
	node, ok := m.nodes[k]
	if !ok {
		return ErrNodeNotFound
	}
	merged := copyProps(node.Props)
	if merged == nil {
		merged = make(map[string]any, len(props))
	}
	for pk, pv := range props {
		merged[pk] = pv
	}
	node.Props = merged
	m.nodes[k] = node
	return nil
}

// DeleteByTag удаляет все узлы и рёбра пространства tag.
func (m *Memory) DeleteByTag(_ context.Context, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.nodes {
		if k.tag == tag {
			delete(m.nodes, k)
		}
	}
	for k := range m.edges {
		if k.tag == tag {
			delete(m.edges, k)
		}
	}
	return nil
}

func copyProps(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	cp := make(map[string]any, len(props))
	for k, v := range props {
		cp[k] = v
	}
	return cp
}

func propsMatch(props, want map[string]any) bool {
	for k, v := range want {
		got, ok := props[k]
		if !ok || !reflect.DeepEqual(got, v) {
			return false
		}
	}
	return true
}
