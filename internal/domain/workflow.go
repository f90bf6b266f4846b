package domain

// NodeType — тип узла workflow.
type NodeType string

const (
	// NodeTypeStart — точка входа workflow.
	NodeTypeStart NodeType = "START"

	// NodeTypeEnd — точка выхода workflow.
	NodeTypeEnd NodeType = "END"

	// NodeTypeTask — узел с полезной работой (может ссылаться на task handler).
	NodeTypeTask NodeType = "TASK"

	// NodeTypeGateway — узел ветвления/слияния потока управления.
	NodeTypeGateway NodeType = "GATEWAY"
)

// GatewayType — семантика ветвления для узлов типа GATEWAY.
type GatewayType string

const (
	// GatewayExclusive — выбирается первое исходящее ребро с истинным условием.
	GatewayExclusive GatewayType = "EXCLUSIVE"

	// GatewayParallel — активируются все исходящие рёбра, join в точке слияния.
	GatewayParallel GatewayType = "PARALLEL"

	// GatewayInclusive — каждое условие вычисляется независимо,
	// активируются все рёбра с истинным условием.
	GatewayInclusive GatewayType = "INCLUSIVE"
)

// WorkflowNode — узел в определении workflow.
//
// Узлы неизменяемы после публикации WorkflowDefinition:
// изменение возможно только через полную замену определения.
type WorkflowNode struct {
	// ID — уникальный идентификатор узла в рамках workflow.
	ID string `json:"id"`

	// Name — человекочитаемое имя узла.
	Name string `json:"name"`

	// Type — тип узла: START, END, TASK, GATEWAY.
	Type NodeType `json:"type"`

	// GatewayType — семантика ветвления (имеет смысл только для Type=GATEWAY).
	GatewayType GatewayType `json:"gateway_type,omitempty"`

	// Properties — произвольные свойства узла.
	// Для TASK узлов свойство "task_name" указывает handler для выполнения.
	Properties map[string]any `json:"properties,omitempty"`
}

// WorkflowEdge — направленное ребро между узлами workflow.
//
// Инвариант: Source и Target должны ссылаться на узлы
// того же WorkflowDefinition.
type WorkflowEdge struct {
	// ID — уникальный идентификатор ребра.
	ID string `json:"id"`

	// Source — ID исходного узла.
	Source string `json:"source"`

	// Target — ID целевого узла.
	Target string `json:"target"`

	// Condition — булево условие перехода (Go template, опционально).
	// Пустая строка означает безусловный переход.
	Condition string `json:"condition,omitempty"`

	// Properties — произвольные свойства ребра.
	Properties map[string]any `json:"properties,omitempty"`
}

// WorkflowDefinition — определение workflow: типизированный граф узлов и рёбер.
//
// Определение создаётся явным вызовом, изменяется только полной заменой
// (update) и удаляется явным delete, который также удаляет
// графовую проекцию.
type WorkflowDefinition struct {
	// ID — уникальный идентификатор workflow.
	ID string `json:"id"`

	// Name — имя workflow.
	Name string `json:"name"`

	// Nodes — упорядоченный список узлов.
	Nodes []WorkflowNode `json:"nodes"`

	// Edges — список рёбер.
	Edges []WorkflowEdge `json:"edges,omitempty"`
}

// NodeByID возвращает узел по ID или nil, если узел не найден.
func (d *WorkflowDefinition) NodeByID(id string) *WorkflowNode {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i]
		}
	}
	return nil
}

// StartNodes возвращает все START узлы определения.
func (d *WorkflowDefinition) StartNodes() []WorkflowNode {
	var nodes []WorkflowNode
	for _, n := range d.Nodes {
		if n.Type == NodeTypeStart {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// OutgoingEdges возвращает рёбра, исходящие из узла.
func (d *WorkflowDefinition) OutgoingEdges(nodeID string) []WorkflowEdge {
	var edges []WorkflowEdge
	for _, e := range d.Edges {
		if e.Source == nodeID {
			edges = append(edges, e)
		}
	}
	return edges
}

// IncomingEdges возвращает рёбра, входящие в узел.
func (d *WorkflowDefinition) IncomingEdges(nodeID string) []WorkflowEdge {
	var edges []WorkflowEdge
	for _, e := range d.Edges {
		if e.Target == nodeID {
			edges = append(edges, e)
		}
	}
	return edges
}

// ValidationResult — результат валидации WorkflowDefinition.
//
// Errors делают определение невалидным (Valid=false).
// Warnings не влияют на Valid — определение можно сохранить.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// WorkflowMetrics — агрегированные метрики выполнений workflow.
type WorkflowMetrics struct {
	WorkflowID           string  `json:"workflow_id"`
	TotalExecutions      int     `json:"total_executions"`
	SuccessfulExecutions int     `json:"successful_executions"`
	FailedExecutions     int     `json:"failed_executions"`
	SuccessRate          float64 `json:"success_rate"`
}
