package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из API, CLI не импортирует internal/api) ---

// WorkflowResponse — определение workflow из API.
type WorkflowResponse struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Nodes []NodeResponse `json:"nodes"`
	Edges []EdgeResponse `json:"edges,omitempty"`
}

// NodeResponse — узел workflow из API.
type NodeResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	GatewayType string         `json:"gateway_type,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// EdgeResponse — ребро workflow из API.
type EdgeResponse struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Condition string `json:"condition,omitempty"`
}

// ValidationResponse — результат валидации определения.
type ValidationResponse struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// MetricsResponse — метрики workflow из API.
type MetricsResponse struct {
	WorkflowID           string  `json:"workflow_id"`
	TotalExecutions      int     `json:"total_executions"`
	SuccessfulExecutions int     `json:"successful_executions"`
	FailedExecutions     int     `json:"failed_executions"`
	SuccessRate          float64 `json:"success_rate"`
}

// ExecutionResponse — выполнение workflow из API.
type ExecutionResponse struct {
	ExecutionID   string         `json:"execution_id"`
	WorkflowID    string         `json:"workflow_id"`
	Status        string         `json:"status"`
	StartedAt     string         `json:"started_at"`
	CompletedAt   string         `json:"completed_at,omitempty"`
	CurrentNode   string         `json:"current_node,omitempty"`
	ExecutionData map[string]any `json:"execution_data,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// TaskResultResponse — результат задачи из API.
type TaskResultResponse struct {
	TaskID      string         `json:"task_id"`
	Status      string         `json:"status"`
	Result      any            `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   string         `json:"started_at,omitempty"`
	CompletedAt string         `json:"completed_at,omitempty"`
	RetryCount  int            `json:"retry_count"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// AllocationResponse — выделение ресурсов из API.
type AllocationResponse struct {
	AllocationID string         `json:"allocation_id"`
	Status       string         `json:"status"`
	AllocatedAt  string         `json:"allocated_at"`
	ExpiresAt    string         `json:"expires_at,omitempty"`
	Specs        []SpecResponse `json:"specs"`
}

// SpecResponse — спецификация одного ресурса.
type SpecResponse struct {
	ResourceType string  `json:"resource_type"`
	Amount       float64 `json:"amount"`
	Unit         string  `json:"unit"`
}

// SystemResponse — снимок системных ресурсов из API.
type SystemResponse struct {
	Resources map[string]ResourceHealthResponse `json:"resources"`
	Timestamp string                            `json:"timestamp"`
}

// ResourceHealthResponse — состояние одного ресурса.
type ResourceHealthResponse struct {
	UtilizationPercent float64 `json:"utilization_percent"`
	LimitPercent       float64 `json:"limit_percent"`
	Health             string  `json:"health"`
}

// --- Request types ---

// CreateTaskRequest — отправка задачи.
type CreateTaskRequest struct {
	TaskName   string         `json:"task_name"`
	Args       []any          `json:"args,omitempty"`
	Kwargs     map[string]any `json:"kwargs,omitempty"`
	Queue      string         `json:"queue,omitempty"`
	Priority   int            `json:"priority,omitempty"`
	Countdown  int            `json:"countdown,omitempty"`
	MaxRetries int            `json:"max_retries,omitempty"`
	TimeoutSec int            `json:"timeout_sec,omitempty"`
}

// ExecuteRequest — запуск выполнения workflow.
type ExecuteRequest struct {
	InputData map[string]any `json:"input_data,omitempty"`
}

// AllocateRequest — запрос выделения ресурсов.
type AllocateRequest struct {
	Specs       []SpecResponse `json:"specs"`
	DurationSec int            `json:"duration_sec,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Conductor API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Workflows ---

// ListWorkflows возвращает определения workflow.
func (c *Client) ListWorkflows(limit int) ([]WorkflowResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	var defs []WorkflowResponse
	err := c.list("/api/v1/workflows", params, &defs)
	return defs, err
}

// CreateWorkflow создаёт workflow из сырого определения.
func (c *Client) CreateWorkflow(def json.RawMessage) (*WorkflowResponse, error) {
	var created WorkflowResponse
	err := c.doData(http.MethodPost, "/api/v1/workflows", def, &created)
	return &created, err
}

// ValidateWorkflow валидирует определение без сохранения.
func (c *Client) ValidateWorkflow(def json.RawMessage) (*ValidationResponse, error) {
	var result ValidationResponse
	err := c.doData(http.MethodPost, "/api/v1/workflows/validate", def, &result)
	return &result, err
}

// GetWorkflow возвращает определение по id.
func (c *Client) GetWorkflow(id string) (*WorkflowResponse, error) {
	var def WorkflowResponse
	err := c.get("/api/v1/workflows/"+id, &def)
	return &def, err
}

// DeleteWorkflow удаляет определение.
func (c *Client) DeleteWorkflow(id string) error {
	return c.delete("/api/v1/workflows/" + id)
}

// GetWorkflowMetrics возвращает метрики workflow.
func (c *Client) GetWorkflowMetrics(id string) (*MetricsResponse, error) {
	var metrics MetricsResponse
	err := c.get("/api/v1/workflows/"+id+"/metrics", &metrics)
	return &metrics, err
}

// --- Executions ---

// ExecuteWorkflow запускает выполнение workflow.
func (c *Client) ExecuteWorkflow(workflowID string, req ExecuteRequest) (*ExecutionResponse, error) {
	var exec ExecutionResponse
	err := c.post("/api/v1/workflows/"+workflowID+"/executions", req, &exec)
	return &exec, err
}

// GetExecution возвращает выполнение по id.
func (c *Client) GetExecution(id string) (*ExecutionResponse, error) {
	var exec ExecutionResponse
	err := c.get("/api/v1/executions/"+id, &exec)
	return &exec, err
}

// ListActiveExecutions возвращает незавершённые выполнения.
func (c *Client) ListActiveExecutions() ([]ExecutionResponse, error) {
	var execs []ExecutionResponse
	err := c.list("/api/v1/executions", nil, &execs)
	return execs, err
}

// ListWorkflowExecutions возвращает историю выполнений workflow.
func (c *Client) ListWorkflowExecutions(workflowID string, limit int) ([]ExecutionResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	var execs []ExecutionResponse
	err := c.list("/api/v1/workflows/"+workflowID+"/executions", params, &execs)
	return execs, err
}

// PauseExecution приостанавливает выполнение.
func (c *Client) PauseExecution(id string) error {
	return c.post("/api/v1/executions/"+id+"/pause", nil, nil)
}

// ResumeExecution возобновляет выполнение.
func (c *Client) ResumeExecution(id string) error {
	return c.post("/api/v1/executions/"+id+"/resume", nil, nil)
}

// CancelExecution отменяет выполнение.
func (c *Client) CancelExecution(id string) error {
	return c.post("/api/v1/executions/"+id+"/cancel", nil, nil)
}

// --- Tasks ---

// CreateTask отправляет задачу.
func (c *Client) CreateTask(req CreateTaskRequest) (string, error) {
	var created struct {
		TaskID string `json:"task_id"`
	}
	err := c.post("/api/v1/tasks", req, &created)
	return created.TaskID, err
}

// GetTaskResult возвращает результат задачи.
func (c *Client) GetTaskResult(id string) (*TaskResultResponse, error) {
	var result TaskResultResponse
	err := c.get("/api/v1/tasks/"+id, &result)
	return &result, err
}

// CancelTask отзывает задачу.
func (c *Client) CancelTask(id string) error {
	return c.post("/api/v1/tasks/"+id+"/cancel", nil, nil)
}

// ResubmitTask повторно отправляет задачу.
func (c *Client) ResubmitTask(id string) (string, error) {
	var created struct {
		TaskID string `json:"task_id"`
	}
	err := c.post("/api/v1/tasks/"+id+"/resubmit", nil, &created)
	return created.TaskID, err
}

// --- Resources ---

// GetSystemResources возвращает снимок системы.
func (c *Client) GetSystemResources() (*SystemResponse, error) {
	var snap SystemResponse
	err := c.get("/api/v1/resources/system", &snap)
	return &snap, err
}

// ListAllocations возвращает активные выделения.
func (c *Client) ListAllocations() ([]AllocationResponse, error) {
	var allocs []AllocationResponse
	err := c.list("/api/v1/resources/allocations", nil, &allocs)
	return allocs, err
}

// AllocateResources выделяет ресурсы.
func (c *Client) AllocateResources(req AllocateRequest) (*AllocationResponse, error) {
	var alloc AllocationResponse
	err := c.post("/api/v1/resources/allocations", req, &alloc)
	return &alloc, err
}

// DeallocateResources освобождает выделение.
func (c *Client) DeallocateResources(id string) error {
	return c.delete("/api/v1/resources/allocations/" + id)
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doJSON(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doJSON(http.MethodPost, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(lr.Data) == 0 || string(lr.Data) == "null" {
		return nil
	}
	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doJSON(method, path string, body any, result any) error {
	var raw json.RawMessage
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		raw = data
	}
	return c.doData(method, path, raw, result)
}

func (c *Client) doData(method, path string, body json.RawMessage, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body json.RawMessage) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
