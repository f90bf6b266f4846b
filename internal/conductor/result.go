package conductor

import "time"

// Коды ошибок в envelope ответах.
const (
	CodePermissionDenied    = "PERMISSION_DENIED"
	CodeResourceUnavailable = "RESOURCE_UNAVAILABLE"
	CodeTaskError           = "TASK_ERROR"
	CodeWorkflowError       = "WORKFLOW_ERROR"
	CodeExecutionError      = "EXECUTION_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeInternalError       = "INTERNAL_ERROR"
)

// Result — JSON-сериализуемый envelope ответа оркестратора.
//
// Успех: {"success": true, ...полезные поля, "timestamp"}.
// Штатный отказ (нехватка ресурсов, запрет доступа, сбой
// подсистемы): {"success": false, "error", "error_code", "timestamp"}.
type Result map[string]any

// Success создаёт успешный envelope с полезными полями.
func Success(fields map[string]any) Result {
	r := Result{
		"success":   true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range fields {
		r[k] = v
	}
	return r
}

// Failure создаёт envelope штатного отказа.
func Failure(errMsg, code string) Result {
	return Result{
		"success":    false,
		"error":      errMsg,
		"error_code": code,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
}

// OK возвращает true для успешного envelope.
func (r Result) OK() bool {
	ok, _ := r["success"].(bool)
	return ok
}

// ErrorCode возвращает код ошибки envelope (пусто при успехе).
func (r Result) ErrorCode() string {
	code, _ := r["error_code"].(string)
	return code
}
