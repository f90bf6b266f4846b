package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/Conductor/internal/taskqueue"
)

// Имена встроенных задач.
const (
	TaskHTTPRequest = "http.request"
	TaskDelay       = "delay"
	TaskEcho        = "echo"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
)

// RegisterBuiltins регистрирует встроенные handler'ы задач.
func RegisterBuiltins(registry *taskqueue.Registry) {
	registry.Register(TaskHTTPRequest, HTTPRequestHandler)
	registry.Register(TaskDelay, DelayHandler)
	registry.Register(TaskEcho, EchoHandler)
}

// HTTPRequestHandler выполняет HTTP запрос к внешнему API.
//
// Kwargs:
//
//	{
//	    "method": "POST",              // по умолчанию GET
//	    "url": "https://api.example.com/data",
//	    "headers": {"Authorization": "Bearer ..."},
//	    "body": {...},
//	    "timeout_sec": 30
//	}
//
// Результат: {"status_code", "headers", "body"}.
func HTTPRequestHandler(ctx context.Context, _ []any, kwargs map[string]any) (any, error) {
	url, _ := kwargs["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("http.request: url is required")
	}

	method, _ := kwargs["method"].(string)
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)

	var bodyReader io.Reader
	hasBody := false
	if body, ok := kwargs["body"]; ok && body != nil {
		raw, err := serializeBody(body)
		if err != nil {
			return nil, fmt.Errorf("http.request: serialize body: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
		hasBody = true
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("http.request: build request: %w", err)
	}
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if headers, ok := kwargs["headers"].(map[string]any); ok {
		for key, value := range headers {
			req.Header.Set(key, fmt.Sprint(value))
		}
	}

	timeout := defaultHTTPTimeout
	if sec := intKwarg(kwargs, "timeout_sec"); sec > 0 {
		timeout = time.Duration(sec) * time.Second
	}
	client := &http.Client{Timeout: timeout}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http.request: %w", err)
	}
	defer resp.Body.Close()

	return parseHTTPResponse(resp)
}

func serializeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

func parseHTTPResponse(resp *http.Response) (any, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("http.request: read response body: %w", err)
	}

	var body any
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &body); err != nil {
			body = string(raw)
		}
	} else {
		body = string(raw)
	}

	headers := make(map[string]string)
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        body,
	}, nil
}

// DelayHandler приостанавливает выполнение на указанное время.
//
// Kwargs: duration_sec либо duration_ms. Отмена контекста
// прерывает задержку.
func DelayHandler(ctx context.Context, _ []any, kwargs map[string]any) (any, error) {
	var duration time.Duration
	if sec := intKwarg(kwargs, "duration_sec"); sec > 0 {
		duration = time.Duration(sec) * time.Second
	} else if ms := intKwarg(kwargs, "duration_ms"); ms > 0 {
		duration = time.Duration(ms) * time.Millisecond
	} else {
		return nil, fmt.Errorf("delay: duration_sec or duration_ms required")
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return map[string]any{"duration_ms": duration.Milliseconds()}, nil
	}
}

// EchoHandler возвращает свои kwargs. Используется в smoke-проверках
// и примерах workflow.
func EchoHandler(_ context.Context, _ []any, kwargs map[string]any) (any, error) {
	return kwargs, nil
}

// intKwarg читает целочисленный kwarg, учитывая что после JSON
// round-trip числа приходят как float64.
func intKwarg(kwargs map[string]any, name string) int {
	switch v := kwargs[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
