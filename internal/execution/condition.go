package execution

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// conditionContext — данные, доступные условиям переходов.
//
// Условие — Go template выражение над данными выполнения:
//
//	.Data.approved
//	gt .Data.amount 100.0
//	eq .Data.route "fast"
type conditionContext struct {
	// Data — текущие данные выполнения.
	Data map[string]any
}

// EvalCondition вычисляет условие перехода над данными выполнения.
// Пустое условие истинно (безусловный переход).
func EvalCondition(condition string, data map[string]any) (bool, error) {
	if strings.TrimSpace(condition) == "" {
		return true, nil
	}

	// Оборачиваем условие в if, чтобы получить bool
	tmpl := fmt.Sprintf(`{{if %s}}true{{else}}false{{end}}`, condition)

	t, err := template.New("").Parse(tmpl)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrConditionRender, err)
	}

	if data == nil {
		data = make(map[string]any)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, conditionContext{Data: data}); err != nil {
		return false, fmt.Errorf("%w: %v", ErrConditionRender, err)
	}

	return buf.String() == "true", nil
}
