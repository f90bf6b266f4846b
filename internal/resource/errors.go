package resource

import (
	"errors"
	"fmt"

	"github.com/shaiso/Conductor/internal/domain"
)

var (
	// ErrAllocationNotFound — выделение с таким id не найдено.
	ErrAllocationNotFound = errors.New("allocation not found")

	// ErrAllocationExists — выделение с таким id уже есть в ledger.
	ErrAllocationExists = errors.New("allocation already exists")

	// ErrStatusConflict — текущий статус выделения не допускает переход.
	ErrStatusConflict = errors.New("allocation status conflict")

	// ErrEmptyRequest — запрос без единой спецификации ресурса.
	ErrEmptyRequest = errors.New("resource request has no specs")
)

// Shortfall — нехватка headroom по одному типу ресурса.
type Shortfall struct {
	ResourceType domain.ResourceType `json:"resource_type"`
	Requested    float64             `json:"requested"`
	Available    float64             `json:"available"`
}

// ShortfallError возвращается, когда запрошенное количество
// превышает доступный headroom хотя бы по одному типу ресурса.
//
// Это штатный отказ admission-контроля, а не инфраструктурная
// ошибка: вызывающий слой отличает его через errors.As.
type ShortfallError struct {
	Shortfalls []Shortfall
}

func (e *ShortfallError) Error() string {
	if len(e.Shortfalls) == 0 {
		return "insufficient resources"
	}
	s := e.Shortfalls[0]
	return fmt.Sprintf("insufficient resources: %s requested %.1f, available %.1f (and %d more)",
		s.ResourceType, s.Requested, s.Available, len(e.Shortfalls)-1)
}
