package conductor

import "context"

// CallerContext — контекст вызывающего: пользователь, арендатор,
// набор разрешений. Nil-контекст означает внутренний вызов без
// авторизации.
type CallerContext struct {
	UserID      string   `json:"user_id,omitempty"`
	TenantID    string   `json:"tenant_id,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Guard — проверка прав и tenant-scope перед оркестрацией.
//
// Разрешается один раз при конструировании сервиса; отсутствующий
// guard заменяется на AllowAll. Отказ — это не ошибка: оркестратор
// возвращает структурированный {success:false} без побочных эффектов.
type Guard interface {
	// Authorize возвращает (false, nil) при отказе в доступе
	// и ошибку только при инфраструктурном сбое проверки.
	Authorize(ctx context.Context, caller *CallerContext, resource, action string) (bool, error)
}

// AllowAll — guard по умолчанию, пропускает всё.
type AllowAll struct{}

// Authorize всегда разрешает.
func (AllowAll) Authorize(context.Context, *CallerContext, string, string) (bool, error) {
	return true, nil
}
