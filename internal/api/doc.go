// Package api — HTTP API оркестратора.
//
// Маршруты регистрируются на stdlib ServeMux с методами и
// path-параметрами. Контекст вызывающего извлекается из заголовков
// X-User-ID, X-Tenant-ID и X-Permissions. Ответы подсистем
// оборачиваются в Data/Error envelope; ответы оркестратора
// (/api/v1/orchestrate/*) отдаются его собственным envelope
// с HTTP статусом по error_code.
package api
