// Package taskqueue — абстракция очереди задач поверх внешнего
// брокера.
//
// Очередь принимает задачи только с зарегистрированным handler'ом
// (fail-fast), ведёт локальную историю отправленных задач и
// транслирует нативные статусы брокера в стабильный внутренний
// enum. Отмена — revoke с принудительной остановкой (best-effort);
// повтор — replay: ResubmitTask создаёт новую задачу, а не
// возобновляет исходную попытку.
package taskqueue
