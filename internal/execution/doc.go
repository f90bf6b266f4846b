// Package execution владеет жизненным циклом выполнений workflow.
//
// Машина состояний: начальный статус RUNNING (PENDING не
// персистится), RUNNING ⇄ PAUSED, терминальные COMPLETED, FAILED
// и CANCELLED ставят completed_at. Отмена идемпотентна.
//
// Продвижение по графу — волновой worklist от стартовых узлов.
// Условия рёбер — Go template выражения над данными выполнения.
// Семантика gateway:
//   - EXCLUSIVE — первое ребро с истинным условием
//     (безусловное ребро — ветка по умолчанию)
//   - PARALLEL — активируются все рёбра, join ждёт все входящие
//   - INCLUSIVE — каждое условие вычисляется независимо
//
// Каждое выполнение проецирует per-run узлы в граф-хранилище
// с тегом id выполнения; статусы узлов обновляются по мере
// продвижения.
package execution
