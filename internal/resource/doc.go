// Package resource управляет пулом системных ресурсов.
//
// Admission основан на headroom: available = 100 − current_usage
// по каждому запрошенному типу. Лимиты утилизации advisory —
// влияют на health-флаги и рекомендации, но не на admission,
// пока явно не включён EnforceLimits.
//
// Выделения живут в Ledger (в памяти или Redis); статусные
// переходы атомарны через compare-and-swap, поэтому конкурентные
// deallocate/release/reaper не конфликтуют. Просроченные
// выделения возвращает Reaper.
package resource
