// Package graph — хранилище типизированных узлов и рёбер.
//
// Каждый узел и ребро принадлежат пространству имён tag (id
// workflow для статической структуры, id выполнения для
// per-run проекций), поэтому каскадное удаление — это
// DeleteByTag. Реализации: Memory и PG (PostgreSQL + JSONB).
package graph
