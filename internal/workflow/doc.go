// Package workflow хранит определения workflow и проецирует их
// структуру в граф-хранилище: узлы с меткой типа, рёбра FLOWS_TO,
// всё тегировано id workflow. Удаление каскадно сносит проекцию.
package workflow
