// Package worker — процесс выполнения задач.
//
// Потребляет задачи из приоритетных очередей tasks.<queue>,
// выполняет зарегистрированные handler'ы и публикует жизненный
// цикл (STARTED, SUCCESS, FAILURE, RETRY) в conductor.events.
// Команды отзыва принимает через fanout conductor.control,
// состояние докладывает heartbeat событиями.
package worker
