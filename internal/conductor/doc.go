// Package conductor — композиционный сервис оркестрации.
//
// Связывает пул ресурсов, очередь задач и выполнения workflow
// в операции вида «выделить бюджет, запустить, откатить при
// провале». Ответы — JSON-envelope Result: успех с полезными
// полями либо штатный отказ с error_code. Ошибки вызывающего
// (пустое имя задачи, невалидное определение) возвращаются
// как обычные error до каких-либо побочных эффектов.
package conductor
