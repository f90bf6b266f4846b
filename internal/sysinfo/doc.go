// Package sysinfo измеряет утилизацию системных ресурсов.
//
// Source — источник снимков утилизации (проценты 0-100 по типам
// ресурсов). Боевая реализация ProcFS читает /proc (CPU, память,
// сеть) и statfs (диск); Static возвращает фиксированные значения
// и используется в тестах.
package sysinfo
