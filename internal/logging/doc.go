// Package logging configures the process-wide zerolog logger and hands out
// component-scoped child loggers. Library packages accept a zerolog.Logger so
// tests can pass zerolog.Nop().
package logging
