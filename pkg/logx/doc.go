// Package logx is a thin structured-logging facade over zerolog.
//
// It keeps call sites free of zerolog types: callers pass Field functions
// (String, Int, Err, ...) and the logger applies them to the event.
package logx
