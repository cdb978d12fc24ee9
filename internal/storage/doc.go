package storage

// Package storage provides a minimal persistence layer for the scheduler.
//
// It currently supports:
//   - Run history appends (per-prompt delivery outcomes)
//   - Recent-history reads for status diagnostics
