package ursanet

import "log/slog"

// Thin wrappers around slog so every call site carries the "ursanet:"
// prefix uniformly, matching the convention used throughout
// pkg/p2pnet (e.g. peermanager.go, netintel.go).
func logInfo(msg string, args ...any)  { slog.Info("ursanet: "+msg, args...) }
func logWarn(msg string, args ...any)  { slog.Warn("ursanet: "+msg, args...) }
func logDebug(msg string, args ...any) { slog.Debug("ursanet: "+msg, args...) }
func logError(msg string, args ...any) { slog.Error("ursanet: "+msg, args...) }
