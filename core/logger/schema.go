package logger

import "strings"

const (
	// LevelDebug represents the debug severity level name.
	LevelDebug = "DEBUG"
	// LevelInfo represents the info severity level name.
	LevelInfo = "INFO"
	// LevelWarn represents the warning severity level name.
	LevelWarn = "WARN"
	// LevelError represents the error severity level name.
	LevelError = "ERROR"
)

var levelNames = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

// status is free-form but these spellings are canonical; outcome is a closed set.
var (
	knownStatus  = set("ok", "fail", "skip", "retry", "rate_limited", "rejected", "denied")
	knownOutcome = set("ok", "fail", "rejected", "denied", "rate_limited")
)

func set(values ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if mapped, ok := levelNames[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

func normalizeEnum(value string, known map[string]struct{}) (string, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "", false
	}
	_, ok := known[value]
	return value, ok
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"phase",
	"phase_from",
	"phase_to",
	"cb_key",
	"outcome",
	"duration_ms",
	"messages",
	"kb",
	"product_id",
	"order_index",
	"order_status",
	"quantity",
	"total",
	"count",
	"payload",
	"reason",
	"lang",
	"username",
	"mode",
	"listen",
	"public_url",
	"action",
	"endpoint",
	"http_code",
	"driver",
	"db",
	"host",
	"port",
	"topic",
	"err",
	"err_code",
	"error_kind",
	"cause",
	"attempts",
	"elapsed_ms",
}
