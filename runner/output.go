package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
)

// maxLogLine bounds a single Meltano log line. Singer catalogs embedded in
// log output can get large.
const maxLogLine = 1 << 20

// LogLine is one parsed line of Meltano output.
type LogLine struct {
	// Level is the Meltano log level ("info", "error", ...). Empty for
	// non-JSON output.
	Level string

	// Event is the log message.
	Event string

	// Fields are the remaining structured fields of a JSON line.
	Fields map[string]any
}

// OutputResult aggregates what the relay learned from a run's output.
type OutputResult struct {
	// ErrorLogs collects lines that indicate failure: JSON lines at error
	// level and raw lines containing "error", verbatim.
	ErrorLogs []string

	// DurationSeconds is Meltano's own reported duration from the final
	// "Run completed" event, when present.
	DurationSeconds *float64

	// Failure holds code/message/exception details from an
	// "Extractor failed" / "Loader failed" / "Mappers failed" event.
	Failure map[string]any
}

// ProcessOutput relays the subprocess output stream to the logger line by
// line. Meltano emits JSON log lines when MELTANO_CLI_LOG_FORMAT=json; each
// is re-logged at its own level with the event as the message. Non-JSON
// lines (plugin noise, tracebacks) are logged verbatim at info.
//
// emit, when non-nil, receives every line for external relay.
func ProcessOutput(r io.Reader, logger *slog.Logger, emit func(LogLine)) (*OutputResult, error) {
	result := &OutputResult{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLogLine)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var record map[string]any
		if err := json.Unmarshal(line, &record); err != nil || record == nil {
			processRawLine(strings.TrimRight(string(line), "\r\n"), logger, emit, result)
			continue
		}
		processJSONLine(record, logger, emit, result, strings.TrimRight(string(line), "\r\n"))
	}

	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("read meltano output: %w", err)
	}
	return result, nil
}

func processRawLine(line string, logger *slog.Logger, emit func(LogLine), result *OutputResult) {
	logger.Info(line)
	if strings.Contains(strings.ToLower(line), "error") {
		result.ErrorLogs = append(result.ErrorLogs, line)
	}
	if emit != nil {
		emit(LogLine{Event: line})
	}
}

func processJSONLine(record map[string]any, logger *slog.Logger, emit func(LogLine), result *OutputResult, raw string) {
	level, _ := record["level"].(string)
	event, _ := record["event"].(string)
	delete(record, "level")
	delete(record, "event")

	switch {
	case event == "METRIC":
		// Singer metrics are high-volume; keep them at debug.
		if info, ok := record["metric_info"].(map[string]any); ok {
			logger.Debug("METRIC: " + formatMetricInfo(info))
		} else {
			logger.Debug("METRIC")
		}
	default:
		logger.LogAttrs(context.Background(), slogLevel(level), event, recordAttrs(record)...)
	}

	if level == "error" {
		result.ErrorLogs = append(result.ErrorLogs, raw)
	}

	if strings.Contains(event, "Run completed") {
		if d, ok := record["duration_seconds"].(float64); ok {
			result.DurationSeconds = &d
		}
	}

	if strings.Contains(event, "Extractor failed") ||
		strings.Contains(event, "Loader failed") ||
		strings.Contains(event, "Mappers failed") {
		result.Failure = map[string]any{
			"code":      record["code"],
			"message":   record["message"],
			"exception": record["exception"],
		}
	}

	if emit != nil {
		emit(LogLine{Level: level, Event: event, Fields: record})
	}
}

// slogLevel maps Meltano's structlog levels onto slog levels.
func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warning":
		return slog.LevelWarn
	case "error", "critical":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func recordAttrs(record map[string]any) []slog.Attr {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, record[k]))
	}
	return attrs
}

func formatMetricInfo(info map[string]any) string {
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := info[k].(type) {
		case string:
			parts = append(parts, fmt.Sprintf("%s=%q", k, v))
		default:
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	return strings.Join(parts, " ")
}
