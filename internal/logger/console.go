package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// ConsoleLogger writes entries to stderr, either as one-line JSON or as
// colored human-readable text.
type ConsoleLogger struct {
	config *Config
	mu     sync.Mutex
}

var levelColors = map[LogLevel]*color.Color{
	LevelDebug: color.New(color.FgHiBlack),
	LevelInfo:  color.New(color.FgGreen),
	LevelWarn:  color.New(color.FgYellow),
	LevelError: color.New(color.FgRed, color.Bold),
}

// NewConsoleLogger creates a console logger
func NewConsoleLogger(config *Config) *ConsoleLogger {
	return &ConsoleLogger{config: config}
}

func (cl *ConsoleLogger) log(entry *Entry) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.config.Format == FormatJSON {
		data, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: failed to marshal entry: %v\n", err)
			return
		}
		fmt.Fprintln(os.Stderr, string(data))
		return
	}

	fmt.Fprintln(os.Stderr, cl.formatText(entry))
}

func (cl *ConsoleLogger) formatText(entry *Entry) string {
	var b strings.Builder

	b.WriteString(entry.Timestamp.Format(time.RFC3339))
	b.WriteByte(' ')

	tag := strings.ToUpper(string(entry.Level))
	if cl.config.Console.Color {
		if c, ok := levelColors[entry.Level]; ok {
			tag = c.Sprint(tag)
		}
	}
	b.WriteString(tag)

	if entry.Component != "" {
		b.WriteString(" [")
		b.WriteString(string(entry.Component))
		b.WriteByte(']')
	}

	b.WriteByte(' ')
	b.WriteString(entry.Message)

	// Stable field order keeps console output diffable
	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Fields[k])
	}

	return b.String()
}
