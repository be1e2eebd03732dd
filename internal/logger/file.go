package logger

import (
	"encoding/json"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileLogger writes entries as JSON lines to a rotating file. Writes are
// buffered through a channel and flushed in batches so the hot path never
// blocks on disk.
type FileLogger struct {
	config    *Config
	out       *lumberjack.Logger
	buffer    chan *Entry
	closeChan chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewFileLogger creates a file logger with rotation
func NewFileLogger(config *Config) (*FileLogger, error) {
	fl := &FileLogger{
		config: config,
		out: &lumberjack.Logger{
			Filename:   config.File.Path,
			MaxSize:    config.File.MaxSizeMB,
			MaxBackups: config.File.MaxBackups,
			MaxAge:     config.File.MaxAgeDays,
			Compress:   config.File.Compress,
		},
		buffer:    make(chan *Entry, config.File.BufferSize),
		closeChan: make(chan struct{}),
	}

	fl.wg.Add(1)
	go fl.batchWriter()

	return fl, nil
}

func (fl *FileLogger) log(entry *Entry) {
	select {
	case fl.buffer <- entry:
	default:
		// Buffer full; drop rather than block the caller
	}
}

func (fl *FileLogger) batchWriter() {
	defer fl.wg.Done()

	batch := make([]*Entry, 0, fl.config.File.BatchSize)
	ticker := time.NewTicker(fl.config.File.BatchInterval)
	defer ticker.Stop()

	flush := func() {
		for _, entry := range batch {
			if data, err := json.Marshal(entry); err == nil {
				fl.out.Write(append(data, '\n'))
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-fl.buffer:
			batch = append(batch, entry)
			if len(batch) >= fl.config.File.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-fl.closeChan:
			// Drain remaining entries before shutdown
			for {
				select {
				case entry := <-fl.buffer:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close flushes buffered entries and closes the file
func (fl *FileLogger) Close() error {
	fl.closeOnce.Do(func() {
		close(fl.closeChan)
	})
	fl.wg.Wait()
	return fl.out.Close()
}
