package stream

import (
	"context"
	"os"

	"github.com/m-mizutani/dynamostream/internal/transform"
	"github.com/m-mizutani/dynamostream/pkg/models"
	"github.com/sirupsen/logrus"
)

// Hook is logrus.Hook putting entries to Stream as bunyan style records.
// Do not add Hook to a logger that Stream itself logs to.
type Hook struct {
	stream   *Stream
	levels   []logrus.Level
	hostname string
	pid      int
}

// NewHook creates Hook for the levels. All levels are fired if no level is given.
func NewHook(s *Stream, levels ...logrus.Level) *Hook {
	if len(levels) == 0 {
		levels = logrus.AllLevels
	}

	return &Hook{
		stream:   s,
		levels:   levels,
		hostname: hostname(),
		pid:      os.Getpid(),
	}
}

// Levels implements logrus.Hook
func (x *Hook) Levels() []logrus.Level {
	return x.levels
}

// Fire implements logrus.Hook
func (x *Hook) Fire(entry *logrus.Entry) error {
	return x.stream.Put(context.Background(), x.toRecord(entry))
}

func (x *Hook) toRecord(entry *logrus.Entry) models.LogRecord {
	record := models.LogRecord{
		models.AttrMessage: entry.Message,
		models.AttrTime:    entry.Time,
		models.AttrPID:     x.pid,
		models.AttrVersion: 0,
	}
	if lv, ok := transform.LevelNumber(entry.Level.String()); ok {
		record[models.AttrLevel] = lv
	}
	if x.hostname != "" {
		record[models.AttrHostname] = x.hostname
	}

	for key, value := range entry.Data {
		if err, ok := value.(error); ok {
			value = err.Error()
		}
		if _, ok := record[key]; ok {
			key = "fields." + key
		}
		record[key] = value
	}

	return record
}
