package logger

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBufferLogger(level LogLevel) (*StdLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	return &StdLogger{logger: log.New(&buf, "", 0), level: level}, &buf
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, LevelError, ParseLevel("Error"))
	// Unrecognized levels default to Info.
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestStdLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(LevelWarn)
	ctx := context.Background()

	l.Debug(ctx, "too quiet")
	l.Info(ctx, "still too quiet")
	assert.Empty(t, buf.String())

	l.Warn(ctx, "loud enough")
	assert.Contains(t, buf.String(), "[WARN] loud enough")
}

func TestStdLogger_FieldsSortedAndMerged(t *testing.T) {
	l, buf := newBufferLogger(LevelDebug)

	l.Info(context.Background(), "buy executed",
		map[string]interface{}{"symbol": "BTCUSDT", "tier": 2},
		map[string]interface{}{"amount": 0.01, "tier": 3},
	)

	// Keys come out sorted and the later map wins on conflicts.
	assert.Equal(t, "[INFO] buy executed | amount=0.01 symbol=BTCUSDT tier=3\n", buf.String())
}

func TestStdLogger_ErrorIncludesCause(t *testing.T) {
	l, buf := newBufferLogger(LevelDebug)

	l.Error(context.Background(), errors.New("connection reset"), "sell failed",
		map[string]interface{}{"symbol": "ETHUSDT"})

	assert.Contains(t, buf.String(), "[ERROR] sell failed | error: connection reset | symbol=ETHUSDT")
}
