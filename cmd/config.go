package main

import (
	"log/slog"
	"time"
)

type Config struct {
	DefaultRoom          string        `env:"DEFAULT_ROOM,default=main"`
	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL,default=5s"`
	HeartbeatTimeout     time.Duration `env:"HEARTBEAT_TIMEOUT,default=10s"`
	MaxFrameSize         int64         `env:"MAX_FRAME_SIZE,default=4096"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	BufferSize           int           `env:"BUFFER_SIZE,default=1024"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,default=info"`
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
}

// LoggerLevel maps the LOG_LEVEL value onto slog levels, defaulting to
// info for anything unknown.
func LoggerLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
