package zerolog

import (
	"fmt"

	"github.com/raykavin/kagiline/pkg/logger"
	"github.com/rs/zerolog"
)

var levels = map[logger.Level]zerolog.Level{
	logger.TraceLevel: zerolog.TraceLevel,
	logger.DebugLevel: zerolog.DebugLevel,
	logger.InfoLevel:  zerolog.InfoLevel,
	logger.WarnLevel:  zerolog.WarnLevel,
	logger.ErrorLevel: zerolog.ErrorLevel,
	logger.FatalLevel: zerolog.FatalLevel,
	logger.PanicLevel: zerolog.PanicLevel,
	logger.Disabled:   zerolog.Disabled,
}

// Adapter exposes a zerolog.Logger as a logger.Logger
type Adapter struct {
	log zerolog.Logger
}

func NewAdapter(log zerolog.Logger) *Adapter {
	return &Adapter{log: log}
}

func (a *Adapter) WithField(key string, value any) logger.Logger {
	return &Adapter{log: a.log.With().Interface(key, value).Logger()}
}

func (a *Adapter) WithFields(fields map[string]any) logger.Logger {
	return &Adapter{log: a.log.With().Fields(fields).Logger()}
}

func (a *Adapter) WithError(err error) logger.Logger {
	return &Adapter{log: a.log.With().Stack().Err(err).Logger()}
}

func (a *Adapter) Debug(args ...any) { a.log.Debug().Msg(fmt.Sprint(args...)) }
func (a *Adapter) Info(args ...any)  { a.log.Info().Msg(fmt.Sprint(args...)) }
func (a *Adapter) Warn(args ...any)  { a.log.Warn().Msg(fmt.Sprint(args...)) }
func (a *Adapter) Error(args ...any) { a.log.Error().Msg(fmt.Sprint(args...)) }
func (a *Adapter) Fatal(args ...any) { a.log.Fatal().Msg(fmt.Sprint(args...)) }

func (a *Adapter) Debugf(format string, args ...any) { a.log.Debug().Msgf(format, args...) }
func (a *Adapter) Infof(format string, args ...any)  { a.log.Info().Msgf(format, args...) }
func (a *Adapter) Warnf(format string, args ...any)  { a.log.Warn().Msgf(format, args...) }
func (a *Adapter) Errorf(format string, args ...any) { a.log.Error().Msgf(format, args...) }
func (a *Adapter) Fatalf(format string, args ...any) { a.log.Fatal().Msgf(format, args...) }

// SetLevel changes the level of this logger only
func (a *Adapter) SetLevel(level logger.Level) {
	zl, ok := levels[level]
	if !ok {
		zl = zerolog.NoLevel
	}
	a.log = a.log.Level(zl)
}

func (a *Adapter) GetLevel() logger.Level {
	for level, zl := range levels {
		if zl == a.log.GetLevel() {
			return level
		}
	}
	return logger.TraceLevel
}
