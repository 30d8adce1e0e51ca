package zerolog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/goterm/term"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

const messageWidth = 64

// New builds a console logger. With jsonFormat the raw zerolog JSON lines are
// written instead of the coloured layout.
func New(level, timeLayout string, colored, jsonFormat bool) (zerolog.Logger, error) {
	return NewWithWriter(os.Stdout, level, timeLayout, colored, jsonFormat)
}

func NewWithWriter(out io.Writer, level, timeLayout string, colored, jsonFormat bool) (zerolog.Logger, error) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}

	if jsonFormat {
		return zerolog.New(out).Level(lvl).With().Timestamp().Caller().Logger(), nil
	}

	output := zerolog.ConsoleWriter{
		Out:           out,
		NoColor:       !colored,
		TimeFormat:    timeLayout,
		FormatLevel:   levelLabel(colored),
		FormatMessage: message,
		FormatCaller:  caller,
	}
	output.FormatTimestamp = func(i any) string {
		return timestamp(i, timeLayout, colored)
	}

	return zerolog.New(output).Level(lvl).With().Timestamp().CallerWithSkipFrameCount(3).Logger(), nil
}

func levelLabel(colored bool) zerolog.Formatter {
	return func(i any) string {
		value, _ := i.(string)
		label, paint := "[UNK]", term.Whitef
		switch value {
		case zerolog.LevelTraceValue:
			label, paint = "[TRC]", term.Cyanf
		case zerolog.LevelDebugValue:
			label, paint = "[DBG]", term.Cyanf
		case zerolog.LevelInfoValue:
			label, paint = "[INF]", term.Greenf
		case zerolog.LevelWarnValue:
			label, paint = "[WRN]", term.Yellowf
		case zerolog.LevelErrorValue:
			label, paint = "[ERR]", term.Redf
		case zerolog.LevelFatalValue:
			label, paint = "[FTL]", term.Redf
		case zerolog.LevelPanicValue:
			label, paint = "[PAN]", term.Redf
		}
		if !colored {
			return label
		}
		return paint(label)
	}
}

func message(i any) string {
	msg, _ := i.(string)
	if len(msg) > messageWidth {
		msg = msg[:messageWidth]
	}
	return fmt.Sprintf("> %-*s", messageWidth, msg)
}

// caller renders file:line padded to a fixed width so columns align
func caller(i any) string {
	name, _ := i.(string)
	if name == "" {
		return ""
	}

	file, line, found := strings.Cut(filepath.Base(name), ":")
	if !found {
		return file
	}
	if len(file) > 16 {
		file = file[:16]
	}
	return fmt.Sprintf("[%-16s:%4s]", file, line)
}

func timestamp(i any, layout string, colored bool) string {
	raw, _ := i.(string)
	if ts, err := time.Parse(zerolog.TimeFieldFormat, raw); err == nil {
		raw = ts.Local().Format(layout)
	}
	if !colored {
		return "[" + raw + "]"
	}
	return term.Cyanf("[%s]", raw)
}
