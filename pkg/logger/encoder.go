package logger

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

var bufferpool = buffer.NewPool()

// ANSI level colors for console output
var levelColors = map[zapcore.Level]string{
	zapcore.DebugLevel: "\x1b[35m", // magenta
	zapcore.InfoLevel:  "\x1b[34m", // blue
	zapcore.WarnLevel:  "\x1b[33m", // yellow
	zapcore.ErrorLevel: "\x1b[31m", // red
	zapcore.FatalLevel: "\x1b[31m",
	zapcore.PanicLevel: "\x1b[31m",
}

const ansiReset = "\x1b[0m"

// textEncoder renders entries as
//
//	[2006-01-02 15:04:05] [LEVEL] caller msg key=value ...
//
// with optional ANSI coloring of the level tag for terminals.
type textEncoder struct {
	zapcore.Encoder // field accumulation delegated to the console encoder
	color           bool
}

func newTextEncoder(color bool) zapcore.Encoder {
	return &textEncoder{
		Encoder: zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			LineEnding: zapcore.DefaultLineEnding,
		}),
		color: color,
	}
}

// Clone creates a copy of the encoder
func (e *textEncoder) Clone() zapcore.Encoder {
	return &textEncoder{
		Encoder: e.Encoder.Clone(),
		color:   e.color,
	}
}

// EncodeEntry encodes a log entry with key=value formatting for fields
func (e *textEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	buf := bufferpool.Get()

	buf.AppendString("[" + entry.Time.Format("2006-01-02 15:04:05") + "] ")

	tag := "[" + entry.Level.CapitalString() + "]"
	if e.color {
		if c, ok := levelColors[entry.Level]; ok {
			tag = c + tag + ansiReset
		}
	}
	buf.AppendString(tag)
	buf.AppendByte(' ')

	if entry.Caller.Defined {
		buf.AppendString(entry.Caller.TrimmedPath())
		buf.AppendByte(' ')
	}

	buf.AppendString(entry.Message)

	for _, field := range fields {
		appendField(buf, field)
	}

	buf.AppendString(zapcore.DefaultLineEnding)
	return buf, nil
}

func appendField(buf *buffer.Buffer, field zapcore.Field) {
	buf.AppendByte(' ')
	buf.AppendString(field.Key)
	buf.AppendByte('=')

	switch field.Type {
	case zapcore.StringType:
		buf.AppendString(field.String)
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type:
		buf.AppendInt(field.Integer)
	case zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		buf.AppendUint(uint64(field.Integer))
	case zapcore.Float64Type:
		buf.AppendFloat(math.Float64frombits(uint64(field.Integer)), 64)
	case zapcore.Float32Type:
		buf.AppendFloat(float64(math.Float32frombits(uint32(field.Integer))), 32)
	case zapcore.BoolType:
		buf.AppendBool(field.Integer == 1)
	case zapcore.DurationType:
		buf.AppendString(time.Duration(field.Integer).String())
	case zapcore.TimeType:
		if loc, ok := field.Interface.(*time.Location); ok {
			buf.AppendString(time.Unix(0, field.Integer).In(loc).String())
		} else {
			buf.AppendString(time.Unix(0, field.Integer).String())
		}
	case zapcore.TimeFullType:
		buf.AppendString(field.Interface.(time.Time).String())
	case zapcore.ErrorType:
		if err, ok := field.Interface.(error); ok && err != nil {
			buf.AppendString(err.Error())
		} else {
			buf.AppendString("<nil>")
		}
	case zapcore.StringerType:
		if stringer, ok := field.Interface.(fmt.Stringer); ok {
			buf.AppendString(stringer.String())
		}
	default:
		if field.Interface != nil {
			buf.AppendString(fmt.Sprint(field.Interface))
		}
	}
}
