// README: Field constructors so callers do not import zap directly.
package logger

import "go.uber.org/zap"

type Field = zap.Field

func String(key, val string) Field {
	return zap.String(key, val)
}

func Int(key string, val int) Field {
	return zap.Int(key, val)
}

func Float64(key string, val float64) Field {
	return zap.Float64(key, val)
}

func Any(key string, val interface{}) Field {
	return zap.Any(key, val)
}

func Error(err error) Field {
	return zap.Error(err)
}
