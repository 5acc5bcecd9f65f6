// Package logging configures structured operational logging for netclient.
//
// It wraps log/slog so that every component logs the same way. Components take
// a *slog.Logger in their config or through a setter and fall back to Nop()
// when none is given.
//
//	log := logging.New(logging.Config{
//	    Level:  logging.LevelDebug,
//	    Format: logging.FormatJSON,
//	})
//	log.Debug("stub hit", "key", key)
//
// Several outputs can be combined with NewMulti, for example human readable
// text on stderr plus JSON lines in a file.
package logging
