package logging

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Setup installs a tint handler writing to w as the default slog logger. The
// returned LevelVar changes the level of the running logger.
func Setup(w io.Writer, level slog.Level) *slog.LevelVar {
	levelVar := &slog.LevelVar{}
	levelVar.Set(level)

	noColor := true
	if f, ok := w.(interface{ Fd() uintptr }); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}

	slog.SetDefault(slog.New(tint.NewHandler(w, &tint.Options{
		Level:      levelVar,
		TimeFormat: time.DateTime,
		NoColor:    noColor,
	})))
	return levelVar
}
