package main

import (
	"github.com/schollz/progressbar/v3"

	"github.com/vertextoedge/artifact-fetcher/internal/port"
)

// barObserver renders transfer progress as a terminal bar. The size is
// not known before the transfer plans, so the bar runs as a byte counter.
type barObserver struct {
	bar *progressbar.ProgressBar
}

var _ port.ProgressObserver = (*barObserver)(nil)

func newBarObserver(description string) *barObserver {
	return &barObserver{bar: progressbar.DefaultBytes(-1, description)}
}

func (o *barObserver) OnProgress(bytesDone int64) {
	o.bar.Set64(bytesDone)
}

func (o *barObserver) Finish() {
	o.bar.Finish()
}
