package port

// ProgressObserver receives cumulative byte counts of a transfer.
// Values are "at least this many bytes done"; calls may come from
// several goroutines but are never concurrent.
type ProgressObserver interface {
	OnProgress(bytesDone int64)
}

// ProgressFunc adapts a function to ProgressObserver
type ProgressFunc func(bytesDone int64)

// OnProgress calls f(bytesDone)
func (f ProgressFunc) OnProgress(bytesDone int64) {
	f(bytesDone)
}

// NopProgress discards progress
var NopProgress ProgressObserver = ProgressFunc(func(int64) {})
