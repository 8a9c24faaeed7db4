package dispatch

// Executor runs the body of a single delivery.
type Executor interface {
	Execute(task func())
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(task func())

// Execute implements Executor.
func (f ExecutorFunc) Execute(task func()) {
	f(task)
}

// Direct returns an executor that runs tasks on the calling goroutine.
func Direct() Executor {
	return direct{}
}

type direct struct{}

func (direct) Execute(task func()) {
	task()
}
