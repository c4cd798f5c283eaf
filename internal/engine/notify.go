package engine

// Notifier receives the outcome of every save that reached the remote
// store. Calls happen after the engine lock is released, on the goroutine
// that ran the save (the clock's goroutine for autosaves).
type Notifier interface {
	SaveSucceeded()
	SaveFailed(err error)
}

// NopNotifier ignores all notifications.
type NopNotifier struct{}

func (NopNotifier) SaveSucceeded()   {}
func (NopNotifier) SaveFailed(error) {}

// NotifierFuncs adapts plain functions to Notifier. Nil fields are skipped.
type NotifierFuncs struct {
	OnSucceeded func()
	OnFailed    func(err error)
}

func (n NotifierFuncs) SaveSucceeded() {
	if n.OnSucceeded != nil {
		n.OnSucceeded()
	}
}

func (n NotifierFuncs) SaveFailed(err error) {
	if n.OnFailed != nil {
		n.OnFailed(err)
	}
}
