package app

// Notifier receives the user-facing outcome of a synchronized drag.
type Notifier interface {
	ReorderSucceeded()
	MoveSucceeded()
	SyncFailed(reason error)
}

// NotifierFuncs adapts plain functions to Notifier. Nil fields are ignored.
type NotifierFuncs struct {
	OnReorderSucceeded func()
	OnMoveSucceeded    func()
	OnSyncFailed       func(error)
}

// ReorderSucceeded implements Notifier.
func (n NotifierFuncs) ReorderSucceeded() {
	if n.OnReorderSucceeded != nil {
		n.OnReorderSucceeded()
	}
}

// MoveSucceeded implements Notifier.
func (n NotifierFuncs) MoveSucceeded() {
	if n.OnMoveSucceeded != nil {
		n.OnMoveSucceeded()
	}
}

// SyncFailed implements Notifier.
func (n NotifierFuncs) SyncFailed(reason error) {
	if n.OnSyncFailed != nil {
		n.OnSyncFailed(reason)
	}
}

// NopNotifier drops every signal.
type NopNotifier struct{}

func (NopNotifier) ReorderSucceeded() {}
func (NopNotifier) MoveSucceeded()    {}
func (NopNotifier) SyncFailed(error)  {}
