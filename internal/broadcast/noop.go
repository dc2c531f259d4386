package broadcast

import "context"

type noopChannel struct{}

// Noop is used where no broadcast mechanism exists. Posts succeed and
// nothing is ever delivered.
func Noop() Channel {
	return noopChannel{}
}

func (noopChannel) Post(context.Context, Message) error { return nil }

func (noopChannel) OnMessage(func(Message)) func() { return func() {} }

func (noopChannel) Close() error { return nil }
