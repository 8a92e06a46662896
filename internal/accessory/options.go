package accessory

import (
	"time"

	"go.uber.org/zap"
)

// Options are the collaborators shared by every accessory.
type Options struct {
	Logger   *zap.Logger
	Notifier Notifier
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Notifier == nil {
		o.Notifier = NotifierFunc(func(Event) {})
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
