package statusevents

import (
	"context"
	"strings"
)

type actionFunc func(context.Context, Event) error

type actionFactory struct {
	byType map[string]actionFunc
}

func newActionFactory(onCreated, onPickedUp, onCompleted, onCancelled, onOutage actionFunc) *actionFactory {
	return &actionFactory{
		byType: map[string]actionFunc{
			TypeCreated:      onCreated,
			TypePickedUp:     onPickedUp,
			TypeCompleted:    onCompleted,
			TypeCancelled:    onCancelled,
			"canceled":       onCancelled,
			TypeDriverOutage: onOutage,
		},
	}
}

func (f *actionFactory) get(eventType string) (actionFunc, bool) {
	eventType = strings.ToLower(strings.TrimSpace(eventType))
	fn, ok := f.byType[eventType]
	return fn, ok
}
