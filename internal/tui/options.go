package tui

import (
	"github.com/atotto/clipboard"

	"github.com/hylla/tracktask/internal/app"
)

type Option func(*Model)

// WithSyncOptions forwards coordinator options to the board's SyncCoordinator.
func WithSyncOptions(opts ...app.CoordinatorOption) Option {
	return func(m *Model) {
		m.syncOpts = append(m.syncOpts, opts...)
	}
}

func WithShowDescription(show bool) Option {
	return func(m *Model) {
		m.showDescription = show
	}
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}

func defaultClipboard(text string) error {
	return clipboard.WriteAll(text)
}
