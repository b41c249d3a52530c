package attendance

import (
	"context"
	"time"
)

type (
	// Element is a handle to a node of the remote page.
	Element interface {
		// Locator returns an absolute locator of the node, usable as a search root.
		Locator() string
	}

	// Session is one live browser driving the remote application.
	// A Session is used by at most one Worker at a time.
	Session interface {
		Navigate(ctx context.Context, url string) error
		// FindElement waits up to timeout for the first node matching locator.
		FindElement(ctx context.Context, locator string, timeout time.Duration) (Element, error)
		// FindElements waits up to timeout for at least one node matching locator and returns all of them.
		FindElements(ctx context.Context, locator string, timeout time.Duration) ([]Element, error)
		// FindWithin returns the descendants of parent matching the relative locator, without waiting.
		FindWithin(ctx context.Context, parent Element, locator string) ([]Element, error)
		Click(ctx context.Context, el Element) error
		ClearAndType(ctx context.Context, el Element, text string) error
		RunScript(ctx context.Context, script string, res interface{}) error
		Screenshot(ctx context.Context, path string) error
		Close() error
		// IsAlive attempts a trivial read; any failure means the browser is gone.
		IsAlive(ctx context.Context) bool
	}

	// Launcher starts new browser sessions.
	Launcher interface {
		Launch(ctx context.Context) (Session, error)
	}
)
