package web

import "context"

// Flasher stores one-shot messages across a redirect. scs.SessionManager
// satisfies it.
type Flasher interface {
	Put(ctx context.Context, key string, val interface{})
	PopString(ctx context.Context, key string) string
}

const (
	flashKey = "flash"
	errorKey = "flash_error"
)

// FlashError queues an error message for the next page.
func FlashError(f Flasher, ctx context.Context, msg string) {
	f.Put(ctx, errorKey, msg)
}

// FlashInfo queues an informational message for the next page.
func FlashInfo(f Flasher, ctx context.Context, msg string) {
	f.Put(ctx, flashKey, msg)
}

// Pop moves queued messages onto p.
func Pop(f Flasher, ctx context.Context, p *Page) {
	if msg := f.PopString(ctx, errorKey); msg != "" && p.Error == "" {
		p.Error = msg
	}
	if msg := f.PopString(ctx, flashKey); msg != "" {
		p.Flash = msg
	}
}
