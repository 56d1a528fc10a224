// blob/fake.go
package blob

import (
	"context"
	"sync"
)

// Fake is an in-memory Storage used by tests. It records every deleted
// URL in order.
type Fake struct {
	mu      sync.Mutex
	Deleted []string
	// Err, when set, is returned by every call.
	Err error
}

func NewFake() *Fake { return &Fake{} }

func (f *Fake) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Deleted = append(f.Deleted, url)
	return nil
}

func (f *Fake) DeleteMany(_ context.Context, urls []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	f.Deleted = append(f.Deleted, urls...)
	return len(urls), nil
}

// Count returns how many times url was deleted.
func (f *Fake) Count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.Deleted {
		if u == url {
			n++
		}
	}
	return n
}
