package participant

import (
	"bufio"
	"fmt"
	"os"
	"sync"
)

// Inbox appends every received message to a local file, one per line.
type Inbox struct {
	mu   sync.Mutex
	path string
}

// OpenInbox creates the file at path if needed. Existing content is kept.
func OpenInbox(path string) (*Inbox, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open inbox: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("open inbox: %w", err)
	}
	return &Inbox{path: path}, nil
}

// Path returns the inbox file path.
func (i *Inbox) Path() string { return i.path }

// Append writes messages in order.
func (i *Inbox) Append(messages ...string) error {
	if len(messages) == 0 {
		return nil
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	f, err := os.OpenFile(i.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("append inbox: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, m := range messages {
		w.WriteString(m)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("append inbox: %w", err)
	}
	return f.Close()
}

// ReadAll returns the recorded messages.
func (i *Inbox) ReadAll() ([]string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	f, err := os.Open(i.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out, sc.Err()
}
