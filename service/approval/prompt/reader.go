package prompt

import (
	"bufio"
	"io"
	"strings"
	"sync"
)

// lineReader owns the input stream for the process lifetime. Only one
// goroutine ever reads from it; lines go to the active session, if any, and
// are dropped otherwise.
type lineReader struct {
	in      io.Reader
	once    sync.Once
	mu      sync.Mutex
	current *session
	err     error
	dropped int
}

type session struct {
	lines chan string
	done  chan struct{}
}

func newLineReader(in io.Reader) *lineReader {
	return &lineReader{in: in}
}

func (r *lineReader) run() {
	scanner := bufio.NewScanner(r.in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		r.mu.Lock()
		if r.current == nil {
			r.dropped++
		} else {
			select {
			case r.current.lines <- line:
			default:
				r.dropped++
			}
		}
		r.mu.Unlock()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = scanner.Err()
	if r.err == nil {
		r.err = io.EOF
	}
	if r.current != nil {
		close(r.current.done)
	}
}

// acquire opens a session; the previous one, if any, is replaced.
func (r *lineReader) acquire() *session {
	r.once.Do(func() { go r.run() })
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &session{lines: make(chan string, 16), done: make(chan struct{})}
	if r.err != nil {
		close(s.done)
	}
	r.current = s
	return s
}

func (r *lineReader) release(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == s {
		r.current = nil
	}
}

// Dropped returns the number of lines typed while no prompt was active.
func (r *lineReader) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *lineReader) failure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
