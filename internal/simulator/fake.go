package simulator

import (
	"context"
	"sync"

	"voxd/internal/types"
)

// Fake is an in-memory InputSimulator for tests. The clipboard is a
// plain guarded string that tests (and concurrently, the code under
// test) read and write; every simulation verb is recorded.
type Fake struct {
	mu        sync.Mutex
	clip      *string
	selected  *string
	front     types.FrontApp
	textFocus bool

	Pastes     []string
	Keystrokes []string
	Dismissals int
	Writes     []string
}

// NewFake returns a fake with an empty clipboard.
func NewFake() *Fake {
	return &Fake{}
}

// SetClipboard simulates an external writer (the dictation tool or the
// user) replacing the clipboard.
func (f *Fake) SetClipboard(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clip = &text
}

// ClearClipboard empties the clipboard.
func (f *Fake) ClearClipboard() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clip = nil
}

// SetSelectedText sets what ReadSelectedText reports.
func (f *Fake) SetSelectedText(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = &text
}

// SetFrontApp sets what FrontApplication reports.
func (f *Fake) SetFrontApp(app types.FrontApp) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.front = app
}

// SetTextFocus sets what FocusIsTextInput reports.
func (f *Fake) SetTextFocus(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textFocus = v
}

func (f *Fake) ReadClipboard() *string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clip == nil {
		return nil
	}
	v := *f.clip
	return &v
}

func (f *Fake) WriteClipboard(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clip = &text
	f.Writes = append(f.Writes, text)
	return nil
}

func (f *Fake) ReadSelectedText() *string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selected
}

func (f *Fake) SimulatePaste(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pastes = append(f.Pastes, text)
	return nil
}

func (f *Fake) SimulateKeystrokes(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Keystrokes = append(f.Keystrokes, text)
	return nil
}

func (f *Fake) SimulateDismiss(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Dismissals++
	return nil
}

func (f *Fake) FocusIsTextInput() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.textFocus
}

func (f *Fake) FrontApplication() types.FrontApp {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.front
}

// PasteCount returns the number of recorded pastes.
func (f *Fake) PasteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Pastes)
}

// LastWrite returns the most recent clipboard write, or "".
func (f *Fake) LastWrite() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Writes) == 0 {
		return ""
	}
	return f.Writes[len(f.Writes)-1]
}
