package domain

// CursorState distinguishes the three pagination states an import job can be
// in. An empty-string token from the provider is a terminal signal and must
// not be confused with "not started", so the state is explicit rather than
// derived from string emptiness.
type CursorState int

const (
	// CursorNotStarted means no page has been fetched yet.
	CursorNotStarted CursorState = iota
	// CursorInProgress means the provider returned a token for the next page.
	CursorInProgress
	// CursorDone means the terminal page has been reached.
	CursorDone
)

// Cursor is the tri-state pagination position of an import job.
type Cursor struct {
	state CursorState
	token string
}

// StartCursor returns the cursor for a job that has not fetched any page.
func StartCursor() Cursor {
	return Cursor{state: CursorNotStarted}
}

// ResumeCursor returns an in-progress cursor carrying the provider token.
func ResumeCursor(token string) Cursor {
	return Cursor{state: CursorInProgress, token: token}
}

// DoneCursor returns the terminal cursor.
func DoneCursor() Cursor {
	return Cursor{state: CursorDone}
}

// NextCursor maps a provider-returned next-page token to a cursor.
// Providers signal exhaustion with an empty token.
func NextCursor(token string) Cursor {
	if token == "" {
		return DoneCursor()
	}
	return ResumeCursor(token)
}

// State returns the cursor state.
func (c Cursor) State() CursorState {
	return c.state
}

// Token returns the provider pagination token. It is empty unless the cursor
// is in progress.
func (c Cursor) Token() string {
	return c.token
}

// Started reports whether at least one page has been fetched.
func (c Cursor) Started() bool {
	return c.state != CursorNotStarted
}

// Done reports whether the terminal page has been reached.
func (c Cursor) Done() bool {
	return c.state == CursorDone
}
