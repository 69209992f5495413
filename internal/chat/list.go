package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// List owns the ordered session list for one account. Streaming updates are
// matched by session and message id so chunks for a deleted or replaced
// session are dropped instead of landing in whatever session is now current.
type List struct {
	mu       sync.Mutex
	sessions []Session
}

func NewList() *List {
	return &List{}
}

// Snapshot returns a copy of the session list.
func (l *List) Snapshot() []Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Session, len(l.sessions))
	copy(out, l.sessions)
	return out
}

// Replace swaps in a fetched snapshot wholesale.
func (l *List) Replace(sessions []Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions = append([]Session(nil), sessions...)
}

// Create prepends a new session and returns it.
func (l *List) Create(modelID string, godMode bool) Session {
	s := NewSession(modelID, godMode)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions = append([]Session{s}, l.sessions...)
	return s
}

func (l *List) Get(id string) (Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.sessions {
		if s.ID == id {
			return s, true
		}
	}
	return Session{}, false
}

func (l *List) Delete(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, s := range l.sessions {
		if s.ID == id {
			l.sessions = append(l.sessions[:i], l.sessions[i+1:]...)
			return true
		}
	}
	return false
}

func (l *List) SetModel(id, modelID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s := l.find(id); s != nil {
		s.ModelID = modelID
		s.LastModified = time.Now().UnixMilli()
		return true
	}
	return false
}

func (l *List) SetTone(id string, tone Tone) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s := l.find(id); s != nil {
		s.Tone = tone
		s.LastModified = time.Now().UnixMilli()
		return true
	}
	return false
}

// AppendUserMessage adds a user message, deriving the session title from the
// first one.
func (l *List) AppendUserMessage(sessionID, text string, attachments []Attachment) (Message, bool) {
	msg := Message{
		ID:          uuid.NewString(),
		Role:        RoleUser,
		Text:        text,
		Timestamp:   time.Now().UnixMilli(),
		Attachments: attachments,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.find(sessionID)
	if s == nil {
		return Message{}, false
	}
	s.Messages = append(s.Messages, msg)
	s.LastModified = msg.Timestamp
	if s.Title == "New Chat" {
		s.Title = DeriveTitle(text)
	}
	return msg, true
}

// BeginModelMessage opens a streaming model message and returns its id.
func (l *List) BeginModelMessage(sessionID string) (string, bool) {
	msg := Message{
		ID:          uuid.NewString(),
		Role:        RoleModel,
		Timestamp:   time.Now().UnixMilli(),
		IsStreaming: true,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.find(sessionID)
	if s == nil {
		return "", false
	}
	s.Messages = append(s.Messages, msg)
	s.LastModified = msg.Timestamp
	return msg.ID, true
}

// AppendChunk appends streamed text to an in-progress message. Returns false
// when the target session or message no longer exists; the caller drops the
// chunk.
func (l *List) AppendChunk(sessionID, messageID, text string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.find(sessionID)
	if s == nil {
		return false
	}
	for i := range s.Messages {
		if s.Messages[i].ID == messageID {
			s.Messages[i].Text += text
			return true
		}
	}
	return false
}

// FinishModelMessage closes a streaming message and attaches suggestions.
func (l *List) FinishModelMessage(sessionID, messageID string, suggestions []string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.find(sessionID)
	if s == nil {
		return false
	}
	for i := range s.Messages {
		if s.Messages[i].ID == messageID {
			s.Messages[i].IsStreaming = false
			s.Messages[i].Suggestions = suggestions
			s.LastModified = time.Now().UnixMilli()
			return true
		}
	}
	return false
}

// find returns a pointer into the list. Callers hold the lock.
func (l *List) find(id string) *Session {
	for i := range l.sessions {
		if l.sessions[i].ID == id {
			return &l.sessions[i]
		}
	}
	return nil
}
