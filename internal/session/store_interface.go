package session

import "time"

// Session is a signed-in user. Tabs of the same session share one idle
// clock.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

type StoreInterface interface {
	Save(session *Session)
	Get(id string) (*Session, bool)
	Delete(id string)
	OnExpire(func(id string))
	Close() error
}
