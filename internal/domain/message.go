package domain

import "time"

// Thread aggregates one counterpart's conversation.
type Thread struct {
	CounterpartID   int64     `json:"user_id"`
	CounterpartName string    `json:"user_name"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	UnreadCount     int       `json:"unread_count"`
}

// Message is a single direct message between two users.
type Message struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	IsRead     bool      `json:"is_read"`
}

// TotalUnread sums the unread counts of all threads.
// Negative counts from a misbehaving server are ignored.
func TotalUnread(threads []Thread) int {
	total := 0
	for _, t := range threads {
		if t.UnreadCount > 0 {
			total += t.UnreadCount
		}
	}
	return total
}

// UnreadFor returns the messages addressed to userID that are not yet read.
func UnreadFor(messages []Message, userID int64) []Message {
	var unread []Message
	for _, m := range messages {
		if !m.IsRead && m.ReceiverID == userID {
			unread = append(unread, m)
		}
	}
	return unread
}
