package portal

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

type ChatRoom struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Members []int64 `json:"members"`
}

type ChatMessage struct {
	ID     int64  `json:"id"`
	Room   int64  `json:"room"`
	Sender int64  `json:"sender"`
	Text   string `json:"text"`
	SentAt string `json:"sent_at"`
}

// ChatRooms lists the rooms the signed-in user belongs to.
func (s *Service) ChatRooms(ctx context.Context) ([]ChatRoom, error) {
	return list[ChatRoom](ctx, s, "/api/chat/rooms/", nil)
}

// ChatMessages lists a room's messages, newest first. Before, when
// non-zero, pages backwards from a message id.
func (s *Service) ChatMessages(ctx context.Context, roomID int64, before int64) ([]ChatMessage, error) {
	query := url.Values{}
	if before > 0 {
		query.Set("before", strconv.FormatInt(before, 10))
	}
	return list[ChatMessage](ctx, s, fmt.Sprintf("/api/chat/rooms/%d/messages/", roomID), query)
}

// SendChatMessage posts a message to a room.
func (s *Service) SendChatMessage(ctx context.Context, roomID int64, text string) (*ChatMessage, error) {
	var message ChatMessage
	if err := s.client.PostJSON(ctx, fmt.Sprintf("/api/chat/rooms/%d/messages/", roomID),
		map[string]string{"text": text}, &message); err != nil {
		return nil, err
	}
	return &message, nil
}
