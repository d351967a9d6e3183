package socket

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

const (
	replyGroupCreated     = "GROUP_CREATED"
	replyGroupJoined      = "GROUP_JOINED"
	replyGroupUnavailable = "GROUP_UNAVAILABLE"
)

// NewChatServer returns a Server with the echo, broadcast and group handlers
// registered.
func NewChatServer(opts ...ServerOption) *Server {
	s := NewServer(opts...)
	RegisterChatHandlers(s)
	return s
}

func RegisterChatHandlers(s *Server) {
	s.HandleFunc(TypeEcho, func(sock Socket, value json.RawMessage) {
		s.reply(sock, valueText(value))
	})

	s.HandleFunc(TypeEchoTimes3, func(sock Socket, value json.RawMessage) {
		text := valueText(value)
		for i := 0; i < 3; i++ {
			s.reply(sock, text)
		}
	})

	s.HandleFunc(TypeEchoToAll, func(_ Socket, value json.RawMessage) {
		s.Broadcast(valueText(value))
	})

	s.HandleFunc(TypeCreateGroup, func(sock Socket, value json.RawMessage) {
		name := valueText(value)
		if s.groups.Create(name, sock) {
			s.reply(sock, groupReply(replyGroupCreated, name))
			return
		}
		s.reply(sock, groupReply(replyGroupUnavailable, name))
	})

	s.HandleFunc(TypeJoinGroup, func(sock Socket, value json.RawMessage) {
		name := valueText(value)
		if s.groups.Join(name, sock) {
			s.reply(sock, groupReply(replyGroupJoined, name))
			return
		}
		s.reply(sock, groupReply(replyGroupUnavailable, name))
	})

	s.HandleFunc(TypeMessageGroup, func(sock Socket, value json.RawMessage) {
		var msg GroupMessage
		if err := json.Unmarshal(value, &msg); err != nil {
			s.logger.Warn("malformed group message",
				zap.String("socket", sock.ID()),
				zap.Error(err))
			return
		}
		sent := s.groups.Broadcast(msg.GroupName, msg.GroupMessage)
		s.logger.Debug("group message",
			zap.String("group", msg.GroupName),
			zap.Int("recipients", sent))
	})
}

func (s *Server) reply(sock Socket, text string) {
	if err := sock.Send(text); err != nil {
		s.logger.Warn("reply failed", zap.String("socket", sock.ID()), zap.Error(err))
	}
}

func groupReply(kind, name string) string {
	return fmt.Sprintf("%s: %s", kind, name)
}

// valueText returns the string a JSON string value decodes to, or the raw JSON
// for any other value.
func valueText(value json.RawMessage) string {
	var text string
	if err := json.Unmarshal(value, &text); err == nil {
		return text
	}
	return string(value)
}
