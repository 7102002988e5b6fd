package handlers

import (
	"go.uber.org/zap"

	"github.com/gopherchat/gopherchat/internal/chat"
	"github.com/gopherchat/gopherchat/internal/conversation"
	"github.com/gopherchat/gopherchat/internal/document"
)

type Handler struct {
	ChatSvc *chat.Service
	ConvSvc *conversation.Service
	DocSvc  *document.Service
	Logger  *zap.Logger
}

func NewHandler(chatSvc *chat.Service, convSvc *conversation.Service, docSvc *document.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ChatSvc: chatSvc, ConvSvc: convSvc, DocSvc: docSvc, Logger: logger}
}
