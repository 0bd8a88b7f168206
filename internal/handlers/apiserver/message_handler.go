package apiserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"zeechat/internal/chat"
	"zeechat/internal/middleware"
	"zeechat/internal/models"
	"zeechat/internal/services"
)

// MessageHandler 封装了消息生命周期相关的 HTTP 处理器方法。
// 这是权威的持久化路径：落库成功后由服务层尽力向在线接收者扇出。
type MessageHandler struct {
	messageService  *services.MessageService
	reactionService *services.ReactionService
	deletionService *services.DeletionService
}

// NewMessageHandler 创建一个新的 MessageHandler 实例。
func NewMessageHandler(
	messageService *services.MessageService,
	reactionService *services.ReactionService,
	deletionService *services.DeletionService,
) *MessageHandler {
	return &MessageHandler{
		messageService:  messageService,
		reactionService: reactionService,
		deletionService: deletionService,
	}
}

// SendMessageRequest 是消息创建请求的结构体。
type SendMessageRequest struct {
	Message  string `json:"message"`
	Type     string `json:"type,omitempty"`
	MediaURL string `json:"mediaUrl,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// ReactRequest 是表情回应请求的结构体。
type ReactRequest struct {
	Emoji string `json:"emoji"`
}

// DeleteMessageRequest 是消息删除请求的结构体；Scope 为 for_everyone 或 me。
type DeleteMessageRequest struct {
	Scope string `json:"type"`
}

func pathID(r *http.Request, name string) (uint, bool) {
	raw, ok := mux.Vars(r)[name]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// SendMessage 处理 POST /messages/send/{userId}：创建并持久化一条消息。
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	senderID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}
	receiverID, ok := pathID(r, "userId")
	if !ok {
		writeJSONError(w, "接收者ID无效", http.StatusBadRequest)
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	full, err := h.messageService.CreateMessage(r.Context(), services.CreateMessageInput{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       req.Message,
		Kind:       models.MessageKind(req.Type),
		MediaURL:   req.MediaURL,
		Caption:    req.Caption,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, full)
}

// GetMessages 处理 GET /messages/{userId}：返回与对端的可见消息历史。
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}
	counterpartID, ok := pathID(r, "userId")
	if !ok {
		writeJSONError(w, "对端用户ID无效", http.StatusBadRequest)
		return
	}

	messages, err := h.messageService.GetConversationMessages(r.Context(), viewerID, counterpartID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, messages)
}

// ReactToMessage 处理 POST /messages/react/{messageId}：切换表情回应。
func (h *MessageHandler) ReactToMessage(w http.ResponseWriter, r *http.Request) {
	reactorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}
	messageID, ok := pathID(r, "messageId")
	if !ok {
		writeJSONError(w, "消息ID无效", http.StatusBadRequest)
		return
	}

	var req ReactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	message, err := h.reactionService.SetReaction(r.Context(), messageID, reactorID, req.Emoji)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, message)
}

// DeleteMessage 处理 DELETE /messages/{messageId}：按请求的范围删除。
func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}
	messageID, ok := pathID(r, "messageId")
	if !ok {
		writeJSONError(w, "消息ID无效", http.StatusBadRequest)
		return
	}

	var req DeleteMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	switch req.Scope {
	case chat.DeleteScopeEveryone:
		message, err := h.deletionService.DeleteForEveryone(r.Context(), messageID, actorID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, message)
	case chat.DeleteScopeMe, "":
		if err := h.deletionService.DeleteForViewer(r.Context(), messageID, actorID); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, map[string]string{"message": "消息已删除"})
	default:
		writeJSONError(w, "删除范围无效", http.StatusBadRequest)
	}
}

// ClearChat 处理 DELETE /messages/clear/{userId}：清空发起者视角的聊天记录。
func (h *MessageHandler) ClearChat(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}
	counterpartID, ok := pathID(r, "userId")
	if !ok {
		writeJSONError(w, "对端用户ID无效", http.StatusBadRequest)
		return
	}

	if err := h.messageService.ClearChatForViewer(r.Context(), viewerID, counterpartID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "聊天记录已清空"})
}

// ListConversations 处理 GET /conversations：返回会话列表及最后一条消息。
func (h *MessageHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}

	previews, err := h.messageService.ListConversationsWithLastMessage(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, previews)
}
