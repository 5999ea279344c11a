package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/tlord101/VanTutor-sub000/config"
	"github.com/tlord101/VanTutor-sub000/models"
	"github.com/tlord101/VanTutor-sub000/repository"

	openai "github.com/sashabaranov/go-openai"
)

// ChatService streams tutor replies over SSE and persists the conversation.
type ChatService interface {
	// StreamTutorReply sends the student's message to the model, streams the
	// reply to the client as it arrives, and returns the full reply text.
	StreamTutorReply(ctx context.Context, profile *models.UserProfile, subject string, message string, writer http.ResponseWriter) (string, error)
	GetChatHistory(userID string, limit int) ([]models.ChatMessage, error)
}

type chatService struct {
	chatRepo repository.ChatRepository
}

// NewChatService creates a new instance of ChatService.
func NewChatService(chatRepo repository.ChatRepository) ChatService {
	return &chatService{chatRepo: chatRepo}
}

// buildTutorPrompt fills the configured system prompt template with the
// student's profile. Placeholders: #studentName#, #level#, #subject#.
func buildTutorPrompt(profile *models.UserProfile, subject string) string {
	prompt := config.AppConfig.LLMSystemPrompt
	if prompt == "" {
		prompt = "You are VanTutor, a patient and encouraging AI tutor helping #studentName# (level: #level#) study #subject#. Explain step by step and check understanding with short questions."
	}
	name := profile.DisplayName
	if name == "" {
		name = "the student"
	}
	level := profile.Level
	if level == "" {
		level = "unspecified"
	}
	prompt = strings.ReplaceAll(prompt, "#studentName#", name)
	prompt = strings.ReplaceAll(prompt, "#level#", level)
	prompt = strings.ReplaceAll(prompt, "#subject#", subject)
	return prompt
}

func (s *chatService) StreamTutorReply(
	ctx context.Context,
	profile *models.UserProfile,
	subject string,
	message string,
	writer http.ResponseWriter,
) (string, error) {
	if profile == nil {
		return "", errors.New("profile is required")
	}
	if strings.TrimSpace(message) == "" {
		return "", errors.New("message cannot be empty")
	}

	model := config.AppConfig.DefaultModel
	client, err := newLLMClient(model)
	if err != nil {
		log.Printf("ERROR: [ChatService] Failed to construct LLM client for model %s: %v", model, err)
		return "", fmt.Errorf("LLM client unavailable: %w", err)
	}

	llmMessages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: buildTutorPrompt(profile, subject)},
	}

	// Window the persisted history before prompting.
	historyLimit := config.AppConfig.ChatHistoryLimit
	history, err := s.chatRepo.GetMessagesByUserID(profile.UserID, historyLimit)
	if err != nil {
		// History is best-effort context; the reply can proceed without it.
		log.Printf("WARN: [ChatService] Could not load chat history for userID %s: %v. Continuing without history.", profile.UserID, err)
		history = nil
	}
	for _, msg := range history {
		var role string
		switch strings.ToLower(msg.Role) {
		case "assistant", "ai":
			role = openai.ChatMessageRoleAssistant
		default:
			role = openai.ChatMessageRoleUser
		}
		llmMessages = append(llmMessages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}

	llmMessages = append(llmMessages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})

	stream, err := client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: llmMessages,
		Stream:   true,
	})
	if err != nil {
		log.Printf("ERROR: [ChatService] CreateChatCompletionStream failed for model %s: %v", model, err)
		return "", fmt.Errorf("AI tutor is unavailable: %w", err)
	}
	defer stream.Close()

	writer.Header().Set("Content-Type", "text/event-stream")
	writer.Header().Set("Cache-Control", "no-cache")
	writer.Header().Set("Connection", "keep-alive")

	var fullReply strings.Builder
	var streamErr error

	for {
		response, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			streamErr = fmt.Errorf("failed to receive from completion stream: %w", recvErr)
			log.Printf("ERROR: [ChatService] %v", streamErr)
			break
		}
		if len(response.Choices) == 0 {
			continue
		}
		content := response.Choices[0].Delta.Content
		if content == "" {
			continue
		}
		fullReply.WriteString(content)

		payload, _ := json.Marshal(map[string]string{"content": content})
		if _, writeErr := fmt.Fprintf(writer, "data: %s\n\n", payload); writeErr != nil {
			streamErr = fmt.Errorf("failed to write SSE data to client: %w", writeErr)
			log.Printf("ERROR: [ChatService] %v", streamErr)
			break
		}
		if flusher, ok := writer.(http.Flusher); ok {
			flusher.Flush()
		}
	}

	reply := fullReply.String()

	// Persist both turns once the exchange is over. A partial reply from a
	// broken stream is still worth keeping as context.
	now := time.Now().UTC()
	if saveErr := s.chatRepo.SaveMessage(&models.ChatMessage{
		UserID: profile.UserID, Role: "user", Subject: subject, Content: message, Timestamp: now,
	}); saveErr != nil {
		log.Printf("WARN: [ChatService] Failed to persist user message for userID %s: %v", profile.UserID, saveErr)
	}
	if reply != "" {
		if saveErr := s.chatRepo.SaveMessage(&models.ChatMessage{
			UserID: profile.UserID, Role: "assistant", Subject: subject, Content: reply, Timestamp: now,
		}); saveErr != nil {
			log.Printf("WARN: [ChatService] Failed to persist assistant reply for userID %s: %v", profile.UserID, saveErr)
		}
	}

	if streamErr != nil {
		return reply, streamErr
	}
	log.Printf("INFO: [ChatService] Streamed tutor reply (%d chars) for userID %s.", len(reply), profile.UserID)
	return reply, nil
}

// GetChatHistory returns the persisted conversation for a user.
func (s *chatService) GetChatHistory(userID string, limit int) ([]models.ChatMessage, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty")
	}
	return s.chatRepo.GetMessagesByUserID(userID, limit)
}
