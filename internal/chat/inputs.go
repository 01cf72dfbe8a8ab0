package chat

import "strings"

// OpenConversationInput asks for the conversation between the principal and ReceiverID
type OpenConversationInput struct {
	ActorID    string
	ReceiverID string
}

func (in OpenConversationInput) Validate() error {
	if strings.TrimSpace(in.ActorID) == "" {
		return &Error{Kind: KindUnauthenticated, Message: "Not Authenticated!"}
	}
	if strings.TrimSpace(in.ReceiverID) == "" {
		return ValidationError("Receiver ID is required.")
	}
	if in.ReceiverID == in.ActorID {
		return ValidationError("Cannot start a chat with yourself.")
	}
	return nil
}

// ConversationInput addresses one conversation on behalf of the principal.
// Used by getConversation and markRead.
type ConversationInput struct {
	ConversationID string
	ActorID        string
}

func (in ConversationInput) Validate() error {
	if strings.TrimSpace(in.ActorID) == "" {
		return &Error{Kind: KindUnauthenticated, Message: "Not Authenticated!"}
	}
	if strings.TrimSpace(in.ConversationID) == "" {
		return ValidationError("Chat ID is required")
	}
	return nil
}

// SendMessageInput carries a new message from the principal
type SendMessageInput struct {
	ConversationID string
	ActorID        string
	Text           string
}

func (in SendMessageInput) Validate() error {
	if err := (ConversationInput{ConversationID: in.ConversationID, ActorID: in.ActorID}).Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(in.Text) == "" {
		return ValidationError("Message text cannot be empty")
	}
	return nil
}

func validateActor(actorID string) error {
	if strings.TrimSpace(actorID) == "" {
		return &Error{Kind: KindUnauthenticated, Message: "Not Authenticated!"}
	}
	return nil
}
