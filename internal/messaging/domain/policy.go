package domain

import (
	"strings"

	errprocess "daycare_messaging_service/pkg/err"
)

// CheckComposeShape validate content and the type/target combination for a sender role
func CheckComposeShape(role Role, req ComposeRequest) error {
	if strings.TrimSpace(req.Content) == "" {
		return errprocess.Validation("content must not be empty")
	}

	switch req.MessageType {
	case MessageTypeBroadcast:
		if req.GroupID != "" || req.RecipientID != "" {
			return errprocess.Validation("broadcast messages take neither group_id nor recipient_id")
		}
	case MessageTypeGroup:
		if req.GroupID == "" {
			return errprocess.Validation("group messages require group_id")
		}
		if req.RecipientID != "" {
			return errprocess.Validation("group messages take no recipient_id")
		}
	case MessageTypeIndividual:
		if req.GroupID != "" {
			return errprocess.Validation("individual messages take no group_id")
		}
		if role.IsStaff() && req.RecipientID == "" {
			return errprocess.Validation("staff must supply recipient_id for individual messages")
		}
		if role.IsParent() && req.RecipientID != "" {
			return errprocess.Validation("parents write to their own thread without recipient_id")
		}
	default:
		return errprocess.Validation("unknown message_type: " + string(req.MessageType))
	}
	return nil
}

// CanAuthor role rule for writing into a thread kind
func CanAuthor(role Role, kind ThreadKind) bool {
	switch kind {
	case MessageTypeBroadcast, MessageTypeGroup:
		return role.IsStaff()
	case MessageTypeIndividual:
		return role.IsStaff() || role.IsParent()
	}
	return false
}

// AuthoringThread thread a well-formed request from p lands in
func AuthoringThread(p Principal, req ComposeRequest) ThreadKey {
	switch req.MessageType {
	case MessageTypeGroup:
		return GroupThread(req.GroupID)
	case MessageTypeIndividual:
		if p.Role.IsParent() {
			return IndividualThread(p.UserID)
		}
		return IndividualThread(req.RecipientID)
	}
	return BroadcastThread
}

// VisibilityFacts directory and store facts the visibility rule depends on
type VisibilityFacts struct {
	GroupExists       bool
	HasChildInGroup   bool
	ThreadHasMessages bool
}

// CanView visibility rule for one thread
func CanView(p Principal, key ThreadKey, facts VisibilityFacts) bool {
	switch key.Kind {
	case MessageTypeBroadcast:
		return p.Role.Valid()
	case MessageTypeGroup:
		if !facts.GroupExists {
			return false
		}
		return p.Role.IsStaff() || (p.Role.IsParent() && facts.HasChildInGroup)
	case MessageTypeIndividual:
		if p.Role.IsParent() {
			return p.UserID == key.ID
		}
		return p.Role.IsStaff() && facts.ThreadHasMessages
	}
	return false
}
