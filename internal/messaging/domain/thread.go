package domain

import (
	"strings"

	errprocess "daycare_messaging_service/pkg/err"
)

// ThreadKey address of a derived thread
type ThreadKey struct {
	Kind ThreadKind `json:"kind"`
	ID   string     `json:"id,omitempty"`
}

// BroadcastThread the tenant-wide thread
var BroadcastThread = ThreadKey{Kind: MessageTypeBroadcast}

// GroupThread thread of group groupID
func GroupThread(groupID string) ThreadKey {
	return ThreadKey{Kind: MessageTypeGroup, ID: groupID}
}

// IndividualThread thread anchored to parentID
func IndividualThread(parentID string) ThreadKey {
	return ThreadKey{Kind: MessageTypeIndividual, ID: parentID}
}

// String broadcast, group:<id> or individual:<id>
func (k ThreadKey) String() string {
	if k.Kind == MessageTypeBroadcast {
		return string(MessageTypeBroadcast)
	}
	return string(k.Kind) + ":" + k.ID
}

// ParseThreadKey build a ThreadKey from a kind and an optional id
func ParseThreadKey(kind, id string) (ThreadKey, error) {
	k := ThreadKey{Kind: MessageType(strings.TrimSpace(kind)), ID: strings.TrimSpace(id)}
	switch k.Kind {
	case MessageTypeBroadcast:
		if k.ID != "" {
			return ThreadKey{}, errprocess.Validation("broadcast thread takes no id")
		}
	case MessageTypeGroup, MessageTypeIndividual:
		if k.ID == "" {
			return ThreadKey{}, errprocess.Validation(string(k.Kind) + " thread requires an id")
		}
	default:
		return ThreadKey{}, errprocess.Validation("unknown thread kind: " + kind)
	}
	return k, nil
}
