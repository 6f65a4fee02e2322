package canvas

import (
	"encoding/json"
	"fmt"

	domain "github.com/example/canvas-relay/domain/canvas"
)

// Message types on the wire.
const (
	TypeJoin        = "join"
	TypeWelcome     = "welcome"
	TypeFullSync    = "fullSync"
	TypeLeave       = "leave"
	TypeUserList    = "userList"
	TypeCursor      = "cursor"
	TypeImageAdd    = "imageAdd"
	TypeImageUpdate = "imageUpdate"
	TypeImageRemove = "imageRemove"
	TypeTextAdd     = "textAdd"
	TypeTextUpdate  = "textUpdate"
	TypeTextRemove  = "textRemove"
	TypeRequestSync = "requestSync"
	TypePushSync    = "pushSync"
	TypeError       = "error"
)

// Ephemeral reports whether messages of kind are relayed without touching
// room state: cursor moves and kinds the relay does not know.
func Ephemeral(kind string) bool {
	switch kind {
	case TypeJoin, TypeImageAdd, TypeImageUpdate, TypeImageRemove,
		TypeTextAdd, TypeTextUpdate, TypeTextRemove, TypeRequestSync, TypePushSync:
		return false
	default:
		return true
	}
}

const (
	fieldType     = "type"
	fieldSenderID = "senderId"
)

// Fields is a flat wire record. Values stay raw JSON so that attributes the
// relay does not interpret are passed through byte for byte.
type Fields map[string]json.RawMessage

// String returns the field as a string, reporting false if it is absent or
// not a JSON string.
func (f Fields) String(key string) (string, bool) {
	raw, ok := f[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (f Fields) clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// attributes returns a copy of f without the envelope fields.
func (f Fields) attributes() Fields {
	out := f.clone()
	delete(out, fieldType)
	delete(out, fieldSenderID)
	return out
}

// Message is one decoded inbound frame: its kind plus every other field.
type Message struct {
	Type   string
	Fields Fields
}

// DecodeMessage parses a single text frame. Anything that is not a JSON
// object with an optional string "type" is malformed.
func DecodeMessage(data []byte) (Message, error) {
	var fields Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fields == nil {
		return Message{}, fmt.Errorf("%w: null frame", ErrMalformed)
	}

	var typ string
	if raw, ok := fields[fieldType]; ok {
		if err := json.Unmarshal(raw, &typ); err != nil {
			return Message{}, fmt.Errorf("%w: type must be a string", ErrMalformed)
		}
		delete(fields, fieldType)
	}
	return Message{Type: typ, Fields: fields}, nil
}

// MarshalJSON encodes the message back into a single flat record.
func (m Message) MarshalJSON() ([]byte, error) {
	out := m.Fields.clone()
	typ, err := json.Marshal(m.Type)
	if err != nil {
		return nil, err
	}
	out[fieldType] = typ
	return json.Marshal(out)
}

// stamped returns a copy of m carrying the sender's client id.
func (m Message) stamped(senderID string) Message {
	fields := m.Fields.clone()
	id, _ := json.Marshal(senderID)
	fields[fieldSenderID] = id
	return Message{Type: m.Type, Fields: fields}
}

// joinRequest reads the optional room id and display name of a join.
func joinRequest(m Message, defaultRoom string) (roomID, userName string) {
	roomID, _ = m.Fields.String("roomId")
	if roomID == "" {
		roomID = defaultRoom
	}
	userName, _ = m.Fields.String("userName")
	if userName == "" {
		userName = DefaultUserName
	}
	return roomID, userName
}

// syncLists reads the images and texts arrays of a pushSync. Missing or null
// lists are empty.
func syncLists(m Message) (images, texts []Fields, err error) {
	if images, err = objectList(m.Fields, "images"); err != nil {
		return nil, nil, err
	}
	if texts, err = objectList(m.Fields, "texts"); err != nil {
		return nil, nil, err
	}
	return images, texts, nil
}

func objectList(f Fields, key string) ([]Fields, error) {
	raw, ok := f[key]
	if !ok {
		return nil, nil
	}
	var list []Fields
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: %s must be a list of objects", ErrMalformed, key)
	}
	return list, nil
}

type welcomeMessage struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
	RoomID   string `json:"roomId"`
}

type fullSyncMessage struct {
	Type   string   `json:"type"`
	Images []Fields `json:"images"`
	Texts  []Fields `json:"texts"`
}

type presenceMessage struct {
	Type     string `json:"type"`
	SenderID string `json:"senderId"`
	UserName string `json:"userName"`
}

type userListMessage struct {
	Type  string          `json:"type"`
	Users []domain.Member `json:"users"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
