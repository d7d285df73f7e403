package session

import (
	"fmt"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Whitelist is the ordered set of refresh tokens a user currently holds, one
// per signed-in device. Methods never mutate the receiver; they return the
// updated list.
type Whitelist []string

func (w Whitelist) Contains(token string) bool {
	return slices.Contains(w, token)
}

func (w Whitelist) Len() int {
	return len(w)
}

func (w Whitelist) Add(token string) Whitelist {
	out := make(Whitelist, 0, len(w)+1)
	out = append(out, w...)
	return append(out, token)
}

// Remove drops every entry equal to token. Removing an absent token is a no-op.
func (w Whitelist) Remove(token string) Whitelist {
	out := make(Whitelist, 0, len(w))
	for _, t := range w {
		if t != token {
			out = append(out, t)
		}
	}
	return out
}

func (w Whitelist) Rotate(oldToken, newToken string) Whitelist {
	return w.Remove(oldToken).Add(newToken)
}

// UnmarshalBSONValue accepts an array, a single string from older documents,
// or null.
func (w *Whitelist) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	switch t {
	case bsontype.Null, bsontype.Undefined:
		*w = Whitelist{}
		return nil
	case bsontype.Array:
		var values []string
		if err := bson.UnmarshalValue(t, data, &values); err != nil {
			return err
		}
		*w = Whitelist(values)
		return nil
	case bsontype.String:
		var value string
		if err := bson.UnmarshalValue(t, data, &value); err != nil {
			return err
		}
		if strings.TrimSpace(value) == "" {
			*w = Whitelist{}
			return nil
		}
		*w = Whitelist{value}
		return nil
	default:
		return fmt.Errorf("cannot decode %s into Whitelist", t)
	}
}

// MarshalBSONValue always writes an array, never null.
func (w Whitelist) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if w == nil {
		return bson.MarshalValue([]string{})
	}
	return bson.MarshalValue([]string(w))
}
