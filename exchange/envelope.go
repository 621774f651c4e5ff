package exchange

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
)

// envelope is the backend's standard response wrapper.
type envelope struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

// APIError is a non-success response from the backend. Message is the backend's
// human-readable explanation, when it sent one.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if text := http.StatusText(e.StatusCode); text != "" {
		return fmt.Sprintf("request failed: %d %s", e.StatusCode, text)
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// roleRef accepts a role given either as its numeric id or as an object with an id.
type roleRef struct {
	ID *int64
}

func (r *roleRef) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var id int64
	if err := json.Unmarshal(b, &id); err == nil {
		r.ID = &id
		return nil
	}
	var obj struct {
		ID *int64 `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return errors.Wrap(err, "decode role")
	}
	r.ID = obj.ID
	return nil
}

type wireProfile struct {
	ID        *int64  `json:"id"`
	Email     string  `json:"email"`
	Username  string  `json:"username"`
	Confirmed bool    `json:"confirmed"`
	Role      roleRef `json:"role"`
}

// decodeProfile accepts the profile either bare or inside the envelope's data.
func decodeProfile(body []byte) (*users.Profile, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Wrap(ErrMalformedResponse, err.Error())
	}
	raw := body
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		raw = env.Data
	}

	var wp wireProfile
	if err := json.Unmarshal(raw, &wp); err != nil {
		return nil, errors.Wrap(ErrMalformedResponse, err.Error())
	}
	if wp.ID == nil {
		return nil, errors.Wrap(ErrMalformedResponse, "profile has no id")
	}
	return &users.Profile{
		ID:        *wp.ID,
		Email:     wp.Email,
		Username:  wp.Username,
		Confirmed: wp.Confirmed,
		RoleID:    wp.Role.ID,
	}, nil
}
