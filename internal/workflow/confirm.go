// Package workflow implements the two-phase save/confirm/commit machinery for
// post and user edits. A staged snapshot plus a confirmation marker live in
// the caller's session between the preview request and the commit request.
package workflow

import (
	"encoding/json"

	"bulletinboard/internal/session"
)

// Session keys for the per-resource staged edit.
const (
	PostKey = "confirm:post"
	UserKey = "confirm:user"
)

// State holds a staged edit awaiting confirmation. A missing State under the
// resource key means no edit is pending.
type State struct {
	// Confirmed marks the snapshot as previewed. A commit submit is honored
	// only when this marker is set.
	Confirmed bool `json:"confirmed"`
	// Snapshot carries the validated form values captured at stage time.
	Snapshot json.RawMessage `json:"snapshot"`
	// StagedFile names an uploaded file parked in temporary storage, empty
	// when the stage carried no upload.
	StagedFile string `json:"staged_file,omitempty"`
}

// PostDraft is the staged snapshot of a post create or edit.
type PostDraft struct {
	PostID      uint   `json:"post_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// UserDraft is the staged snapshot of a user create or edit.
type UserDraft struct {
	UserID       uint   `json:"user_id,omitempty"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password,omitempty"`
	Type         string `json:"type"`
	Phone        string `json:"phone,omitempty"`
	DOB          string `json:"dob,omitempty"`
	Address      string `json:"address,omitempty"`
	Profile      string `json:"profile,omitempty"`
	UpdatedImage bool   `json:"updated_image,omitempty"`
}

// Load returns the staged edit under key, or nil when nothing is staged.
func Load(sess *session.Session, key string) *State {
	var st State
	if !sess.Get(key, &st) {
		return nil
	}
	return &st
}

// Stage captures snapshot under key with the confirmation marker set. Any
// previously staged edit under the same key is replaced wholesale.
func Stage(sess *session.Session, key string, snapshot any, stagedFile string) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return sess.Set(key, State{Confirmed: true, Snapshot: raw, StagedFile: stagedFile})
}

// Clear drops the staged edit under key, returning the workflow to its
// initial state.
func Clear(sess *session.Session, key string) {
	sess.Delete(key)
}

// Snapshot decodes the staged snapshot into a draft value.
func Snapshot[T any](st *State) (T, error) {
	var draft T
	err := json.Unmarshal(st.Snapshot, &draft)
	return draft, err
}
