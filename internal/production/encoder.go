// Package production provides production integrations: snapshot encoding, observation publishing, visualization.
// Implements realtime interfaces using stdlib where possible.
package production

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/comalice/handlerswitch"
)

var ErrBadSnapshot = errors.New("inconsistent snapshot")

// SnapshotEncoder writes and reads state snapshots for the trace.
type SnapshotEncoder interface {
	Encode(w io.Writer, snapshot handlerswitch.Snapshot) error
	Decode(r io.Reader) (handlerswitch.Snapshot, error)
}

// JSONEncoder is a stdlib-only encoder using indented JSON.
type JSONEncoder struct{}

func (JSONEncoder) Encode(w io.Writer, snapshot handlerswitch.Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (JSONEncoder) Decode(r io.Reader) (handlerswitch.Snapshot, error) {
	var snapshot handlerswitch.Snapshot
	if err := json.NewDecoder(r).Decode(&snapshot); err != nil {
		return handlerswitch.Snapshot{}, fmt.Errorf("json unmarshal: %w", err)
	}
	if err := validate(snapshot); err != nil {
		return handlerswitch.Snapshot{}, err
	}
	return snapshot, nil
}

// YAMLEncoder renders snapshots as YAML documents.
type YAMLEncoder struct{}

func (YAMLEncoder) Encode(w io.Writer, snapshot handlerswitch.Snapshot) error {
	data, err := yaml.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (YAMLEncoder) Decode(r io.Reader) (handlerswitch.Snapshot, error) {
	var snapshot handlerswitch.Snapshot
	if err := yaml.NewDecoder(r).Decode(&snapshot); err != nil {
		return handlerswitch.Snapshot{}, fmt.Errorf("yaml unmarshal: %w", err)
	}
	if err := validate(snapshot); err != nil {
		return handlerswitch.Snapshot{}, fmt.Errorf("snapshot validation after decode: %w", err)
	}
	return snapshot, nil
}

// validate checks that exactly the variant named by Handler carries fields.
func validate(s handlerswitch.Snapshot) error {
	switch s.Handler {
	case handlerswitch.KindFancy.String():
		if s.Fancy == nil || s.Simple != nil {
			return fmt.Errorf("%w: handler %q", ErrBadSnapshot, s.Handler)
		}
	case handlerswitch.KindSimple.String():
		if s.Simple == nil || s.Fancy != nil {
			return fmt.Errorf("%w: handler %q", ErrBadSnapshot, s.Handler)
		}
	default:
		return fmt.Errorf("%w: unknown handler %q", ErrBadSnapshot, s.Handler)
	}
	return nil
}
