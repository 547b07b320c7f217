package content

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ID is a content identifier (a CID) naming an immutable blob on the
// content-addressed network.
type ID string

// IsZero reports whether the id is empty.
func (id ID) IsZero() bool {
	return id == ""
}

func (id ID) String() string {
	return string(id)
}

// link is the DAG-JSON form of an id: {"/": "<cid>"}.
type link struct {
	CID string `json:"/" yaml:"/"`
}

// UnmarshalJSON accepts either a bare string or the link form.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(strings.TrimSpace(s))
		return nil
	}

	var l link
	if err := json.Unmarshal(data, &l); err != nil {
		return eris.Wrap(err, "content id must be a string or {\"/\": cid}")
	}
	*id = ID(strings.TrimSpace(l.CID))
	return nil
}

// MarshalJSON encodes the id in link form.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(link{CID: string(id)})
}

// UnmarshalYAML accepts either a scalar or the link form.
func (id *ID) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*id = ID(strings.TrimSpace(node.Value))
		return nil
	case yaml.MappingNode:
		var l link
		if err := node.Decode(&l); err != nil {
			return eris.Wrap(err, "failed to decode content link")
		}
		*id = ID(strings.TrimSpace(l.CID))
		return nil
	default:
		return eris.Errorf("line %d: content id must be a string or {\"/\": cid}", node.Line)
	}
}
