package complete

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// gobModel mirrors Model with exported, gob-friendly field names; vector is
// already a defined type ([]float64) so it encodes directly.
type gobModel struct {
	Params             Params
	EntityEmbeddings   map[string]vector
	RelationEmbeddings map[string]vector
	Entities           []string
	Relations          []string
	Trained            bool
}

// Save serializes the model losslessly with encoding/gob. The format is
// opaque to callers; only Load is guaranteed to understand it.
func Save(m *Model) ([]byte, error) {
	var buf bytes.Buffer
	g := gobModel{
		Params:             m.Params,
		EntityEmbeddings:   m.EntityEmbeddings,
		RelationEmbeddings: m.RelationEmbeddings,
		Entities:           m.Entities,
		Relations:          m.Relations,
		Trained:            m.Trained,
	}
	if err := gob.NewEncoder(&buf).Encode(g); err != nil {
		return nil, fmt.Errorf("encoding transe model: %w", err)
	}
	return buf.Bytes(), nil
}

// Load deserializes a model previously produced by Save.
func Load(data []byte) (*Model, error) {
	var g gobModel
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&g); err != nil {
		return nil, fmt.Errorf("decoding transe model: %w", err)
	}
	return &Model{
		Params:             g.Params,
		EntityEmbeddings:   g.EntityEmbeddings,
		RelationEmbeddings: g.RelationEmbeddings,
		Entities:           g.Entities,
		Relations:          g.Relations,
		Trained:            g.Trained,
	}, nil
}
