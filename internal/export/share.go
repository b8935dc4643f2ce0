// Package export builds shareable audit bundles. A bundle snapshots a
// playbook together with its version history, latest recommendation, and
// patch trail into a single gzip-compressed JSON document an agronomist can
// hand to a collaborator or attach to a compliance record.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"

	"fieldscout/internal/patch"
	"fieldscout/internal/types"
)

// bundleSchemaVersion is bumped when the bundle layout changes shape.
const bundleSchemaVersion = 1

// Bundle is the exported audit artifact.
type Bundle struct {
	SchemaVersion  int                    `json:"schemaVersion"`
	GeneratedAt    time.Time              `json:"generatedAt"`
	Playbook       *types.Playbook        `json:"playbook"`
	Versions       []int                  `json:"versions"`
	Recommendation *types.Recommendation  `json:"recommendation,omitempty"`
	Weather        *types.WeatherFeatures `json:"weather,omitempty"`
	PatchHistory   []patch.LogEntry       `json:"patchHistory"`
}

// NewBundle assembles a bundle from its parts. Recommendation and weather are
// optional; a playbook with no generated recommendation still exports.
func NewBundle(
	playbook *types.Playbook,
	versions []int,
	rec *types.Recommendation,
	wx *types.WeatherFeatures,
	history []patch.LogEntry,
	generatedAt time.Time,
) (*Bundle, error) {
	if playbook == nil {
		return nil, fmt.Errorf("playbook must not be nil")
	}
	if history == nil {
		history = []patch.LogEntry{}
	}
	return &Bundle{
		SchemaVersion:  bundleSchemaVersion,
		GeneratedAt:    generatedAt.UTC(),
		Playbook:       playbook,
		Versions:       versions,
		Recommendation: rec,
		Weather:        wx,
		PatchHistory:   history,
	}, nil
}

// Write streams the bundle to w as gzip-compressed JSON.
func Write(w io.Writer, bundle *Bundle) error {
	if bundle == nil {
		return fmt.Errorf("bundle must not be nil")
	}

	gz, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("creating gzip writer: %w", err)
	}

	enc := json.NewEncoder(gz)
	if err := enc.Encode(bundle); err != nil {
		gz.Close()
		return fmt.Errorf("encoding bundle: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("flushing bundle: %w", err)
	}
	return nil
}

// Read decodes a bundle previously written with Write.
func Read(r io.Reader) (*Bundle, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening bundle: %w", err)
	}
	defer gz.Close()

	var bundle Bundle
	if err := json.NewDecoder(gz).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("decoding bundle: %w", err)
	}
	return &bundle, nil
}
