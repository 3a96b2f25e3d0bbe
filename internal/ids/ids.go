// Package ids implements the identifier grammar from spec.md §6: the
// content-addressed artifact/revision/chunk ids, a UUID generator for the
// job, event, evidence and entity ids, and the "evt_" wire form of event ids.
package ids

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ArtifactUID computes "uid_" || sha256(source_system||":"||source_id)[:16]
// when a source id is supplied, else a random 16-hex-char uid. Stable
// across revisions of the same logical artifact.
func ArtifactUID(sourceSystem, sourceID string) string {
	if sourceID == "" {
		return "uid_" + randomHex(16)
	}
	sum := sha256.Sum256([]byte(sourceSystem + ":" + sourceID))
	return "uid_" + hex.EncodeToString(sum[:])[:16]
}

// RevisionID computes "rev_" || sha256(content)[:16]; uniquely identifies
// content regardless of which artifact_uid it is filed under.
func RevisionID(content string) string {
	sum := sha256.Sum256([]byte(content))
	return "rev_" + hex.EncodeToString(sum[:])[:16]
}

// ArtifactID computes the vector-store cross-reference id
// "art_" || sha256(content)[:12].
func ArtifactID(content string) string {
	sum := sha256.Sum256([]byte(content))
	return "art_" + hex.EncodeToString(sum[:])[:12]
}

// ChunkID computes "{artifact_id}::chunk::{index:03d}::{sha256(chunk)[:8]}".
func ChunkID(artifactID string, index int, chunkContent string) string {
	sum := sha256.Sum256([]byte(chunkContent))
	return fmt.Sprintf("%s::chunk::%03d::%s", artifactID, index, hex.EncodeToString(sum[:])[:8])
}

// NewUUID returns a fresh UUID, used for job, event, evidence and entity
// ids alike. Only event ids get a wire prefix ("evt_", via WireEventID) at
// the RPC boundary; the prefix is never stored in the relational primary
// key, since the relational schema's PKs are plain UUIDs per spec.md §3.
func NewUUID() string { return uuid.NewString() }

// WireEventID formats a raw event UUID for the wire: "evt_" followed by the
// UUID with hyphens stripped.
func WireEventID(eventID string) string {
	return "evt_" + strings.ReplaceAll(eventID, "-", "")
}

// ParseWireEventID reverses WireEventID, reconstructing a canonical UUID
// string from the wire form. Returns an error if the form is invalid.
func ParseWireEventID(wire string) (string, error) {
	raw := strings.TrimPrefix(wire, "evt_")
	if len(raw) != 32 {
		return "", fmt.Errorf("ids: malformed evt id %q", wire)
	}
	u, err := uuid.Parse(fmt.Sprintf("%s-%s-%s-%s-%s", raw[0:8], raw[8:12], raw[12:16], raw[16:20], raw[20:32]))
	if err != nil {
		return "", fmt.Errorf("ids: malformed evt id %q: %w", wire, err)
	}
	return u.String(), nil
}

func randomHex(n int) string {
	b := make([]byte, (n+1)/2)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)[:n]
}
