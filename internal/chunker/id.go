package chunker

import (
	"github.com/docbase/rag-backend/internal/entity"
	"github.com/google/uuid"
)

// chunkNamespace is the fixed UUID namespace for deterministic chunk ids.
// Changing it invalidates every previously indexed chunk id.
var chunkNamespace = uuid.MustParse("9f2c5e8a-41d7-4b6e-a0c3-7d1f8e2b6a54")

// ChunkID derives a stable chunk id from the source id, view type and
// structural path. Re-indexing byte-identical content therefore produces
// byte-identical ids, making upserts idempotent.
func ChunkID(sourceID string, view entity.ViewType, path string) string {
	name := sourceID + "\x1f" + string(view) + "\x1f" + path
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}
