package entities

// RemoteArtifact is a file fetched from an untrusted URL into a local
// temporary path. It is owned exclusively by the operation that created it
// and must be deleted before that operation returns.
type RemoteArtifact struct {
	SourceURL string
	Path      string
	Size      int64
}
