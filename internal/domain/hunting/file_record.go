// Package hunting contains the core domain model for the credential hunt:
// file records read from the corpus, candidates selected by the pattern
// library, verdicts returned by a verifier, and confirmed leaks persisted by
// the result sink.
package hunting

// FileRecord is one file read from the corpus. It is immutable and consumed
// exactly once by the extractor.
type FileRecord struct {
	repoName  string
	path      string
	content   string
	sizeBytes int
}

// NewFileRecord creates a FileRecord from a corpus row.
func NewFileRecord(repoName, path, content string, sizeBytes int) FileRecord {
	return FileRecord{
		repoName:  repoName,
		path:      path,
		content:   content,
		sizeBytes: sizeBytes,
	}
}

// RepoName returns the repository the file belongs to.
func (f FileRecord) RepoName() string { return f.repoName }

// Path returns the file path within the repository.
func (f FileRecord) Path() string { return f.path }

// Content returns the file content.
func (f FileRecord) Content() string { return f.content }

// SizeBytes returns the file size as reported by the corpus.
func (f FileRecord) SizeBytes() int { return f.sizeBytes }
