package sandbox

// Node mirrors the remote's file tree entries. Paths are relative to the
// sandbox workspace root.
type Node struct {
	Name        string  `json:"name"`
	Path        string  `json:"path"`
	IsDirectory bool    `json:"isDirectory"`
	Size        int64   `json:"size,omitempty"`
	Modified    float64 `json:"modified,omitempty"`
	Children    []*Node `json:"children,omitempty"`
}

// ScriptInfo is one entry of the remote scripts listing. Modified is float
// seconds as the remote reports it; consumers floor it to whole seconds
// before comparing.
type ScriptInfo struct {
	Name     string  `json:"name"`
	Path     string  `json:"path"`
	Size     int64   `json:"size"`
	Modified float64 `json:"modified"`
}

// ModifiedUnix returns the listing modtime floored to integer seconds. The
// truncation makes equality robust across platforms with different mtime
// precision.
func (s *ScriptInfo) ModifiedUnix() int64 {
	return int64(s.Modified)
}

// RemoteFile is a fetched file body.
type RemoteFile struct {
	Name     string  `json:"name"`
	Path     string  `json:"path"`
	Content  string  `json:"content"`
	Modified float64 `json:"modified,omitempty"`
}

// Metadata carries the two project summaries the remote agent reads.
type Metadata struct {
	InputMetadata  string `json:"input_metadata"`
	OutputMetadata string `json:"output_metadata"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type treeResponse struct {
	Tree *Node `json:"tree"`
}

type scriptsResponse struct {
	Scripts []*ScriptInfo `json:"scripts"`
}

type putScriptRequest struct {
	Content string `json:"content"`
}
