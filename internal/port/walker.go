package port

// FileInfo describes a file discovered by a Walker.
type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}

// Walker discovers source files under a root directory.
type Walker interface {
	Walk(root string) ([]FileInfo, error)
}
