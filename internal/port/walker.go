package port

// FileWalker discovers source files under a root directory.
type FileWalker interface {
	Walk(root string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string
	RelPath string // slash separated, relative to the walk root
	ModTime int64
	Size    int64
}
