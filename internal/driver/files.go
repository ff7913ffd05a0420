package driver

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// FileExt is the extension of IR text files.
const FileExt = ".ssa"

// ExpandPaths turns the command line arguments into a sorted, deduplicated
// list of IR files. Directories are walked for *.ssa files; plain files are
// kept whatever their extension.
func ExpandPaths(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, filepath.Clean(arg))
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, FileExt) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}
