package dataset

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/AnkitChauhan19/Audiva/internal/audio"
	"github.com/AnkitChauhan19/Audiva/internal/verdict"
)

// Class directories expected under a dataset root
var classDirs = []struct {
	name  string
	label verdict.Label
}{
	{name: "fake", label: verdict.Fake},
	{name: "real", label: verdict.Real},
}

// Task is one labeled file waiting for feature extraction
type Task struct {
	Path  string
	Label verdict.Label
}

// Collect lists the audio files under root/fake and root/real. Files whose
// extension is not in exts are not collected. The result is in lexical
// order, fakes first.
func Collect(root string, exts []string) ([]Task, error) {
	var tasks []Task

	for _, class := range classDirs {
		dir := filepath.Join(root, class.name)

		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read class directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", dir)
		}

		err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if audio.ValidateExtension(path, exts) != nil {
				return nil
			}
			tasks = append(tasks, Task{Path: path, Label: class.label})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
		}
	}

	return tasks, nil
}
