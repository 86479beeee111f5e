// Package launch manages the fragment directory used when each compile and
// link step is wrapped by a launcher.
//
// Launchers write one file per problem: error-<id>.xml or warning-<id>.xml,
// each an already formatted report fragment. The directory is not locked.
// Fragments are produced by many concurrent launcher processes and must only
// be scanned after the build has finished.
//
// # Timestamp Resolution
//
// Fragments are ordered by modification time and then by name. ext4, xfs,
// btrfs and tmpfs record nanoseconds, so ties are rare on Linux build
// hosts; FAT (2 s), HFS+ (1 s) and some network filesystems are coarse
// enough that fragments written in the same second tie and fall back to
// name order.
package launch

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dshills/buildscan/internal/build/classify"
)

const (
	// ErrorPrefix starts the name of an error fragment.
	ErrorPrefix = "error-"

	// WarningPrefix starts the name of a warning fragment.
	WarningPrefix = "warning-"

	// Suffix ends the name of every fragment.
	Suffix = ".xml"
)

// IsErrorFragment reports whether name is an error fragment file name.
func IsErrorFragment(name string) bool {
	return strings.HasPrefix(name, ErrorPrefix) && strings.HasSuffix(name, Suffix)
}

// IsWarningFragment reports whether name is a warning fragment file name.
func IsWarningFragment(name string) bool {
	return strings.HasPrefix(name, WarningPrefix) && strings.HasSuffix(name, Suffix)
}

// Fragment is one launcher fragment file.
type Fragment struct {
	Path    string
	Name    string
	Kind    classify.Kind
	ModTime time.Time
}

// Scan lists the fragments in dir ordered by modification time, then name.
// A missing directory holds no fragments.
func Scan(dir string) ([]Fragment, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var frags []Fragment
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		name := e.Name()
		var kind classify.Kind
		switch {
		case IsErrorFragment(name):
			kind = classify.Error
		case IsWarningFragment(name):
			kind = classify.Warning
		default:
			continue
		}

		info, err := e.Info()
		if err != nil {
			// Removed between listing and stat.
			continue
		}
		frags = append(frags, Fragment{
			Path:    filepath.Join(dir, name),
			Name:    name,
			Kind:    kind,
			ModTime: info.ModTime(),
		})
	}

	SortFragments(frags)
	return frags, nil
}

// SortFragments orders fragments by modification time, then name.
func SortFragments(frags []Fragment) {
	sort.SliceStable(frags, func(i, j int) bool {
		return fragmentLess(frags[i], frags[j])
	})
}

func fragmentLess(a, b Fragment) bool {
	if !a.ModTime.Equal(b.ModTime) {
		return a.ModTime.Before(b.ModTime)
	}
	return a.Name < b.Name
}

// HasReports reports whether dir holds any .xml file. Unreadable and
// missing directories hold none.
func HasReports(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), Suffix) {
			return true
		}
	}
	return false
}
