package loader

import (
	"strings"

	"github.com/xtxerr/numass/config"
	"github.com/xtxerr/numass/internal/storage/backend"
)

// Layout holds the reserved fragment names of a run.
type Layout struct {
	MetaFragment     string
	VoltageFragment  string
	PointPrefix      string
	ArchiveExtension string
	SidecarSuffix    string
}

// DefaultLayout returns the layout written by the acquisition software.
func DefaultLayout() Layout {
	return Layout{
		MetaFragment:     config.DefaultMetaFragment,
		VoltageFragment:  config.DefaultVoltageFragment,
		PointPrefix:      config.DefaultPointPrefix,
		ArchiveExtension: config.DefaultArchiveExtension,
		SidecarSuffix:    config.DefaultSidecarSuffix,
	}
}

// IsRunDir reports whether a directory listing describes a run, i.e.
// contains a regular file named after the meta fragment.
func (l Layout) IsRunDir(entries []backend.Entry) bool {
	for _, e := range entries {
		if !e.IsDir && e.Name == l.MetaFragment {
			return true
		}
	}
	return false
}

// IsArchive reports whether name is an archive-backed run.
func (l Layout) IsArchive(name string) bool {
	return strings.HasSuffix(name, "."+l.ArchiveExtension) && len(name) > len(l.ArchiveExtension)+1
}

// ArchiveName returns the file name of a pushed run.
func (l Layout) ArchiveName(run string) string {
	return run + "." + l.ArchiveExtension
}

// RunName strips the archive extension from name.
func (l Layout) RunName(name string) string {
	if l.IsArchive(name) {
		return strings.TrimSuffix(name, "."+l.ArchiveExtension)
	}
	return name
}

// IsSidecar reports whether name is the sidecar of a point fragment.
func (l Layout) IsSidecar(name string) bool {
	return l.SidecarSuffix != "" && strings.HasSuffix(name, l.SidecarSuffix)
}

// IsPoint reports whether name is a point fragment.
func (l Layout) IsPoint(name string) bool {
	return strings.HasPrefix(name, l.PointPrefix) && !l.IsSidecar(name) &&
		name != l.MetaFragment && name != l.VoltageFragment
}

// isFragment reports whether name belongs in the fragment map.
func (l Layout) isFragment(name string) bool {
	return name == l.MetaFragment || name == l.VoltageFragment || l.IsPoint(name)
}
