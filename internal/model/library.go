package model

import "strings"

// LibraryStatus describes what a discovered library unit currently holds.
type LibraryStatus string

// Library unit states as shown by `doscc lib list`.
const (
	LibraryBuilt      LibraryStatus = "built"
	LibrarySourceOnly LibraryStatus = "source only"
	LibraryHeaderOnly LibraryStatus = "header only"
	LibraryEmpty      LibraryStatus = "empty"
)

// LibraryUnit is one named unit in the shared library store: a directory of
// headers and/or compilable sources that produces one archive. Its archive,
// once built, is left in the unit directory as the completion marker.
type LibraryUnit struct {
	Name    string
	Dir     string
	Depends []string
}

// ArchiveName returns the archive file name the unit produces.
func (u LibraryUnit) ArchiveName() string {
	return strings.ToUpper(u.Name) + ".LIB"
}
