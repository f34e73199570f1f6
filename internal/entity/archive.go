package entity

// DownloadSelection is the ordered list of images a client picked from a scrape result.
type DownloadSelection []ImageRef

// ArchiveEntry is one file staged for the zip archive.
type ArchiveEntry struct {
	Filename string
	Body     []byte
}

// Archive is a finished zip archive together with a summary of the build.
type Archive struct {
	ID         string
	Data       []byte
	Entries    []string
	Duplicates int
	Failures   int
}
