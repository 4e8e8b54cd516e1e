package common

// DefaultAuthor is stored when a project is saved without an author.
const DefaultAuthor = "Unknown Author"

// SnapshotVersion is the only export format version ImportDatabase accepts.
const SnapshotVersion = 1

// ProjectFileSuffix is appended to the slug of a single exported project.
const ProjectFileSuffix = ".gridworm.json"
