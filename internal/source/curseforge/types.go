package curseforge

import "time"

// CurseForge API v1 response types
// API docs: https://docs.curseforge.com/rest-api/

// APIResponse wraps all CurseForge API responses
type APIResponse[T any] struct {
	Data T `json:"data"`
}

// PaginatedResponse wraps paginated CurseForge API responses
type PaginatedResponse[T any] struct {
	Data       T          `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination contains pagination info from CurseForge API
type Pagination struct {
	Index       int `json:"index"`
	PageSize    int `json:"pageSize"`
	ResultCount int `json:"resultCount"`
	TotalCount  int `json:"totalCount"`
}

// Mod represents a project from the CurseForge API
type Mod struct {
	ID                   int       `json:"id"`
	GameID               int       `json:"gameId"`
	Name                 string    `json:"name"`
	Slug                 string    `json:"slug"`
	Links                ModLinks  `json:"links"`
	Summary              string    `json:"summary"`
	ClassID              int       `json:"classId"`
	MainFileID           int       `json:"mainFileId"`
	DateModified         time.Time `json:"dateModified"`
	AllowModDistribution *bool     `json:"allowModDistribution"`
	IsAvailable          bool      `json:"isAvailable"`
}

// ModLinks contains URLs associated with a mod
type ModLinks struct {
	WebsiteURL string `json:"websiteUrl"`
	WikiURL    string `json:"wikiUrl"`
	IssuesURL  string `json:"issuesUrl"`
	SourceURL  string `json:"sourceUrl"`
}

// File represents a downloadable mod file
type File struct {
	ID           int              `json:"id"`
	GameID       int              `json:"gameId"`
	ModID        int              `json:"modId"`
	IsAvailable  bool             `json:"isAvailable"`
	DisplayName  string           `json:"displayName"`
	FileName     string           `json:"fileName"`
	ReleaseType  int              `json:"releaseType"` // 1=Release, 2=Beta, 3=Alpha
	FileStatus   int              `json:"fileStatus"`
	Hashes       []FileHash       `json:"hashes"`
	FileDate     time.Time        `json:"fileDate"`
	FileLength   int64            `json:"fileLength"`
	DownloadURL  string           `json:"downloadUrl"` // Empty when distribution is disabled
	GameVersions []string         `json:"gameVersions"`
	Dependencies []FileDependency `json:"dependencies"`
	IsServerPack bool             `json:"isServerPack"`
}

// FileHash contains hash info for a file
type FileHash struct {
	Value string `json:"value"`
	Algo  int    `json:"algo"` // 1=SHA1, 2=MD5
}

// FileDependency represents a file's dependency on another mod
type FileDependency struct {
	ModID        int `json:"modId"`
	RelationType int `json:"relationType"` // 1=EmbeddedLibrary, 2=OptionalDependency, 3=RequiredDependency, 4=Tool, 5=Incompatible, 6=Include
}

// Dependency relation types
const (
	RelationEmbeddedLibrary    = 1
	RelationOptionalDependency = 2
	RelationRequiredDependency = 3
	RelationTool               = 4
	RelationIncompatible       = 5
	RelationInclude            = 6
)

// Release types
const (
	ReleaseTypeRelease = 1
	ReleaseTypeBeta    = 2
	ReleaseTypeAlpha   = 3
)

// Hash algorithms
const (
	HashAlgoSHA1 = 1
	HashAlgoMD5  = 2
)

// Well-known project IDs
const (
	ProjectFabricAPI        = 306612
	ProjectQuiltedFabricAPI = 634179
)
