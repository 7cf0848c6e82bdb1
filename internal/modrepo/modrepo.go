// Package modrepo builds query URLs for the mod repository REST API. The
// builders are pure string construction with no transport and no response
// parsing; callers own the HTTP side.
package modrepo

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const apiBase = "https://api.curseforge.com/v1/mods"

// gameID pins every query to the game the repository indexes.
const gameID = 432

// ResourceType selects the repository class a search runs against.
type ResourceType int

const (
	TypeMod ResourceType = iota
	TypeResourcePack
)

// Loader is a bitmask of mod loaders a search can constrain on.
type Loader uint

const (
	LoaderForge Loader = 1 << iota
	LoaderFabric
	LoaderQuilt
	LoaderNeoForge
)

// ValidLoaders reports whether at least one supported loader bit is set.
func ValidLoaders(l Loader) bool {
	return l&(LoaderNeoForge|LoaderForge|LoaderFabric|LoaderQuilt) != 0
}

// MappedLoader converts a loader mask to the repository's numeric
// ModLoaderType. With several bits set the first match in forge, fabric,
// quilt, neoforge order wins; zero means unconstrained.
func MappedLoader(l Loader) int {
	switch {
	case l&LoaderForge != 0:
		return 1
	case l&LoaderFabric != 0:
		return 4
	case l&LoaderQuilt != 0:
		return 5
	case l&LoaderNeoForge != 0:
		return 6
	}
	return 0
}

func classID(t ResourceType) int {
	if t == TypeResourcePack {
		return 12
	}
	return 6
}

// loaderFilter renders the mask as the API's list literal, e.g. "[6,1]".
// Loaders appear in neoforge, forge, fabric, quilt order.
func loaderFilter(l Loader) string {
	var nums []string
	for _, one := range []Loader{LoaderNeoForge, LoaderForge, LoaderFabric, LoaderQuilt} {
		if l&one != 0 {
			nums = append(nums, strconv.Itoa(MappedLoader(one)))
		}
	}
	return "[" + strings.Join(nums, ",") + "]"
}

// SearchQuery collects the parameters of a mod search. Zero values drop
// the matching constraint from the URL.
type SearchQuery struct {
	Type   ResourceType
	Offset int
	// Search is the free-text filter; it is the only field that needs
	// query escaping.
	Search string
	// SortField is the repository's sort field index. Zero leaves the
	// ordering to the API.
	SortField   int
	Loaders     Loader
	GameVersion string
}

// SearchURL renders q as a search request URL. Results page by 25 and
// sort descending.
func SearchURL(q SearchQuery) string {
	params := []string{
		fmt.Sprintf("classId=%d", classID(q.Type)),
		fmt.Sprintf("index=%d", q.Offset),
		"pageSize=25",
	}
	if q.Search != "" {
		params = append(params, "searchFilter="+url.QueryEscape(q.Search))
	}
	if q.SortField > 0 {
		params = append(params, fmt.Sprintf("sortField=%d", q.SortField))
	}
	params = append(params, "sortOrder=desc")
	if q.Loaders != 0 {
		params = append(params, "modLoaderTypes="+loaderFilter(q.Loaders))
	}
	if q.GameVersion != "" {
		params = append(params, "gameVersion="+q.GameVersion)
	}
	return fmt.Sprintf("%s/search?gameId=%d&%s", apiBase, gameID, strings.Join(params, "&"))
}

// InfoURL renders the detail request URL for one project.
func InfoURL(id string) string {
	return fmt.Sprintf("%s/%s", apiBase, id)
}

// VersionsURL renders the files listing for a project, optionally
// constrained to one game version. The page size is large enough to cover
// every file in a single request.
func VersionsURL(id, gameVersion string) string {
	u := fmt.Sprintf("%s/%s/files?pageSize=10000", apiBase, id)
	if gameVersion != "" {
		u += "&gameVersion=" + gameVersion
	}
	return u
}

// DependencyURL renders the files listing used to resolve a dependency for
// a concrete game version and loader.
func DependencyURL(id, gameVersion string, loader Loader) string {
	return fmt.Sprintf("%s/%s/files?pageSize=10000&gameVersion=%s&modLoaderType=%d",
		apiBase, id, gameVersion, MappedLoader(loader))
}
