package querygen

import (
	"regexp"
	"strings"
)

var (
	entityResponseCollectionRe = regexp.MustCompile(`^(.+)EntityResponseCollection$`)
	entityResponseRe           = regexp.MustCompile(`^(.+)EntityResponse$`)
	relationWrapperRe          = regexp.MustCompile(`^(.+?)(?:EntityResponseCollection|EntityResponse|RelationResponseCollection)$`)
)

const (
	singleRelationSuffix     = "Entity"
	collectionRelationSuffix = "RelationResponseCollection"
)

// UploadFileType is the content type of uploaded media. It is always sourced, and
// sourced before every other type.
const UploadFileType = "UploadFile"

// DefaultExcludedTypes lists field types that are never selected.
var DefaultExcludedTypes = []string{"GenericMorph"}

// CollectionResponseType returns the content type named by a collection response type.
func CollectionResponseType(typeName string) (string, bool) {
	m := entityResponseCollectionRe.FindStringSubmatch(typeName)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// SingleResponseType returns the content type named by a single-item response type.
func SingleResponseType(typeName string) (string, bool) {
	m := entityResponseRe.FindStringSubmatch(typeName)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// RelationEntityType returns the content type referenced by a relation wrapper
// __typename such as CategoryRelationResponseCollection or ArticleEntityResponse.
func RelationEntityType(typeName string) (string, bool) {
	m := relationWrapperRe.FindStringSubmatch(typeName)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func isSingleRelationStub(name string) bool {
	return len(name) > len(singleRelationSuffix) && strings.HasSuffix(name, singleRelationSuffix)
}

func isCollectionRelationStub(name string) bool {
	return len(name) > len(collectionRelationSuffix) && strings.HasSuffix(name, collectionRelationSuffix)
}
