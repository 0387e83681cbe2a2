package badger

import "fmt"

// Key prefixes for different data types
const (
	projectIndexPrefix = "srcidx"
	vectorPrefix       = "vec"
)

// makeProjectIndexKey generates the key of a project's source registry document.
func makeProjectIndexKey(projectID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", projectIndexPrefix, projectID))
}

// makeVectorNamespacePrefix generates the prefix shared by all vectors in a namespace.
// Format: prefix:namespace:
func makeVectorNamespacePrefix(namespace string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", vectorPrefix, namespace))
}

// makeVectorKey generates the key of a single vector.
// Format: prefix:namespace:id
func makeVectorKey(namespace, id string) []byte {
	return append(makeVectorNamespacePrefix(namespace), id...)
}
