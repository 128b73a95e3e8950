// ABOUTME: Reserved attribute names populated by generators and enrichment
// ABOUTME: Provenance names are namespaced so their end-names are source/generator/created

package item

// Provenance attributes every generated item must carry
const (
	AspectSource    = "item.source"
	AspectGenerator = "item.generator"
	AspectCreated   = "item.created"
)

// End-names checked by IsValid
const (
	EndSource    = "source"
	EndGenerator = "generator"
	EndCreated   = "created"
)

// Comparator hash attributes
const (
	AspectComparatorHash = "comparator_hash"
	AspectHashStrategy   = "hash_strategy"
)

// File enrichment attributes
const (
	AspectFileName         = "file_filename"
	AspectFileSizeBytes    = "file_sizeBytes"
	AspectFileModifiedUTC  = "file_modifiedUtc"
	AspectFileModifiedText = "file_modifiedtext"
)

// URL enrichment attributes
const (
	AspectURL              = "url_url"
	AspectURLHost          = "url_host"
	AspectURLPort          = "url_port"
	AspectURLPath          = "url_path"
	AspectURLResponseCode  = "url_code"
	AspectURLMimeType      = "url_mimetype"
	AspectURLContentLength = "url_contentlength"
	AspectURLModifiedUTC   = "url_modifiedutc"
	AspectURLModifiedText  = "url_modifiedtext"
)
